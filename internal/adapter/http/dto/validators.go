package dto

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("decimal_amount", validateDecimal)
		_ = v.RegisterValidation("wallet_kind", validateKind)
		_ = v.RegisterValidation("wallet_ownership", validateOwnership)
		_ = v.RegisterValidation("wallet_status", validateStatus)
	}
}

// validateDecimal accepts plain decimal notation only: no exponent, no
// thousands separators.
func validateDecimal(fl validator.FieldLevel) bool {
	_, err := domain.ParseAmount(fl.Field().String())
	return err == nil
}

func validateKind(fl validator.FieldLevel) bool {
	return domain.WalletKind(fl.Field().String()).Valid()
}

func validateOwnership(fl validator.FieldLevel) bool {
	return domain.WalletOwnership(fl.Field().String()).Valid()
}

func validateStatus(fl validator.FieldLevel) bool {
	return domain.WalletStatus(fl.Field().String()).Valid()
}

// BindError maps a binding failure to the ledger error taxonomy. A malformed
// amount is reported as an invalid amount rather than a generic validation error.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "decimal_amount" {
				return apperror.ErrInvalidAmount()
			}
		}
	}
	return apperror.Validation(err.Error())
}

// SanitizeStruct trims whitespace and drops control characters from every
// exported string field (including *string) of a struct pointer. Values are
// otherwise stored as sent.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
