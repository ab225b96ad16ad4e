package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the precision of the NUMERIC columns backing balances.
const MaxScale int32 = 4

var (
	ErrAmountMalformed   = errors.New("amount is not a decimal number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount has too many fractional digits")
	ErrAmountTooLarge    = errors.New("amount exceeds the per-operation limit")
)

// AmountPolicy fixes how many fractional digits an amount may carry and an
// optional per-operation ceiling. A zero Max means unbounded.
type AmountPolicy struct {
	Scale int32
	Max   decimal.Decimal
}

// DefaultAmountPolicy allows two fractional digits and no ceiling.
func DefaultAmountPolicy() AmountPolicy {
	return AmountPolicy{Scale: 2}
}

// Check validates a movement amount. Amounts are never rounded.
func (p AmountPolicy) Check(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if err := p.CheckPrecision(amount); err != nil {
		return err
	}
	if p.Max.IsPositive() && amount.GreaterThan(p.Max) {
		return ErrAmountTooLarge
	}
	return nil
}

// CheckPrecision validates only the fractional digits (zero is allowed).
func (p AmountPolicy) CheckPrecision(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(p.Scale)) {
		return ErrAmountPrecision
	}
	return nil
}

// ParseAmount parses a plain decimal string such as "1500.25". Only digits,
// one optional leading minus and a decimal point are accepted. Sign and scale
// are left to AmountPolicy.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrAmountMalformed
	}
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case r == '-' && i == 0:
		default:
			return decimal.Zero, ErrAmountMalformed
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrAmountMalformed
	}
	return d, nil
}
