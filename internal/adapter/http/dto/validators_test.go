package dto

import (
	"testing"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinding_AmountFormat(t *testing.T) {
	for _, amount := range []string{"10", "12.50", " 0.01 "} {
		assert.NoError(t, binding.Validator.ValidateStruct(&MovementRequest{Amount: amount}), amount)
	}
	for _, amount := range []string{"1e3", "1,000.00", "+5", "abc"} {
		err := binding.Validator.ValidateStruct(&MovementRequest{Amount: amount})
		require.Error(t, err, amount)
		assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(BindError(err)), amount)
	}
}

func TestBinding_MovementRequest(t *testing.T) {
	err := binding.Validator.ValidateStruct(&MovementRequest{Amount: "10.00", Category: "service_charge"})
	assert.NoError(t, err)

	err = binding.Validator.ValidateStruct(&MovementRequest{Amount: "ten"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(BindError(err)))

	err = binding.Validator.ValidateStruct(&MovementRequest{})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(BindError(err)))
}

func TestBinding_CreateWalletRequest(t *testing.T) {
	staff := int64(4)
	valid := CreateWalletRequest{Name: "Front desk", Kind: "cash", Ownership: "personal", AssignedStaffID: &staff}
	assert.NoError(t, binding.Validator.ValidateStruct(&valid))

	badKind := valid
	badKind.Kind = "crypto"
	assert.Error(t, binding.Validator.ValidateStruct(&badKind))

	badStatus := valid
	badStatus.Status = "paused"
	assert.Error(t, binding.Validator.ValidateStruct(&badStatus))

	badBalance := valid
	badBalance.InitialBalance = "lots"
	err := binding.Validator.ValidateStruct(&badBalance)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(BindError(err)))
}

func TestBinding_TransferRequest(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&TransferRequest{FromWalletID: 1, ToWalletID: 2, Amount: "3"}))
	assert.Error(t, binding.Validator.ValidateStruct(&TransferRequest{FromWalletID: 0, ToWalletID: 2, Amount: "3"}))
}

func TestSanitizeStruct(t *testing.T) {
	name := "  Tea & Coffee <till 2> "
	req := UpdateWalletRequest{Name: &name}
	SanitizeStruct(&req)
	assert.Equal(t, "Tea & Coffee <till 2>", *req.Name, "markup is stored as sent")

	mv := MovementRequest{Amount: " 5 ", Category: "fee\x00", Description: "\tline\n"}
	SanitizeStruct(&mv)
	assert.Equal(t, "5", mv.Amount)
	assert.Equal(t, "fee", mv.Category)
	assert.Equal(t, "line", mv.Description)

	// non-pointers are ignored
	SanitizeStruct(mv)
}
