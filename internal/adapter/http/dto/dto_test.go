package dto

import (
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestView_Amount(t *testing.T) {
	tests := []struct {
		name  string
		scale int32
		in    string
		want  string
	}{
		{"memory store value", 2, "49.5", "49.50"},
		{"numeric column value", 2, "49.5000", "49.50"},
		{"whole units", 2, "70", "70.00"},
		{"zero", 2, "0", "0.00"},
		{"negative", 2, "-3.1", "-3.10"},
		{"scale zero", 0, "12.0000", "12"},
		{"scale four", 4, "1.5", "1.5000"},
		{"more digits than scale are kept", 2, "1.005", "1.005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, View{Scale: tt.scale}.Amount(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestView_CentreSummary(t *testing.T) {
	v := View{Scale: 2}
	wallet := ports.WalletSummary{
		WalletID: 9,
		Status:   domain.WalletStatusOnline,
		Balance:  decimal.RequireFromString("20.5000"),
		Totals:   domain.FlowTotals{Credits: decimal.RequireFromString("20.5"), CreditCount: 1},
	}
	sum := &ports.CentreSummary{
		CentreID:     3,
		WalletCount:  1,
		TotalBalance: decimal.RequireFromString("20.5000"),
		TotalCredits: decimal.RequireFromString("20.5"),
		TotalDebits:  decimal.Zero,
		Wallets:      []ports.WalletSummary{wallet},
	}

	got := v.ToCentreSummary(sum, ports.Period{})
	assert.Equal(t, "20.50", got.TotalBalance)
	assert.Equal(t, "0.00", got.TotalDebits)
	assert.Equal(t, "20.50", got.Wallets[0].Balance)
	assert.Equal(t, "20.50", got.Wallets[0].Totals.Net)
	assert.Nil(t, got.From)
}
