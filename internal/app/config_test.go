package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseTaxRate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "default", in: "0.10", want: "0.1"},
		{name: "zero", in: "0", want: "0"},
		{name: "one", in: "1", want: "1"},
		{name: "not a number", in: "ten percent", wantErr: true},
		{name: "negative", in: "-0.1", wantErr: true},
		{name: "above one", in: "1.5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := parseTaxRate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, rate.String())
		})
	}
}

func TestConfigParsedTaxRate(t *testing.T) {
	cfg := Config{TaxRate: "0.08"}

	rate, err := parseTaxRate(cfg.TaxRate)
	require.NoError(t, err)
	cfg.taxRate = rate

	require.True(t, cfg.ParsedTaxRate().Equal(decimal.RequireFromString("0.08")))
}
