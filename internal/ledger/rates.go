package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates are the tunable prices applied to metered and flat charges.
type Rates struct {
	Electricity decimal.Decimal // per kWh
	Water       decimal.Decimal // per m3
	ServiceFee  decimal.Decimal // flat, per other-service charge
}

func DefaultRates() Rates {
	return Rates{
		Electricity: decimal.NewFromInt(4000),
		Water:       decimal.NewFromInt(30000),
		ServiceFee:  decimal.NewFromInt(100000),
	}
}

func (r Rates) Validate() error {
	checks := []struct {
		name  string
		value decimal.Decimal
	}{
		{"electricity rate", r.Electricity},
		{"water rate", r.Water},
		{"service fee", r.ServiceFee},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidAmount, c.name, c.value)
		}
	}
	return nil
}
