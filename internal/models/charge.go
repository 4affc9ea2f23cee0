package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ChargeKind identifies what a charge bills for. The set is closed.
type ChargeKind string

const (
	ChargeKindRent         ChargeKind = "Rent"
	ChargeKindElectricity  ChargeKind = "Electricity"
	ChargeKindWater        ChargeKind = "Water"
	ChargeKindOtherService ChargeKind = "OtherService"
)

// RequiredChargeKinds must all be present before a room's payment status can change.
var RequiredChargeKinds = []ChargeKind{
	ChargeKindRent,
	ChargeKindElectricity,
	ChargeKindWater,
	ChargeKindOtherService,
}

func (k ChargeKind) Valid() bool {
	switch k {
	case ChargeKindRent, ChargeKindElectricity, ChargeKindWater, ChargeKindOtherService:
		return true
	}
	return false
}

func (k *ChargeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind := ChargeKind(s)
	if !kind.Valid() {
		return fmt.Errorf("unknown charge kind %q", s)
	}
	*k = kind
	return nil
}

// Charge is a single billed line item of a room
type Charge struct {
	Kind        ChargeKind      `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// DescribeCharge builds the label shown for a charge. consumption is ignored
// for kinds that are not metered.
func DescribeCharge(kind ChargeKind, consumption decimal.Decimal) string {
	switch kind {
	case ChargeKindRent:
		return "Monthly rent"
	case ChargeKindElectricity:
		return fmt.Sprintf("Electricity (%s kWh)", consumption.String())
	case ChargeKindWater:
		return fmt.Sprintf("Water (%s m3)", consumption.String())
	default:
		return "Other services"
	}
}
