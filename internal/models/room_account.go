package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "Unpaid"
	PaymentStatusPaid   PaymentStatus = "Paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPaid
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParsePaymentStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParsePaymentStatus accepts "Paid" or "Unpaid".
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown payment status %q", raw)
	}
	return status, nil
}

// Status labels derived from an account.
const (
	StatusLabelNoCharges = "No charges yet"
	StatusLabelPaid      = "Paid"
	StatusLabelUnpaid    = "Unpaid"
)

// RoomAccount is the financial record of one rental room
type RoomAccount struct {
	Room          string          `json:"room"`
	Charges       []Charge        `json:"charges"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewRoomAccount returns the empty default state for room.
func NewRoomAccount(room string) RoomAccount {
	return RoomAccount{
		Room:          room,
		Charges:       []Charge{},
		TotalAmount:   decimal.Zero,
		TotalPaid:     decimal.Zero,
		PaymentStatus: PaymentStatusUnpaid,
	}
}

// Clone returns a deep copy so callers can't alias the charge slice.
func (a RoomAccount) Clone() RoomAccount {
	charges := make([]Charge, len(a.Charges))
	copy(charges, a.Charges)
	a.Charges = charges
	return a
}

// Balance is what is still owed, never negative.
func (a RoomAccount) Balance() decimal.Decimal {
	balance := a.TotalAmount.Sub(a.TotalPaid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// HasCharge reports whether a charge of kind is present.
func (a RoomAccount) HasCharge(kind ChargeKind) bool {
	return a.chargeIndex(kind) >= 0
}

// RentIndex returns the position of the Rent charge, or -1.
func (a RoomAccount) RentIndex() int {
	return a.chargeIndex(ChargeKindRent)
}

func (a RoomAccount) chargeIndex(kind ChargeKind) int {
	for i, c := range a.Charges {
		if c.Kind == kind {
			return i
		}
	}
	return -1
}

// StatusLabel derives the display status: no charges first, then the flag.
func (a RoomAccount) StatusLabel() string {
	if a.TotalAmount.IsZero() {
		return StatusLabelNoCharges
	}
	if a.PaymentStatus == PaymentStatusPaid {
		return StatusLabelPaid
	}
	return StatusLabelUnpaid
}

// ChargesSum recomputes the total from the charge list.
func (a RoomAccount) ChargesSum() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range a.Charges {
		sum = sum.Add(c.Amount)
	}
	return sum
}
