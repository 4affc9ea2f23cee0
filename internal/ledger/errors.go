package ledger

import "errors"

var (
	ErrUnknownRoom       = errors.New("unknown room")
	ErrDuplicateCharge   = errors.New("rent is already set for this room, edit it instead")
	ErrMissingCharge     = errors.New("rent has not been set for this room")
	ErrIncompleteCharges = errors.New("rent, electricity, water and other service charges are all required")
	ErrAlreadySettled    = errors.New("room is already fully paid")
	ErrInvalidAmount     = errors.New("amount must not be negative")
	ErrInvalidStatus     = errors.New("payment status must be Paid or Unpaid")
)
