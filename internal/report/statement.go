package report

import (
	"fmt"
	"io"

	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

// WriteStatement prints a room's charges, totals and derived status.
func WriteStatement(w io.Writer, a models.RoomAccount) error {
	p := &printer{w: w}

	p.printf("Room: %s\n", a.Room)
	p.printf("Charges:\n")
	if len(a.Charges) == 0 {
		p.printf("  no charges added for this room yet\n")
	}
	for i, c := range a.Charges {
		p.printf("  %d. %s: %s - %s\n", i+1, c.Kind, c.Amount.StringFixed(0), c.Description)
	}
	p.printf("Total amount: %s\n", a.TotalAmount.StringFixed(0))
	p.printf("Total paid:   %s\n", a.TotalPaid.StringFixed(0))
	p.printf("Balance:      %s\n", a.Balance().StringFixed(0))
	p.printf("Status:       %s\n", a.StatusLabel())
	return p.err
}

// printer keeps the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
