package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/metrics"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models/events"
)

// Ledger owns the room registry and enforces the charge and payment rules.
// Every mutation is persisted and published before the call returns; failures
// of either are logged and counted but never undo the in-memory change.
type Ledger struct {
	store     interfaces.RoomStore
	publisher interfaces.EventPublisher
	rates     Rates
	metrics   *metrics.Metrics
	log       logrus.FieldLogger

	mu       sync.Mutex
	rooms    []string
	accounts map[string]*models.RoomAccount
}

// Option configures optional collaborators of a Ledger.
type Option func(*Ledger)

// WithPublisher sends a room event after every successful mutation.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithMetrics replaces the default, unregistered counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithLogger replaces the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// New creates a ledger for a fixed set of rooms, each starting empty.
// Call Load to repopulate it from the store.
func New(rooms []string, rates Rates, store interfaces.RoomStore, opts ...Option) (*Ledger, error) {
	if len(rooms) == 0 {
		return nil, errors.New("at least one room is required")
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("a room store is required")
	}

	l := &Ledger{
		store:    store,
		rates:    rates,
		metrics:  metrics.New(nil),
		log:      logrus.StandardLogger(),
		rooms:    make([]string, 0, len(rooms)),
		accounts: make(map[string]*models.RoomAccount, len(rooms)),
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, room := range rooms {
		if room == "" {
			return nil, errors.New("room identifier can't be empty")
		}
		if _, exists := l.accounts[room]; exists {
			return nil, fmt.Errorf("room %q listed twice", room)
		}
		account := models.NewRoomAccount(room)
		l.accounts[room] = &account
		l.rooms = append(l.rooms, room)
	}
	return l, nil
}

// Load replaces in-memory state with what the store holds. Rooms missing from
// the store keep the empty default; stored rooms outside the registry are skipped.
func (l *Ledger) Load(ctx context.Context) error {
	stored, err := l.store.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("loading room accounts: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, account := range stored {
		if _, known := l.accounts[account.Room]; !known {
			l.log.WithField("room", account.Room).Warn("ignoring stored account for unknown room")
			continue
		}
		if err := checkStoredAccount(account); err != nil {
			l.log.WithField("room", account.Room).WithError(err).Warn("stored account is corrupt, starting it empty")
			empty := models.NewRoomAccount(account.Room)
			l.accounts[account.Room] = &empty
			continue
		}
		account = account.Clone()
		if account.Charges == nil {
			account.Charges = []models.Charge{}
		}
		if !account.PaymentStatus.Valid() {
			account.PaymentStatus = models.PaymentStatusUnpaid
		}
		if sum := account.ChargesSum(); !sum.Equal(account.TotalAmount) {
			l.log.WithFields(logrus.Fields{
				"room":   account.Room,
				"stored": account.TotalAmount.String(),
				"sum":    sum.String(),
			}).Warn("stored total does not match charges, using charge sum")
			account.TotalAmount = sum
		}
		l.accounts[account.Room] = &account
	}

	l.log.WithField("rooms", len(stored)).Info("room accounts loaded")
	return nil
}

// checkStoredAccount enforces on loaded data the rules the operations keep:
// known charge kinds, non-negative amounts and at most one Rent charge.
func checkStoredAccount(a models.RoomAccount) error {
	rents := 0
	for i, c := range a.Charges {
		if !c.Kind.Valid() {
			return fmt.Errorf("charge %d: unknown charge kind %q", i+1, c.Kind)
		}
		if c.Amount.IsNegative() {
			return fmt.Errorf("charge %d: %w: %s", i+1, ErrInvalidAmount, c.Amount)
		}
		if c.Kind == models.ChargeKindRent {
			rents++
		}
	}
	if rents > 1 {
		return fmt.Errorf("%w: %d rent charges", ErrDuplicateCharge, rents)
	}
	if a.TotalPaid.IsNegative() {
		return fmt.Errorf("total paid: %w: %s", ErrInvalidAmount, a.TotalPaid)
	}
	return nil
}

func (l *Ledger) Rooms() []string {
	rooms := make([]string, len(l.rooms))
	copy(rooms, l.rooms)
	return rooms
}

func (l *Ledger) Rates() Rates {
	return l.rates
}

// Account returns a copy of one room's account.
func (l *Ledger) Account(room string) (models.RoomAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[room]
	if !ok {
		return models.RoomAccount{}, fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	return account.Clone(), nil
}

// Accounts returns copies of every account in registry order.
func (l *Ledger) Accounts() []models.RoomAccount {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make([]models.RoomAccount, 0, len(l.rooms))
	for _, room := range l.rooms {
		accounts = append(accounts, l.accounts[room].Clone())
	}
	return accounts
}

func (l *Ledger) GetStatusLabel(room string) (string, error) {
	account, err := l.Account(room)
	if err != nil {
		return "", err
	}
	return account.StatusLabel(), nil
}

func (l *Ledger) AddRent(ctx context.Context, room string, amount decimal.Decimal) (models.RoomAccount, error) {
	return l.mutate(ctx, "add_rent", room, events.RoomRentAdded, func(a *models.RoomAccount) error {
		if a.HasCharge(models.ChargeKindRent) {
			return ErrDuplicateCharge
		}
		if amount.IsNegative() {
			return fmt.Errorf("%w: rent %s", ErrInvalidAmount, amount)
		}
		appendCharge(a, models.ChargeKindRent, amount, decimal.Zero)
		return nil
	})
}

// EditRent replaces the rent amount and shifts the total by the difference.
func (l *Ledger) EditRent(ctx context.Context, room string, newAmount decimal.Decimal) (models.RoomAccount, error) {
	return l.mutate(ctx, "edit_rent", room, events.RoomRentEdited, func(a *models.RoomAccount) error {
		i := a.RentIndex()
		if i < 0 {
			return ErrMissingCharge
		}
		if newAmount.IsNegative() {
			return fmt.Errorf("%w: rent %s", ErrInvalidAmount, newAmount)
		}
		delta := newAmount.Sub(a.Charges[i].Amount)
		a.Charges[i].Amount = newAmount
		a.TotalAmount = a.TotalAmount.Add(delta)
		return nil
	})
}

func (l *Ledger) AddElectricity(ctx context.Context, room string, consumptionKWh decimal.Decimal) (models.RoomAccount, error) {
	return l.addMetered(ctx, "add_electricity", room, events.RoomElectricityAdded, models.ChargeKindElectricity, consumptionKWh, l.rates.Electricity)
}

func (l *Ledger) AddWater(ctx context.Context, room string, consumptionM3 decimal.Decimal) (models.RoomAccount, error) {
	return l.addMetered(ctx, "add_water", room, events.RoomWaterAdded, models.ChargeKindWater, consumptionM3, l.rates.Water)
}

// AddOtherService appends the flat service fee. It may be added any number of times.
func (l *Ledger) AddOtherService(ctx context.Context, room string) (models.RoomAccount, error) {
	return l.mutate(ctx, "add_service", room, events.RoomServiceAdded, func(a *models.RoomAccount) error {
		appendCharge(a, models.ChargeKindOtherService, l.rates.ServiceFee, decimal.Zero)
		return nil
	})
}

// SetPaymentStatus requires all four charge kinds. Paid raises total paid to at
// least the total amount; Unpaid only flips the flag.
func (l *Ledger) SetPaymentStatus(ctx context.Context, room string, status models.PaymentStatus) (models.RoomAccount, error) {
	return l.mutate(ctx, "set_status", room, events.RoomStatusChanged, func(a *models.RoomAccount) error {
		if !status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		for _, kind := range models.RequiredChargeKinds {
			if !a.HasCharge(kind) {
				return fmt.Errorf("%w: %s missing", ErrIncompleteCharges, kind)
			}
		}
		if a.PaymentStatus == models.PaymentStatusPaid && !a.TotalAmount.Sub(a.TotalPaid).IsPositive() {
			return ErrAlreadySettled
		}

		if status == models.PaymentStatusPaid {
			a.TotalPaid = decimal.Max(a.TotalPaid, a.TotalAmount)
		}
		a.PaymentStatus = status
		return nil
	})
}

// ResetRoom returns a room to the empty default state.
func (l *Ledger) ResetRoom(ctx context.Context, room string) (models.RoomAccount, error) {
	return l.mutate(ctx, "reset", room, events.RoomReset, func(a *models.RoomAccount) error {
		*a = models.NewRoomAccount(a.Room)
		return nil
	})
}

// ResetAll resets every room in the registry.
func (l *Ledger) ResetAll(ctx context.Context) error {
	for _, room := range l.Rooms() {
		if _, err := l.ResetRoom(ctx, room); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) addMetered(ctx context.Context, op, room string, eventType events.RoomEventType, kind models.ChargeKind, consumption, rate decimal.Decimal) (models.RoomAccount, error) {
	return l.mutate(ctx, op, room, eventType, func(a *models.RoomAccount) error {
		if consumption.IsNegative() {
			return fmt.Errorf("%w: consumption %s", ErrInvalidAmount, consumption)
		}
		appendCharge(a, kind, consumption.Mul(rate), consumption)
		return nil
	})
}

func appendCharge(a *models.RoomAccount, kind models.ChargeKind, amount, consumption decimal.Decimal) {
	a.Charges = append(a.Charges, models.Charge{
		Kind:        kind,
		Amount:      amount,
		Description: models.DescribeCharge(kind, consumption),
	})
	a.TotalAmount = a.TotalAmount.Add(amount)
}

// mutate applies fn to a copy of the room's account and commits the copy only
// when fn succeeds, so rejected operations leave state untouched.
func (l *Ledger) mutate(ctx context.Context, op, room string, eventType events.RoomEventType, fn func(*models.RoomAccount) error) (models.RoomAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.accounts[room]
	if !ok {
		l.metrics.Operations.WithLabelValues(op, "rejected").Inc()
		return models.RoomAccount{}, fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		l.metrics.Operations.WithLabelValues(op, "rejected").Inc()
		return models.RoomAccount{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	l.accounts[room] = &next
	l.metrics.Operations.WithLabelValues(op, "ok").Inc()

	l.persist(ctx, op, next)
	l.publish(ctx, events.NewRoomEvent(eventType, next))
	return next.Clone(), nil
}

func (l *Ledger) persist(ctx context.Context, op string, account models.RoomAccount) {
	if err := l.store.SaveRoom(ctx, account); err != nil {
		l.metrics.PersistFailures.WithLabelValues(account.Room).Inc()
		l.log.WithFields(logrus.Fields{
			"room": account.Room,
			"op":   op,
		}).WithError(err).Error("failed to persist room account")
	}
}

func (l *Ledger) publish(ctx context.Context, event events.RoomEvent) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.metrics.PublishFailures.WithLabelValues(string(event.Type)).Inc()
		l.log.WithFields(logrus.Fields{
			"room":  event.Room,
			"event": event.Type,
		}).WithError(err).Error("failed to publish room event")
	}
}
