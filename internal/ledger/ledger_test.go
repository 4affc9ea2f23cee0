package ledger_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/room-billing-ledger/internal/ledger"
	"github.com/sheikh-saqib/room-billing-ledger/internal/metrics"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models/events"
	"github.com/sheikh-saqib/room-billing-ledger/internal/storage/memory"
)

const room = "Room 101"

type failingStore struct {
	*memory.MemoryRoomStore
	saves int
}

func (f *failingStore) SaveRoom(ctx context.Context, account models.RoomAccount) error {
	f.saves++
	return errors.New("disk full")
}

type recordingPublisher struct {
	events []events.RoomEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.RoomEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error {
	return nil
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func newLedger(t *testing.T, opts ...ledger.Option) (*ledger.Ledger, *memory.MemoryRoomStore) {
	t.Helper()
	store := memory.NewMemoryRoomStore()
	opts = append([]ledger.Option{ledger.WithLogger(quietLogger())}, opts...)
	l, err := ledger.New([]string{"Room 101", "Room 102", "Room 103"}, ledger.DefaultRates(), store, opts...)
	require.NoError(t, err)
	return l, store
}

func addAllCharges(t *testing.T, l *ledger.Ledger) models.RoomAccount {
	t.Helper()
	ctx := context.Background()
	_, err := l.AddRent(ctx, room, dec("1000000"))
	require.NoError(t, err)
	_, err = l.AddElectricity(ctx, room, dec("50"))
	require.NoError(t, err)
	_, err = l.AddWater(ctx, room, dec("10"))
	require.NoError(t, err)
	account, err := l.AddOtherService(ctx, room)
	require.NoError(t, err)
	return account
}

func TestFullMonthIsBilledAndPaid(t *testing.T) {
	l, _ := newLedger(t)

	account := addAllCharges(t, l)
	assertDecimal(t, "1600000", account.TotalAmount)
	require.Len(t, account.Charges, 4)
	assert.Equal(t, "Monthly rent", account.Charges[0].Description)
	assert.Equal(t, "Electricity (50 kWh)", account.Charges[1].Description)
	assertDecimal(t, "200000", account.Charges[1].Amount)
	assert.Equal(t, "Water (10 m3)", account.Charges[2].Description)
	assertDecimal(t, "300000", account.Charges[2].Amount)
	assert.Equal(t, "Other services", account.Charges[3].Description)
	assertDecimal(t, "100000", account.Charges[3].Amount)

	label, err := l.GetStatusLabel(room)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLabelUnpaid, label)

	account, err = l.SetPaymentStatus(context.Background(), room, models.PaymentStatusPaid)
	require.NoError(t, err)
	assertDecimal(t, "1600000", account.TotalPaid)
	assert.Equal(t, models.PaymentStatusPaid, account.PaymentStatus)
	assertDecimal(t, "0", account.Balance())

	label, err = l.GetStatusLabel(room)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLabelPaid, label)
}

func TestAddRentTwiceIsRejected(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddRent(ctx, room, dec("500"))
	require.NoError(t, err)
	before, err := l.Account(room)
	require.NoError(t, err)

	_, err = l.AddRent(ctx, room, dec("700"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateCharge)

	after, err := l.Account(room)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditRentShiftsTotalByDelta(t *testing.T) {
	l, _ := newLedger(t)
	before := addAllCharges(t, l)

	after, err := l.EditRent(context.Background(), room, dec("800000"))
	require.NoError(t, err)

	assertDecimal(t, "-200000", after.TotalAmount.Sub(before.TotalAmount))
	assertDecimal(t, "800000", after.Charges[0].Amount)
	assert.Equal(t, before.Charges[1:], after.Charges[1:])

	after, err = l.EditRent(context.Background(), room, dec("1250000"))
	require.NoError(t, err)
	assertDecimal(t, "1850000", after.TotalAmount)
}

func TestEditRentWithoutRentFails(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddElectricity(ctx, room, dec("3"))
	require.NoError(t, err)
	before, _ := l.Account(room)

	_, err = l.EditRent(ctx, room, dec("100"))
	assert.ErrorIs(t, err, ledger.ErrMissingCharge)

	after, _ := l.Account(room)
	assert.Equal(t, before, after)
}

func TestNegativeInputsAreRejected(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddRent(ctx, room, dec("-1"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = l.AddElectricity(ctx, room, dec("-0.5"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = l.AddWater(ctx, room, dec("-2"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = l.AddRent(ctx, room, dec("10"))
	require.NoError(t, err)
	_, err = l.EditRent(ctx, room, dec("-10"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	account, _ := l.Account(room)
	assert.Len(t, account.Charges, 1)
	assertDecimal(t, "10", account.TotalAmount)
}

func TestZeroAmountsAreAllowed(t *testing.T) {
	l, _ := newLedger(t)

	account, err := l.AddRent(context.Background(), room, decimal.Zero)
	require.NoError(t, err)
	assert.Len(t, account.Charges, 1)
	assert.Equal(t, models.StatusLabelNoCharges, account.StatusLabel())
}

func TestSetPaymentStatusNeedsAllFourKinds(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ledger.ErrIncompleteCharges)

	_, err = l.AddRent(ctx, room, decimal.Zero)
	require.NoError(t, err)
	_, err = l.AddElectricity(ctx, room, decimal.Zero)
	require.NoError(t, err)
	_, err = l.AddOtherService(ctx, room)
	require.NoError(t, err)
	_, err = l.AddOtherService(ctx, room)
	require.NoError(t, err)

	_, err = l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ledger.ErrIncompleteCharges)
	_, err = l.SetPaymentStatus(ctx, room, models.PaymentStatusUnpaid)
	assert.ErrorIs(t, err, ledger.ErrIncompleteCharges)

	_, err = l.AddWater(ctx, room, decimal.Zero)
	require.NoError(t, err)
	_, err = l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	assert.NoError(t, err)
}

func TestSettledRoomRejectsStatusChanges(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	addAllCharges(t, l)

	_, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	require.NoError(t, err)

	_, err = l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ledger.ErrAlreadySettled)
	_, err = l.SetPaymentStatus(ctx, room, models.PaymentStatusUnpaid)
	assert.ErrorIs(t, err, ledger.ErrAlreadySettled)

	// a new charge reopens the balance
	_, err = l.AddOtherService(ctx, room)
	require.NoError(t, err)
	account, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	require.NoError(t, err)
	assertDecimal(t, "1700000", account.TotalPaid)
	assert.True(t, account.TotalPaid.GreaterThanOrEqual(account.TotalAmount))
}

func TestUnpaidKeepsTotalPaid(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	addAllCharges(t, l)

	_, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	require.NoError(t, err)
	_, err = l.EditRent(ctx, room, dec("1100000"))
	require.NoError(t, err)

	account, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusUnpaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, account.PaymentStatus)
	assertDecimal(t, "1600000", account.TotalPaid)
	assertDecimal(t, "100000", account.Balance())
	assert.Equal(t, models.StatusLabelUnpaid, account.StatusLabel())
}

func TestInvalidStatusIsRejected(t *testing.T) {
	l, _ := newLedger(t)
	addAllCharges(t, l)

	_, err := l.SetPaymentStatus(context.Background(), room, models.PaymentStatus("Partially Paid"))
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)
}

func TestResetRoom(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	addAllCharges(t, l)
	_, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		account, err := l.ResetRoom(ctx, room)
		require.NoError(t, err)
		assert.Empty(t, account.Charges)
		assert.True(t, account.TotalAmount.IsZero())
		assert.True(t, account.TotalPaid.IsZero())
		assert.Equal(t, models.PaymentStatusUnpaid, account.PaymentStatus)

		label, err := l.GetStatusLabel(room)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLabelNoCharges, label)
	}

	_, err = l.AddRent(ctx, room, dec("1"))
	assert.NoError(t, err, "rent can be set again after a reset")
}

func TestResetAll(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	for _, r := range l.Rooms() {
		_, err := l.AddOtherService(ctx, r)
		require.NoError(t, err)
	}

	require.NoError(t, l.ResetAll(ctx))
	for _, a := range l.Accounts() {
		assert.Equal(t, models.StatusLabelNoCharges, a.StatusLabel(), a.Room)
	}
}

func TestUnknownRoom(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.AddOtherService(context.Background(), "Room 999")
	assert.ErrorIs(t, err, ledger.ErrUnknownRoom)
	_, err = l.GetStatusLabel("Room 999")
	assert.ErrorIs(t, err, ledger.ErrUnknownRoom)
}

func TestTotalAlwaysMatchesCharges(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		value := decimal.NewFromInt(rng.Int63n(1000)).Div(decimal.NewFromInt(10))
		switch rng.Intn(6) {
		case 0:
			l.AddRent(ctx, room, value)
		case 1:
			l.EditRent(ctx, room, value)
		case 2:
			l.AddElectricity(ctx, room, value)
		case 3:
			l.AddWater(ctx, room, value)
		case 4:
			l.AddOtherService(ctx, room)
		case 5:
			if paid, err := l.SetPaymentStatus(ctx, room, models.PaymentStatusPaid); err == nil {
				require.True(t, paid.TotalPaid.GreaterThanOrEqual(paid.TotalAmount), "step %d", i)
			}
		}

		account, err := l.Account(room)
		require.NoError(t, err)
		require.True(t, account.ChargesSum().Equal(account.TotalAmount), "step %d", i)
		require.LessOrEqual(t, countKind(account, models.ChargeKindRent), 1, "step %d", i)
	}
}

func TestMutationsArePersisted(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	addAllCharges(t, l)

	stored, err := store.LoadRooms(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, room, stored[0].Room)
	assertDecimal(t, "1600000", stored[0].TotalAmount)
	assert.False(t, stored[0].UpdatedAt.IsZero())
}

func TestPersistFailureKeepsInMemoryState(t *testing.T) {
	store := &failingStore{MemoryRoomStore: memory.NewMemoryRoomStore()}
	m := metrics.New(prometheus.NewRegistry())
	l, err := ledger.New([]string{room}, ledger.DefaultRates(), store,
		ledger.WithMetrics(m), ledger.WithLogger(quietLogger()))
	require.NoError(t, err)

	account, err := l.AddRent(context.Background(), room, dec("42"))
	require.NoError(t, err)
	assertDecimal(t, "42", account.TotalAmount)

	current, _ := l.Account(room)
	assertDecimal(t, "42", current.TotalAmount)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues(room)))
}

func TestEventsArePublished(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := metrics.New(prometheus.NewRegistry())
	l, _ := newLedger(t, ledger.WithPublisher(pub), ledger.WithMetrics(m))
	ctx := context.Background()

	addAllCharges(t, l)
	_, err := l.AddRent(ctx, room, dec("1"))
	require.ErrorIs(t, err, ledger.ErrDuplicateCharge)

	require.Len(t, pub.events, 4)
	assert.Equal(t, events.RoomRentAdded, pub.events[0].Type)
	assert.Equal(t, events.RoomElectricityAdded, pub.events[1].Type)
	assert.Equal(t, events.RoomWaterAdded, pub.events[2].Type)
	assert.Equal(t, events.RoomServiceAdded, pub.events[3].Type)
	assert.NotEmpty(t, pub.events[0].ID)
	assertDecimal(t, "1600000", pub.events[3].Account.TotalAmount)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues(string(events.RoomRentAdded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("add_rent", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("add_rent", "ok")))
}

func TestLoadRepopulatesRegistry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRoomStore()

	paid := models.NewRoomAccount("Room 102")
	paid.Charges = []models.Charge{
		{Kind: models.ChargeKindRent, Amount: dec("300"), Description: "Monthly rent"},
		{Kind: models.ChargeKindOtherService, Amount: dec("100"), Description: "Other services"},
	}
	paid.TotalAmount = dec("999") // out of sync with charges
	paid.TotalPaid = dec("400")
	paid.PaymentStatus = models.PaymentStatusPaid
	require.NoError(t, store.SaveRoom(ctx, paid))
	require.NoError(t, store.SaveRoom(ctx, models.NewRoomAccount("Room 404")))

	l, err := ledger.New([]string{"Room 101", "Room 102"}, ledger.DefaultRates(), store, ledger.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, l.Load(ctx))

	accounts := l.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "Room 101", accounts[0].Room)
	assert.Equal(t, models.StatusLabelNoCharges, accounts[0].StatusLabel())
	assert.Equal(t, "Room 102", accounts[1].Room)
	assertDecimal(t, "400", accounts[1].TotalAmount)
	assert.Equal(t, models.StatusLabelPaid, accounts[1].StatusLabel())

	_, err = l.AddRent(ctx, "Room 102", dec("1"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateCharge)
}

func TestLoadRejectsCorruptAccount(t *testing.T) {
	ctx := context.Background()
	rooms := []string{"Room 101", "Room 102", "Room 103", "Room 104"}

	corrupt := map[string][]models.Charge{
		"Room 101": {
			{Kind: models.ChargeKindRent, Amount: dec("100"), Description: "Monthly rent"},
			{Kind: models.ChargeKindRent, Amount: dec("-50"), Description: "Monthly rent"},
		},
		"Room 102": {
			{Kind: models.ChargeKindWater, Amount: dec("-30"), Description: "Water (-1 m3)"},
		},
		"Room 103": {
			{Kind: "", Amount: dec("10")},
		},
	}

	store := memory.NewMemoryRoomStore()
	for room, charges := range corrupt {
		a := models.NewRoomAccount(room)
		a.Charges = charges
		a.TotalAmount = a.ChargesSum()
		require.NoError(t, store.SaveRoom(ctx, a))
	}
	healthy := models.NewRoomAccount("Room 104")
	healthy.Charges = []models.Charge{{Kind: models.ChargeKindRent, Amount: dec("100"), Description: "Monthly rent"}}
	healthy.TotalAmount = dec("100")
	require.NoError(t, store.SaveRoom(ctx, healthy))

	l, err := ledger.New(rooms, ledger.DefaultRates(), store, ledger.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, l.Load(ctx))

	for room := range corrupt {
		a, err := l.Account(room)
		require.NoError(t, err)
		assert.Empty(t, a.Charges, room)
		assert.True(t, a.TotalAmount.IsZero(), room)
		assert.Equal(t, models.StatusLabelNoCharges, a.StatusLabel(), room)
	}

	a, err := l.Account("Room 104")
	require.NoError(t, err)
	assert.Equal(t, 1, countKind(a, models.ChargeKindRent))
	assertDecimal(t, "100", a.TotalAmount)

	// the reset room accepts a fresh rent
	_, err = l.AddRent(ctx, "Room 101", dec("100"))
	assert.NoError(t, err)
}

func TestRatesValidateInFixedOrder(t *testing.T) {
	rates := ledger.Rates{Electricity: dec("-1"), Water: dec("-2"), ServiceFee: dec("-3")}
	for i := 0; i < 20; i++ {
		err := rates.Validate()
		require.ErrorIs(t, err, ledger.ErrInvalidAmount)
		assert.Contains(t, err.Error(), "electricity rate")
	}

	rates.Electricity = decimal.Zero
	assert.Contains(t, rates.Validate().Error(), "water rate")
	rates.Water = decimal.Zero
	assert.Contains(t, rates.Validate().Error(), "service fee")
	rates.ServiceFee = decimal.Zero
	assert.NoError(t, rates.Validate())
}

func TestNewValidatesInput(t *testing.T) {
	store := memory.NewMemoryRoomStore()

	_, err := ledger.New(nil, ledger.DefaultRates(), store)
	assert.Error(t, err)
	_, err = ledger.New([]string{"A", "A"}, ledger.DefaultRates(), store)
	assert.Error(t, err)
	_, err = ledger.New([]string{"A"}, ledger.DefaultRates(), nil)
	assert.Error(t, err)

	rates := ledger.DefaultRates()
	rates.Water = dec("-1")
	_, err = ledger.New([]string{"A"}, rates, store)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestRatesAreConfigurable(t *testing.T) {
	rates := ledger.Rates{Electricity: dec("4"), Water: dec("30"), ServiceFee: dec("100000")}
	l, err := ledger.New([]string{room}, rates, memory.NewMemoryRoomStore(), ledger.WithLogger(quietLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.AddElectricity(ctx, room, dec("12.5"))
	require.NoError(t, err)
	account, err := l.AddWater(ctx, room, dec("2"))
	require.NoError(t, err)

	assertDecimal(t, "50", account.Charges[0].Amount)
	assertDecimal(t, "60", account.Charges[1].Amount)
	assertDecimal(t, "110", account.TotalAmount)
}

func countKind(a models.RoomAccount, kind models.ChargeKind) int {
	n := 0
	for _, c := range a.Charges {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
