package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS room_accounts (
		room_id        TEXT PRIMARY KEY,
		total_amount   NUMERIC NOT NULL DEFAULT 0,
		total_paid     NUMERIC NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL DEFAULT 'Unpaid',
		charges        JSONB NOT NULL DEFAULT '[]',
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresRoomStore keeps one row per room with the charge list as JSONB.
type PostgresRoomStore struct {
	db *sql.DB
}

func NewPostgresRoomStore(db *sql.DB) *PostgresRoomStore {
	return &PostgresRoomStore{
		db: db,
	}
}

func (p *PostgresRoomStore) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := p.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

func (p *PostgresRoomStore) SaveRoom(ctx context.Context, account models.RoomAccount) error {
	const query = `INSERT INTO room_accounts (room_id, total_amount, total_paid, payment_status, charges, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (room_id) DO UPDATE SET
		total_amount = EXCLUDED.total_amount,
		total_paid = EXCLUDED.total_paid,
		payment_status = EXCLUDED.payment_status,
		charges = EXCLUDED.charges,
		updated_at = EXCLUDED.updated_at`

	charges, err := json.Marshal(account.Charges)
	if err != nil {
		return fmt.Errorf("encoding charges: %w", err)
	}

	_, err = p.db.ExecContext(ctx, query,
		account.Room,
		account.TotalAmount,
		account.TotalPaid,
		string(account.PaymentStatus),
		string(charges),
		account.UpdatedAt,
	)
	return err
}

func (p *PostgresRoomStore) LoadRooms(ctx context.Context) ([]models.RoomAccount, error) {
	const query = `SELECT room_id, total_amount, total_paid, payment_status, charges, updated_at
	FROM room_accounts ORDER BY room_id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.RoomAccount
	for rows.Next() {
		var (
			account models.RoomAccount
			status  string
			charges []byte
		)
		if err := rows.Scan(
			&account.Room,
			&account.TotalAmount,
			&account.TotalPaid,
			&status,
			&charges,
			&account.UpdatedAt,
		); err != nil {
			return nil, err
		}

		account.PaymentStatus, err = models.ParsePaymentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("room %s: %w", account.Room, err)
		}
		if err := json.Unmarshal(charges, &account.Charges); err != nil {
			return nil, fmt.Errorf("room %s: decoding charges: %w", account.Room, err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *PostgresRoomStore) Close() error {
	return p.db.Close()
}

var _ interfaces.RoomStore = (*PostgresRoomStore)(nil)
