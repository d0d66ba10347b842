// Package journal appends detected balance changes and confirmed transfers
// to Postgres. It never stores key material or session state.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/monitor"
)

const (
	component    = "journal"
	writeTimeout = 2 * time.Second
	// DefaultLimit is the number of entries shown by /history.
	DefaultLimit = 10
)

// Direction is the kind of journaled movement.
type Direction string

const (
	DirectionDeposit     Direction = "deposit"
	DirectionWithdrawal  Direction = "withdrawal"
	DirectionTransferOut Direction = "transfer_out"
)

// Entry is one journal row.
type Entry struct {
	ID           int64         `db:"id"`
	UserID       int64         `db:"user_id"`
	Network      string        `db:"network"`
	Address      string        `db:"address"`
	Counterparty string        `db:"counterparty"`
	Direction    Direction     `db:"direction"`
	Lamports     int64         `db:"lamports"`
	Balance      sql.NullInt64 `db:"balance"`
	Signature    string        `db:"signature"`
	Slot         sql.NullInt64 `db:"slot"`
	CreatedAt    time.Time     `db:"created_at"`
}

// Store reads and writes the activity_journal table.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an open pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const insertEntry = `
INSERT INTO activity_journal
    (user_id, network, address, counterparty, direction, lamports, balance, signature, slot, created_at)
VALUES
    (:user_id, :network, :address, :counterparty, :direction, :lamports, :balance, :signature, :slot, :created_at)
ON CONFLICT DO NOTHING`

// Append inserts e. Duplicate (user, network, signature, direction) rows are ignored.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if _, err := s.db.NamedExecContext(ctx, insertEntry, e); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// Recent returns the user's newest entries first.
func (s *Store) Recent(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := s.db.Rebind(`
SELECT id, user_id, network, address, counterparty, direction, lamports, balance, signature, slot, created_at
FROM activity_journal
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`)
	var out []Entry
	if err := s.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	return out, nil
}

// Notify implements monitor.Sink.
func (s *Store) Notify(ctx context.Context, userID int64, ev monitor.Event) {
	dir := DirectionWithdrawal
	if ev.Kind == monitor.KindDeposit {
		dir = DirectionDeposit
	}
	s.write(ctx, Entry{
		UserID:    userID,
		Network:   string(ev.Network),
		Address:   ev.Address.String(),
		Direction: dir,
		Lamports:  int64(ev.Amount()),
		Balance:   sql.NullInt64{Int64: int64(ev.Balance), Valid: true},
		Signature: ev.Signature,
		Slot:      sql.NullInt64{Int64: int64(ev.Slot), Valid: ev.Slot > 0},
	})
}

// RecordTransfer journals a confirmed outgoing transfer.
func (s *Store) RecordTransfer(ctx context.Context, userID int64, network ledger.Network, from, to ledger.Address, lamports uint64, signature string) {
	s.write(ctx, Entry{
		UserID:       userID,
		Network:      string(network),
		Address:      from.String(),
		Counterparty: to.String(),
		Direction:    DirectionTransferOut,
		Lamports:     int64(lamports),
		Signature:    signature,
	})
}

func (s *Store) write(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := s.Append(ctx, e); err != nil {
		logger.Warn(ctx, component, "journal.append",
			slog.String("status", "fail"),
			slog.String("network", e.Network),
			slog.String("signature", e.Signature),
			slog.String("err", err.Error()),
		)
	}
}
