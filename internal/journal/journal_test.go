package journal

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/monitor"
)

const sqliteSchema = `
CREATE TABLE activity_journal (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      INTEGER   NOT NULL,
    network      TEXT      NOT NULL,
    address      TEXT      NOT NULL,
    counterparty TEXT      NOT NULL DEFAULT '',
    direction    TEXT      NOT NULL,
    lamports     INTEGER   NOT NULL,
    balance      INTEGER,
    signature    TEXT      NOT NULL,
    slot         INTEGER,
    created_at   TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX activity_journal_user_sig_dir ON activity_journal (user_id, network, signature, direction);`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	s := New(db)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestNotifyAndRecordTransfer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addr := ledger.Address{4}

	s.Notify(ctx, 7, monitor.Event{
		Network: ledger.Devnet, Address: addr, Kind: monitor.KindDeposit,
		Delta: 500, Balance: 1500, Signature: "sigA", Slot: 99,
	})
	s.Notify(ctx, 7, monitor.Event{
		Network: ledger.Devnet, Address: addr, Kind: monitor.KindDeposit,
		Delta: 500, Balance: 1500, Signature: "sigA", Slot: 99,
	})
	s.RecordTransfer(ctx, 7, ledger.Devnet, addr, ledger.Address{5}, 250, "sigB")
	s.Notify(ctx, 8, monitor.Event{Network: ledger.Testnet, Kind: monitor.KindWithdrawal, Delta: -1, Signature: "other"})

	got, err := s.Recent(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, got, 2, "duplicate notification must be ignored")

	assert.Equal(t, DirectionTransferOut, got[0].Direction)
	assert.Equal(t, int64(250), got[0].Lamports)
	assert.Equal(t, ledger.Address{5}.String(), got[0].Counterparty)

	assert.Equal(t, DirectionDeposit, got[1].Direction)
	assert.Equal(t, int64(500), got[1].Lamports)
	assert.Equal(t, int64(1500), got[1].Balance.Int64)
	assert.Equal(t, int64(99), got[1].Slot.Int64)
	assert.Equal(t, "devnet", got[1].Network)
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, sig := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, Entry{UserID: 1, Network: "devnet", Address: "x", Direction: DirectionDeposit, Lamports: 1, Signature: sig}))
	}
	got, err := s.Recent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Signature)
	assert.Equal(t, "b", got[1].Signature)
}
