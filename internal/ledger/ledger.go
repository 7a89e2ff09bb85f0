// Package ledger is a supplemental, non-authoritative settlement audit
// trail. It is never consulted to answer a User Store query — the user
// store already carries authoritative balances — but it mirrors the
// teacher's habit of persisting one game_history row per match for
// analytics, adapted here to one row per settled participant.
package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ludoarena/internal/logger"
)

// Entry is one settled participant's row.
type Entry struct {
	RoomID      string
	UserID      string
	BetAmount   int64
	WinningCoin int64
	PlayerRank  int
}

// Ledger records settlement rows. Implementations must be best-effort: a
// failed write must never block or fail a settlement.
type Ledger interface {
	RecordSettlement(ctx context.Context, e Entry) error
}

// PostgresLedger writes to a Postgres table via pgx, the way the teacher's
// repository.GameHistoryRepository and TransactionRepository persist rows
// after a match. Absence of a DSN at startup simply means this type is
// never constructed — settlement treats a nil Ledger as "disabled".
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) RecordSettlement(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO settlement_ledger (room_id, user_id, bet_amount, winning_coin, player_rank)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.RoomID, e.UserID, e.BetAmount, e.WinningCoin, e.PlayerRank,
	)
	return err
}

// NoopLedger discards every entry. Used when POSTGRES_DSN is unset so the
// settlement path never has to branch on a nil interface value.
type NoopLedger struct{}

func (NoopLedger) RecordSettlement(ctx context.Context, e Entry) error {
	logger.Debug("ledger disabled, dropping settlement record", "room_id", e.RoomID, "user_id", e.UserID)
	return nil
}
