// Package store implements the persisted user/leaderboard/session layer.
//
// Two interchangeable backends satisfy UserStore: a durable one (Redis) and
// an in-memory fallback. Facade prefers the durable backend while it reports
// itself connected and demotes silently to the in-memory map otherwise —
// a failure to reach the durable backend must never fail a caller.
package store

import (
	"context"
	"errors"
	"time"

	"ludoarena/internal/domain"
)

// ErrNotFound is returned by Get when no user exists for the given id.
var ErrNotFound = errors.New("store: user not found")

// UserStore is the persistence contract §4.1 names: profile, leaderboard,
// and session operations, all addressed by user_id or session_id.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, userID string) error
	ListAll(ctx context.Context) ([]*domain.User, error)

	LeaderboardUpsert(ctx context.Context, userID string, winCount int64) error
	LeaderboardTop(ctx context.Context, n int) ([]LeaderboardEntry, error)
	LeaderboardRank(ctx context.Context, userID string) (int, error)

	SessionPut(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error
	SessionGet(ctx context.Context, sessionID string) ([]byte, error)
	SessionDelete(ctx context.Context, sessionID string) error

	// Connected reports whether this backend is currently reachable. The
	// in-memory backend always reports true; the durable backend probes.
	Connected(ctx context.Context) bool
}

// LeaderboardEntry is one row of a win-sorted leaderboard listing.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	WinCount int64  `json:"win_count"`
}

// DefaultSessionTTL matches the persisted-state layout's documented default.
const DefaultSessionTTL = 3600 * time.Second
