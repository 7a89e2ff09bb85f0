package store

import (
	"context"
	"sync"
	"time"

	"ludoarena/internal/domain"
	"ludoarena/internal/logger"
	"ludoarena/internal/metrics"
)

// demoteLogBackoff bounds how often a sustained outage re-logs the same
// operation demoting to the in-memory path.
const demoteLogBackoff = 30 * time.Second

// Facade prefers the durable backend while it reports itself connected and
// falls back to the in-memory map otherwise. Failure to reach the durable
// backend never fails a caller — it demotes that one call.
type Facade struct {
	durable UserStore
	memory  UserStore

	mu          sync.Mutex
	lastDemoted map[string]time.Time
}

func NewFacade(durable, memory UserStore) *Facade {
	return &Facade{
		durable:     durable,
		memory:      memory,
		lastDemoted: make(map[string]time.Time),
	}
}

func (f *Facade) connected(ctx context.Context) bool {
	if f.durable == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return f.durable.Connected(cctx)
}

func (f *Facade) logDemote(op string, err error) {
	metrics.StoreDemotionsTotal.WithLabelValues(op).Inc()
	f.mu.Lock()
	last, seen := f.lastDemoted[op]
	if seen && time.Since(last) < demoteLogBackoff {
		f.mu.Unlock()
		return
	}
	f.lastDemoted[op] = time.Now()
	f.mu.Unlock()
	logger.Warn("store: demoted to in-memory fallback", "op", op, "error", err)
}

func (f *Facade) Get(ctx context.Context, userID string) (*domain.User, error) {
	if f.connected(ctx) {
		u, err := f.durable.Get(ctx, userID)
		if err == nil || err == ErrNotFound {
			return u, err
		}
		f.logDemote("get", err)
	}
	return f.memory.Get(ctx, userID)
}

func (f *Facade) Put(ctx context.Context, u *domain.User) error {
	// In-memory is authoritative for process-local reads; keep it current
	// regardless of durable-backend health, then write through.
	_ = f.memory.Put(ctx, u)
	if f.connected(ctx) {
		if err := f.durable.Put(ctx, u); err != nil {
			f.logDemote("put", err)
		}
	}
	return nil
}

func (f *Facade) Delete(ctx context.Context, userID string) error {
	_ = f.memory.Delete(ctx, userID)
	if f.connected(ctx) {
		if err := f.durable.Delete(ctx, userID); err != nil {
			f.logDemote("delete", err)
		}
	}
	return nil
}

func (f *Facade) ListAll(ctx context.Context) ([]*domain.User, error) {
	if f.connected(ctx) {
		users, err := f.durable.ListAll(ctx)
		if err == nil {
			return users, nil
		}
		f.logDemote("list_all", err)
	}
	return f.memory.ListAll(ctx)
}

func (f *Facade) LeaderboardUpsert(ctx context.Context, userID string, winCount int64) error {
	_ = f.memory.LeaderboardUpsert(ctx, userID, winCount)
	if f.connected(ctx) {
		if err := f.durable.LeaderboardUpsert(ctx, userID, winCount); err != nil {
			f.logDemote("leaderboard_upsert", err)
		}
	}
	return nil
}

func (f *Facade) LeaderboardTop(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if f.connected(ctx) {
		entries, err := f.durable.LeaderboardTop(ctx, n)
		if err == nil {
			return entries, nil
		}
		f.logDemote("leaderboard_top", err)
	}
	return f.memory.LeaderboardTop(ctx, n)
}

func (f *Facade) LeaderboardRank(ctx context.Context, userID string) (int, error) {
	if f.connected(ctx) {
		rank, err := f.durable.LeaderboardRank(ctx, userID)
		if err == nil {
			return rank, nil
		}
		f.logDemote("leaderboard_rank", err)
	}
	return f.memory.LeaderboardRank(ctx, userID)
}

func (f *Facade) SessionPut(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error {
	_ = f.memory.SessionPut(ctx, sessionID, data, ttl)
	if f.connected(ctx) {
		if err := f.durable.SessionPut(ctx, sessionID, data, ttl); err != nil {
			f.logDemote("session_put", err)
		}
	}
	return nil
}

func (f *Facade) SessionGet(ctx context.Context, sessionID string) ([]byte, error) {
	if f.connected(ctx) {
		data, err := f.durable.SessionGet(ctx, sessionID)
		if err == nil || err == ErrNotFound {
			return data, err
		}
		f.logDemote("session_get", err)
	}
	return f.memory.SessionGet(ctx, sessionID)
}

func (f *Facade) SessionDelete(ctx context.Context, sessionID string) error {
	_ = f.memory.SessionDelete(ctx, sessionID)
	if f.connected(ctx) {
		if err := f.durable.SessionDelete(ctx, sessionID); err != nil {
			f.logDemote("session_delete", err)
		}
	}
	return nil
}

func (f *Facade) Connected(ctx context.Context) bool {
	return f.connected(ctx)
}
