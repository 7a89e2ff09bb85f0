package store

import (
	"context"
	"testing"
	"time"

	"ludoarena/internal/domain"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u := domain.NewUser("u1", "Alice")
	if err := s.Put(ctx, u); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserName != "Alice" || got.Coins != domain.StartingCoins {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.LastUpdate.IsZero() {
		t.Fatal("last_update was not stamped on put")
	}

	if _, err := s.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorePutIsDefensiveCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := domain.NewUser("u1", "Alice")
	s.Put(ctx, u)

	u.Coins = 999999 // mutate the caller's copy after the put returned

	got, _ := s.Get(ctx, "u1")
	if got.Coins == 999999 {
		t.Fatal("store aliased the caller's User instead of copying it")
	}
}

func TestLeaderboardTopAndRankAgree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	wins := map[string]int64{"a": 10, "b": 30, "c": 20}
	for id, w := range wins {
		u := domain.NewUser(id, id)
		s.Put(ctx, u)
		if err := s.LeaderboardUpsert(ctx, id, w); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	top, err := s.LeaderboardTop(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	wantOrder := []string{"b", "c", "a"}
	if len(top) != len(wantOrder) {
		t.Fatalf("top length = %d, want %d", len(top), len(wantOrder))
	}
	for i, id := range wantOrder {
		if top[i].UserID != id {
			t.Fatalf("top[%d] = %s, want %s", i, top[i].UserID, id)
		}
	}

	for i, id := range wantOrder {
		rank, err := s.LeaderboardRank(ctx, id)
		if err != nil {
			t.Fatalf("rank %s: %v", id, err)
		}
		if rank != i+1 {
			t.Fatalf("rank(%s) = %d, want %d", id, rank, i+1)
		}
	}

	if rank, _ := s.LeaderboardRank(ctx, "ghost"); rank != 0 {
		t.Fatalf("rank(missing user) = %d, want 0", rank)
	}
}

func TestSessionExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SessionPut(ctx, "sess1", []byte("payload"), 10*time.Millisecond); err != nil {
		t.Fatalf("session put: %v", err)
	}
	if _, err := s.SessionGet(ctx, "sess1"); err != nil {
		t.Fatalf("session get before expiry: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := s.SessionGet(ctx, "sess1"); err != ErrNotFound {
		t.Fatalf("session get after expiry = %v, want ErrNotFound", err)
	}
}
