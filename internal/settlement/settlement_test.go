package settlement

import (
	"context"
	"testing"
	"time"

	"ludoarena/internal/domain"
	"ludoarena/internal/ledger"
	"ludoarena/internal/room"
	"ludoarena/internal/session"
	"ludoarena/internal/store"
)

type noopEmitter struct{}

func (noopEmitter) ToUser(userID, eventType string, payload any)                    {}
func (noopEmitter) ToRoom(r *room.Room, eventType string, payload any, exclude string) {}

type fakeHandle string

func (h fakeHandle) ID() string { return string(h) }

// seatedRoom builds a room via the real manager/seat path (so peer ids and
// roster bookkeeping match production), then overrides each player's status
// directly to simulate the requested end-of-game outcome before settlement
// runs against it synchronously.
func seatedRoom(t *testing.T, maxPlayers int, betAmount int64, statuses []domain.PlayerStatus) *room.Room {
	t.Helper()
	m := room.NewManager(noopEmitter{}, nil, time.Hour, time.Hour)
	r := m.CreateMatchRoom("host", betAmount, maxPlayers)
	for i := 0; i < maxPlayers; i++ {
		userID := string(rune('a' + i))
		if err := r.Seat(userID, userID, fakeHandle(userID)); err != nil {
			t.Fatalf("seat %s: %v", userID, err)
		}
	}
	for i, s := range statuses {
		p := r.PlayerByPeerID(i)
		if p == nil {
			t.Fatalf("no player at peer %d", i)
		}
		p.Status = s
	}
	return r
}

func seedUser(t *testing.T, s store.UserStore, userID string, coins int64) {
	t.Helper()
	u := domain.NewUser(userID, userID)
	u.Coins = coins
	if err := s.Put(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", userID, err)
	}
}

func TestSettleTwoPlayerWinnerTakesDouble(t *testing.T) {
	memStore := store.NewMemoryStore()
	const bet int64 = 100
	seedUser(t, memStore, "a", 1000-bet)
	seedUser(t, memStore, "b", 1000-bet)

	r := seatedRoom(t, 2, bet, []domain.PlayerStatus{domain.PlayerWin, domain.PlayerTimeout})
	s := New(memStore, ledger.NoopLedger{})

	results := s.Settle(r)

	var total int64
	for _, res := range results {
		total += res.WinningCoin
	}
	if total != 2*bet {
		t.Fatalf("sum of winning_coin = %d, want %d", total, 2*bet)
	}

	a, _ := memStore.Get(context.Background(), "a")
	if delta := a.Coins - (1000 - bet); delta != 2*bet {
		t.Fatalf("winner coin delta = %d, want %d", delta, 2*bet)
	}
	b, _ := memStore.Get(context.Background(), "b")
	if delta := b.Coins - (1000 - bet); delta != 0 {
		t.Fatalf("loser coin delta = %d, want 0", delta)
	}
}

func TestSettleFourPlayerTwoWinnersPayoutTable(t *testing.T) {
	memStore := store.NewMemoryStore()
	const bet int64 = 50
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		seedUser(t, memStore, id, 1000-bet)
	}

	r := seatedRoom(t, 4, bet, []domain.PlayerStatus{
		domain.PlayerWin,
		domain.PlayerWin,
		domain.PlayerTimeout,
		domain.PlayerLeft,
	})
	s := New(memStore, ledger.NoopLedger{})

	results := s.Settle(r)

	var total int64
	byUser := make(map[string]int64)
	for _, res := range results {
		total += res.WinningCoin
		byUser[res.UserID] = res.WinningCoin
	}
	if total != 4*bet {
		t.Fatalf("sum of winning_coin = %d, want %d (rank1=3x, rank2=1x)", total, 4*bet)
	}

	ranks := make(map[string]int)
	for _, res := range results {
		ranks[res.UserID] = res.PlayerRank
	}
	for _, res := range results {
		switch {
		case res.PlayerStatus != int(domain.PlayerWin):
			if res.WinningCoin != 0 {
				t.Fatalf("non-winner %s paid %d, want 0", res.UserID, res.WinningCoin)
			}
		case res.PlayerRank == 1:
			if res.WinningCoin != 3*bet {
				t.Fatalf("rank1 winner paid %d, want %d", res.WinningCoin, 3*bet)
			}
		case res.PlayerRank == 2:
			if res.WinningCoin != 1*bet {
				t.Fatalf("rank2 winner paid %d, want %d", res.WinningCoin, bet)
			}
		default:
			t.Fatalf("unexpected winner rank %d for %s", res.PlayerRank, res.UserID)
		}
	}

	for _, id := range ids {
		u, _ := memStore.Get(context.Background(), id)
		want := byUser[id]
		if delta := u.Coins - (1000 - bet); delta != want {
			t.Fatalf("%s coin delta = %d, want %d", id, delta, want)
		}
	}
}

func TestSettleUpdatesWinLossCountersAndLeaderboard(t *testing.T) {
	memStore := store.NewMemoryStore()
	const bet int64 = 10
	seedUser(t, memStore, "a", 990)
	seedUser(t, memStore, "b", 990)

	r := seatedRoom(t, 2, bet, []domain.PlayerStatus{domain.PlayerWin, domain.PlayerTimeout})
	s := New(memStore, ledger.NoopLedger{})
	s.Settle(r)

	a, _ := memStore.Get(context.Background(), "a")
	if a.WinCount != 1 || a.TotalGamesPlayed != 1 {
		t.Fatalf("winner counters = win:%d games:%d, want 1,1", a.WinCount, a.TotalGamesPlayed)
	}
	b, _ := memStore.Get(context.Background(), "b")
	if b.LostCount != 1 || b.TotalGamesPlayed != 1 {
		t.Fatalf("loser counters = lost:%d games:%d, want 1,1", b.LostCount, b.TotalGamesPlayed)
	}

	rank, err := memStore.LeaderboardRank(context.Background(), "a")
	if err != nil || rank != 1 {
		t.Fatalf("leaderboard rank for winner = %d, %v, want 1, nil", rank, err)
	}
}

var _ session.Handle = fakeHandle("")
