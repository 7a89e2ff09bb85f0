// Package settlement computes and applies end-of-game payouts. It is the
// only component that both reads the final room roster and writes through
// to the user store, so it owns the ranked-results computation the room
// state machine includes verbatim in its game_over payload.
package settlement

import (
	"context"
	"sort"
	"time"

	"ludoarena/internal/domain"
	"ludoarena/internal/ledger"
	"ludoarena/internal/logger"
	"ludoarena/internal/metrics"
	"ludoarena/internal/room"
	"ludoarena/internal/store"
)

// Settler implements room.Settler against a user store and an optional,
// best-effort audit ledger.
type Settler struct {
	Store  store.UserStore
	Ledger ledger.Ledger // may be nil; writes are skipped, never block settlement
}

func New(s store.UserStore, l ledger.Ledger) *Settler {
	return &Settler{Store: s, Ledger: l}
}

// Settle implements room.Settler. Results are returned in ranked order for
// the room to emit verbatim as game_over; every per-user credit is
// attempted before returning, per §7's no-partial-commit policy.
func (s *Settler) Settle(r *room.Room) []room.SettlementResult {
	ranked := rank(r.Players)
	out := make([]room.SettlementResult, 0, len(ranked))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i, p := range ranked {
		playerRank := i + 1
		winningCoin := payout(r.MaxPlayers, r.BetAmount, p.Status, playerRank)

		s.applyCredit(ctx, r.RoomID, r.BetAmount, p, winningCoin, playerRank)

		out = append(out, room.SettlementResult{
			UserID:       p.UserID,
			WinningCoin:  winningCoin,
			PlayerRank:   playerRank,
			PlayerStatus: int(p.Status),
		})
	}
	metrics.SettlementsTotal.Inc()
	return out
}

// rank sorts WIN statuses first (stable), preserving roster order within
// each bucket — peer ids are never reordered, only the settlement view is.
func rank(players []*domain.Player) []*domain.Player {
	out := make([]*domain.Player, len(players))
	copy(out, players)
	sort.SliceStable(out, func(i, j int) bool {
		iWin := out[i].Status == domain.PlayerWin
		jWin := out[j].Status == domain.PlayerWin
		return iWin && !jWin
	})
	return out
}

// payout implements §4.7's table. Non-WIN statuses always pay 0 regardless
// of rank; the asymmetric formulas preserve the house's zero-rake design.
func payout(maxPlayers int, betAmount int64, status domain.PlayerStatus, playerRank int) int64 {
	if status != domain.PlayerWin {
		return 0
	}
	switch maxPlayers {
	case 2:
		if playerRank == 1 {
			return 2 * betAmount
		}
		return 0
	case 4:
		switch playerRank {
		case 1:
			return 3 * betAmount
		case 2:
			return 1 * betAmount
		default:
			return 0
		}
	default:
		return 0
	}
}

func (s *Settler) applyCredit(ctx context.Context, roomID string, betAmount int64, p *domain.Player, winningCoin int64, playerRank int) {
	u, err := s.Store.Get(ctx, p.UserID)
	if err != nil {
		logger.Warn("settlement: user lookup failed, skipping credit", "user_id", p.UserID, "error", err)
		return
	}

	u.Coins += winningCoin
	u.TotalGamesPlayed++
	if p.Status == domain.PlayerWin {
		u.WinCount++
	} else {
		u.LostCount++
	}

	if err := s.Store.Put(ctx, u); err != nil {
		logger.Warn("settlement: persist failed", "user_id", p.UserID, "error", err)
	}
	if err := s.Store.LeaderboardUpsert(ctx, u.UserID, u.WinCount); err != nil {
		logger.Warn("settlement: leaderboard upsert failed", "user_id", p.UserID, "error", err)
	}

	if s.Ledger != nil {
		if err := s.Ledger.RecordSettlement(ctx, ledger.Entry{
			RoomID:      roomID,
			UserID:      p.UserID,
			BetAmount:   betAmount,
			WinningCoin: winningCoin,
			PlayerRank:  playerRank,
		}); err != nil {
			logger.Warn("settlement: ledger write failed (non-fatal)", "room_id", roomID, "error", err)
		}
	}
}
