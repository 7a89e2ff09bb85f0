// Package room implements the per-room state machine: matchmaking seating,
// the turn timer, dice/token relay, disconnect grace, and the transitions
// that drive a room from WAITING through PLAYING to FINISHED.
//
// Every inbound event for a room — whether it originates from a client
// message or a timer firing — is modeled as a tagged event and processed
// one at a time by that room's own goroutine (run). This removes the
// native race between a timer callback and a concurrent client handler:
// both are just messages delivered to the same mailbox.
package room

import (
	"context"
	"sync"
	"time"

	"ludoarena/internal/domain"
	"ludoarena/internal/logger"
	"ludoarena/internal/metrics"
	"ludoarena/internal/session"
)

// DefaultTurnTimeout is the one-shot per-turn limit (§4.5).
const DefaultTurnTimeout = 30 * time.Second

// DefaultDisconnectGrace is the reconnection window after a transport drop (§4.6).
const DefaultDisconnectGrace = 30 * time.Second

// winAnimationDelay is the settle delay after a sole-survivor win by
// triple-timeout (§4.4, §4.5). Independent of the turn timer.
const winAnimationDelay = 2 * time.Second

// deletionDelay is how long a FINISHED room lingers in the registry.
const deletionDelay = 10 * time.Second

// Room is one matchmade or friend-created table and its execution loop.
type Room struct {
	domain.Room

	mu     sync.RWMutex // guards fields read from outside the run goroutine (status, players) for status reporting
	inbox  chan event
	cancel context.CancelFunc

	emitter  Emitter
	settler  Settler
	onDone   func(roomID string) // removes the room from the registry (Manager.Remove)

	turnTimeout     time.Duration
	disconnectGrace time.Duration

	turnTimer    *time.Timer
	turnTimerSeq uint64

	graceTimers map[string]*time.Timer // userID -> pending disconnect-grace timer
}

func newRoom(id, hostUserID string, betAmount int64, maxPlayers int, friend bool, turnTimeout, disconnectGrace time.Duration, emitter Emitter, settler Settler, onDone func(string)) *Room {
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	if disconnectGrace <= 0 {
		disconnectGrace = DefaultDisconnectGrace
	}
	r := &Room{
		Room: domain.Room{
			RoomID:     id,
			HostUserID: hostUserID,
			BetAmount:  betAmount,
			MaxPlayers: maxPlayers,
			Status:     domain.RoomWaiting,
			CreatedAt:  time.Now(),
			IsFriend:   friend,
		},
		inbox:           make(chan event, 64),
		emitter:         emitter,
		settler:         settler,
		onDone:          onDone,
		turnTimeout:     turnTimeout,
		disconnectGrace: disconnectGrace,
		graceTimers:     make(map[string]*time.Timer),
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.run(ctx)
	return r
}

func (r *Room) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.inbox:
			r.dispatch(ev)
		}
	}
}

func (r *Room) dispatch(ev event) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("room: handler panic recovered", "room_id", r.RoomID, "panic", rec)
		}
	}()

	switch ev.kind {
	case evSeat:
		ev.seat.done <- r.handleSeat(ev.seat.player)
	case evDiceSend:
		r.handleDiceSend(ev.senderUID, ev.dice)
	case evTokenSend:
		r.handleTokenSend(ev.senderUID, ev.token)
	case evTokenReset:
		r.handleTokenReset(ev.senderUID, ev.token)
	case evChangeTurn:
		r.handleChangeTurn(ev.senderUID)
	case evWinGame:
		r.handleWinGame(ev.senderUID, ev.win)
	case evLeaveRoom:
		r.handleLeaveRoom(ev.senderUID)
	case evChat:
		r.handleChat(ev.senderUID, ev.chat)
	case evEmoji:
		r.handleEmoji(ev.senderUID, ev.emoji)
	case evGift:
		r.handleGift(ev.senderUID, ev.gift)
	case evReconnect:
		ev.reconnect.done <- r.handleReconnect(ev.reconnect.userID, ev.reconnect.handle)
	case evTurnTimerFire:
		r.handleTurnTimerFire(ev.timerSeq)
	case evDisconnectGraceFire:
		r.handleDisconnectGraceFire(ev.senderUID, ev.handleID)
	case evDelayedSettleFire:
		r.handleDelayedSettle()
	}
}

func (r *Room) setStatus(s domain.RoomStatus) {
	r.mu.Lock()
	r.Status = s
	r.mu.Unlock()
}

// StatusSnapshot is a concurrency-safe read of the fields the status
// surface and reconnection payloads need from outside the room goroutine.
func (r *Room) StatusSnapshot() (status domain.RoomStatus, playerCount int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status, len(r.Players)
}

// --- seating -----------------------------------------------------------

// Seat is the synchronous, externally-safe entry point used by the
// dispatcher after coin deduction has already succeeded. It blocks until
// the room goroutine has processed the seat request.
func (r *Room) Seat(userID, userName string, handle session.Handle) error {
	done := make(chan error, 1)
	r.inbox <- event{kind: evSeat, seat: &seatRequest{player: &playerSeat{userID: userID, userName: userName, handle: handle}, done: done}}
	return <-done
}

var ErrRoomFull = roomError("room is full")
var ErrGameStarted = roomError("game already started")

type roomError string

func (e roomError) Error() string { return string(e) }

func (r *Room) handleSeat(p *playerSeat) error {
	r.mu.RLock()
	status := r.Status
	full := len(r.Players) >= r.MaxPlayers
	r.mu.RUnlock()

	if status != domain.RoomWaiting {
		return ErrGameStarted
	}
	if full {
		return ErrRoomFull
	}

	peerID := len(r.Players)
	player := &domain.Player{
		UserID:          p.userID,
		UserName:        p.userName,
		PeerID:          peerID,
		Status:          domain.PlayerPlaying,
		JoinedAt:        time.Now(),
		TransportHandle: p.handle.ID(),
	}

	r.mu.Lock()
	r.Players = append(r.Players, player)
	roster := len(r.Players)
	r.mu.Unlock()

	r.emitter.ToRoom(r, "player_joined", map[string]any{
		"peer_id":     peerID,
		"user_name":   p.userName,
		"player_count": roster,
		"max_players": r.MaxPlayers,
	}, "")

	if roster == r.MaxPlayers {
		r.startGame()
	}
	return nil
}

func (r *Room) startGame() {
	r.setStatus(domain.RoomPlaying)
	r.mu.Lock()
	r.CurrentTurn = 0
	r.mu.Unlock()

	userdata := make([]map[string]any, 0, len(r.Players))
	for _, p := range r.Players {
		userdata = append(userdata, map[string]any{
			"user_id":   p.UserID,
			"user_name": p.UserName,
			"peer_id":   p.PeerID,
		})
	}
	r.emitter.ToRoom(r, "game_start", map[string]any{
		"room_id":   r.RoomID,
		"room_coin": r.BetAmount,
		"userdata":  userdata,
	}, "")
	r.armTurnTimer()
}

// --- turn timer ----------------------------------------------------------

func (r *Room) armTurnTimer() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
	}
	r.turnTimerSeq++
	seq := r.turnTimerSeq
	r.turnTimer = time.AfterFunc(r.turnTimeout, func() {
		r.inbox <- event{kind: evTurnTimerFire, timerSeq: seq}
	})
}

func (r *Room) disarmTurnTimer() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	r.turnTimerSeq++
}

func (r *Room) handleTurnTimerFire(seq uint64) {
	if r.Status != domain.RoomPlaying {
		return
	}
	if seq != r.turnTimerSeq {
		return // superseded by a rearm or disarm; stale fire, no-op
	}

	cur := r.PlayerByPeerID(r.CurrentTurn)
	if cur == nil {
		return
	}
	cur.NumOfTimeout++
	metrics.TurnTimeoutsTotal.Inc()
	if cur.NumOfTimeout < domain.MaxTimeouts {
		r.emitter.ToRoom(r, "user_timeout_counter", map[string]any{
			"peer_id":      cur.PeerID,
			"numoftimeout": cur.NumOfTimeout,
		}, "")
		r.advanceTurn()
		r.armTurnTimer()
		return
	}

	cur.Status = domain.PlayerTimeout
	r.emitter.ToRoom(r, "user_timeout", cur.PeerID, "")

	remaining := r.playersWithStatus(domain.PlayerPlaying)
	switch len(remaining) {
	case 1:
		sole := remaining[0]
		sole.Status = domain.PlayerWin
		r.disarmTurnTimer()
		time.AfterFunc(winAnimationDelay, func() {
			r.inbox <- event{kind: evDelayedSettleFire}
		})
	case 0:
		r.disarmTurnTimer()
		r.finish()
	default:
		r.advanceTurn()
		r.armTurnTimer()
	}
}

func (r *Room) handleDelayedSettle() {
	if r.Status == domain.RoomFinished {
		return
	}
	r.finish()
}

// advanceTurn scans forward from current+1, wrapping, for the next PLAYING
// seat. If none is found the cursor is left unchanged — callers that reach
// this with zero PLAYING seats must have already decided to finish.
func (r *Room) advanceTurn() {
	n := len(r.Players)
	if n == 0 {
		return
	}
	for i := 1; i <= n; i++ {
		idx := (r.CurrentTurn + i) % n
		if r.Players[idx].Status == domain.PlayerPlaying {
			r.mu.Lock()
			r.CurrentTurn = idx
			r.mu.Unlock()
			r.emitter.ToRoom(r, "turn_changed", idx, "")
			return
		}
	}
}

func (r *Room) playersWithStatus(s domain.PlayerStatus) []*domain.Player {
	var out []*domain.Player
	for _, p := range r.Players {
		if p.Status == s {
			out = append(out, p)
		}
	}
	return out
}

// --- dice / token relay ---------------------------------------------------

func (r *Room) currentPlayerActs(senderUID string) bool {
	cur := r.PlayerByPeerID(r.CurrentTurn)
	return cur != nil && cur.UserID == senderUID && cur.Status == domain.PlayerPlaying
}

func (r *Room) handleDiceSend(senderUID string, p DicePayload) {
	if r.Status != domain.RoomPlaying || !r.currentPlayerActs(senderUID) {
		return
	}
	r.GameData.LastDice = p.DiceFace
	r.emitter.ToRoom(r, "dice_recieved", map[string]any{
		"peer_id":   p.PeerID,
		"dice_face": p.DiceFace,
	}, senderUID)
	r.armTurnTimer()
}

func (r *Room) handleTokenSend(senderUID string, p TokenPayload) {
	if r.Status != domain.RoomPlaying || !r.currentPlayerActs(senderUID) {
		return
	}
	r.GameData.Moves = append(r.GameData.Moves, domain.Move{
		PeerID:     p.PeerID,
		TokenID:    p.TokenID,
		TokenValue: p.TokenValue,
		Timestamp:  time.Now(),
	})
	r.emitter.ToRoom(r, "token_recieved", map[string]any{
		"peer_id":     p.PeerID,
		"token_id":    p.TokenID,
		"token_value": p.TokenValue,
		"dice_face":   r.GameData.LastDice,
	}, senderUID)
	r.armTurnTimer()
}

func (r *Room) handleTokenReset(senderUID string, p TokenPayload) {
	if r.Status != domain.RoomPlaying {
		return
	}
	// A kill event: addressed to the room minus the sender, never tied to
	// the roller's dice (reset is a consequence, not a roll).
	r.emitter.ToRoom(r, "token_recieved", map[string]any{
		"peer_id":     p.PeerID,
		"token_id":    p.TokenID,
		"token_value": p.TokenValue,
		"dice_face":   0,
	}, senderUID)
}

func (r *Room) handleChangeTurn(senderUID string) {
	if r.Status != domain.RoomPlaying || !r.currentPlayerActs(senderUID) {
		return
	}
	r.advanceTurn()
	r.armTurnTimer()
}

// --- win / leave -----------------------------------------------------------

func (r *Room) handleWinGame(senderUID string, p WinPayload) {
	if r.Status != domain.RoomPlaying {
		return
	}
	player := r.Room.PlayerByUserID(senderUID)
	if player == nil || player.Status != domain.PlayerPlaying {
		return
	}
	player.Status = domain.PlayerWin
	r.emitter.ToRoom(r, "win_game", player.PeerID, senderUID)

	if r.PlayingCount() <= 1 {
		r.disarmTurnTimer()
		r.finish()
	}
}

func (r *Room) handleLeaveRoom(senderUID string) {
	player := r.Room.PlayerByUserID(senderUID)
	if player == nil {
		return
	}

	if r.Status == domain.RoomWaiting {
		player.Status = domain.PlayerLeft
		r.mu.Lock()
		remaining := r.Players[:0]
		for _, p := range r.Players {
			if p.UserID != senderUID {
				remaining = append(remaining, p)
			}
		}
		r.Players = remaining
		empty := len(remaining) == 0
		r.mu.Unlock()
		r.emitter.ToRoom(r, "leave_room", player.PeerID, senderUID)
		if empty {
			r.cancel()
			if r.onDone != nil {
				r.onDone(r.RoomID)
			}
		}
		return
	}

	if r.Status != domain.RoomPlaying {
		return
	}

	wasPlaying := player.Status == domain.PlayerPlaying
	player.Status = domain.PlayerLeft
	r.emitter.ToRoom(r, "leave_room", player.PeerID, senderUID)

	if !wasPlaying {
		return
	}
	remaining := r.playersWithStatus(domain.PlayerPlaying)
	if len(remaining) == 1 {
		remaining[0].Status = domain.PlayerWin
		r.disarmTurnTimer()
		r.finish()
	} else if len(remaining) == 0 {
		r.disarmTurnTimer()
		r.finish()
	} else if r.PlayerByPeerID(r.CurrentTurn) == player {
		r.advanceTurn()
		r.armTurnTimer()
	}
}

// --- chat / social ----------------------------------------------------------

func (r *Room) handleChat(senderUID string, p ChatPayload) {
	r.emitter.ToRoom(r, "user_chat", map[string]any{"peer_id": p.PeerID, "chat_text": p.ChatText}, senderUID)
}

func (r *Room) handleEmoji(senderUID string, p EmojiPayload) {
	r.emitter.ToRoom(r, "user_emoji_id", map[string]any{"peer_id": p.PeerID, "emoji_id": p.EmojiID}, senderUID)
}

func (r *Room) handleGift(senderUID string, p GiftPayload) {
	r.emitter.ToRoom(r, "user_send_gift", map[string]any{"peer_id": p.PeerID, "gift_id": p.GiftID}, senderUID)
}

// --- reconnection ------------------------------------------------------------

func (r *Room) handleReconnect(userID string, handle session.Handle) bool {
	player := r.Room.PlayerByUserID(userID)
	if player == nil {
		return false
	}
	player.TransportHandle = handle.ID()

	roster := make([]map[string]any, 0, len(r.Players))
	for _, p := range r.Players {
		roster = append(roster, map[string]any{
			"user_id":       p.UserID,
			"user_name":     p.UserName,
			"peer_id":       p.PeerID,
			"player_status": p.Status,
		})
	}
	r.emitter.ToUser(userID, "previous_room_data", map[string]any{
		"room_id":      r.RoomID,
		"peer_id":      player.PeerID,
		"players":      roster,
		"current_turn": r.CurrentTurn,
		"game_data":    r.GameData,
	})
	return true
}

// --- disconnect grace --------------------------------------------------------

// ArmDisconnectGrace starts the disconnect-grace timer (30s by default) for
// userID holding handle. Safe to call from outside the room goroutine; the
// fire itself is serialized through the mailbox like any other event. The
// departed handle's id travels with the fire so it can be compared against
// whatever handle the player holds when it fires — a reconnect in between
// must cancel the punitive timeout, not just the disconnect-time check.
func (r *Room) ArmDisconnectGrace(userID string, handle session.Handle) {
	handleID := handle.ID()
	timer := time.AfterFunc(r.disconnectGrace, func() {
		r.inbox <- event{kind: evDisconnectGraceFire, senderUID: userID, handleID: handleID}
	})
	r.mu.Lock()
	r.graceTimers[userID] = timer
	r.mu.Unlock()
}

func (r *Room) handleDisconnectGraceFire(userID, handleID string) {
	r.mu.Lock()
	delete(r.graceTimers, userID)
	r.mu.Unlock()

	if r.Status != domain.RoomPlaying {
		return
	}
	player := r.Room.PlayerByUserID(userID)
	if player == nil || player.Status != domain.PlayerPlaying {
		return
	}
	if player.TransportHandle != handleID {
		// A reconnect rebound this seat to a new handle before the grace
		// window elapsed; the departed connection no longer matters.
		return
	}
	player.Status = domain.PlayerTimeout
	r.emitter.ToRoom(r, "user_timeout", player.PeerID, "")
}

// --- settlement ----------------------------------------------------------

func (r *Room) finish() {
	r.setStatus(domain.RoomFinished)
	results := r.settler.Settle(r)
	r.emitter.ToRoom(r, "game_over", results, "")

	if r.onDone != nil {
		time.AfterFunc(deletionDelay, func() {
			r.onDone(r.RoomID)
		})
	}
}

// Stop cancels the room's run loop immediately. Manager.Remove calls it
// whenever a room leaves the registry. Idempotent.
func (r *Room) Stop() {
	r.cancel()
}
