package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ludoarena/internal/domain"
	"ludoarena/internal/logger"
	"ludoarena/internal/metrics"
	"ludoarena/internal/room"
	"ludoarena/internal/session"
	"ludoarena/internal/store"
)

// Hub is the top-level orchestrator: it owns the session registry and room
// registry, performs coin-deduction-then-seat for every join path, and
// implements room.Emitter by resolving user ids to live transport handles.
// This mirrors the role the teacher's ws.Hub plays for matchmaking
// assignment, generalized from a single (bet, gameType) waiting map to the
// full request_join / friend_create_room / friend_join_room vocabulary.
type Hub struct {
	Sessions *session.Registry
	Rooms    *room.Manager
	Store    store.UserStore

	mu            sync.RWMutex
	clientsByRoom map[string]map[string]*Client // roomID -> userID -> client, for broadcast
}

func NewHub(sessions *session.Registry, rooms *room.Manager, userStore store.UserStore) *Hub {
	return &Hub{
		Sessions:      sessions,
		Rooms:         rooms,
		Store:         userStore,
		clientsByRoom: make(map[string]map[string]*Client),
	}
}

// --- room.Emitter -----------------------------------------------------------

func (h *Hub) ToUser(userID, eventType string, payload any) {
	handle, ok := h.Sessions.Lookup(userID)
	if !ok {
		return
	}
	if c, ok := handle.(*Client); ok {
		c.Deliver(eventType, payload)
	}
}

func (h *Hub) ToRoom(r *room.Room, eventType string, payload any, excludeUserID string) {
	h.mu.RLock()
	members := h.clientsByRoom[r.RoomID]
	h.mu.RUnlock()
	for userID, c := range members {
		if userID == excludeUserID {
			continue
		}
		c.Deliver(eventType, payload)
	}
}

func (h *Hub) trackMembership(roomID, userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.clientsByRoom[roomID]
	if !ok {
		m = make(map[string]*Client)
		h.clientsByRoom[roomID] = m
	}
	m[userID] = c
}

func (h *Hub) untrackMembership(roomID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.clientsByRoom[roomID]; ok {
		delete(m, userID)
		if len(m) == 0 {
			delete(h.clientsByRoom, roomID)
		}
	}
}

// --- connection lifecycle ----------------------------------------------------

func (h *Hub) onDisconnect(c *Client) {
	if c.UserID == "" {
		return
	}
	// A reconnect may have already rebound this user to a newer handle
	// before this stale connection's teardown runs; only arm the grace
	// timer if this connection was still the one of record.
	stillCurrent := h.Sessions.StillCurrent(c.UserID, c)
	h.Sessions.Unbind(c.UserID, c)

	if c.currentRoom != "" {
		r, ok := h.Rooms.Get(c.currentRoom)
		h.untrackMembership(c.currentRoom, c.UserID)
		if ok && stillCurrent {
			status, _ := r.StatusSnapshot()
			if status == domain.RoomPlaying {
				r.ArmDisconnectGrace(c.UserID, c)
			}
		}
	}
	metrics.ActiveConnections.Dec()
}

// --- inbound frame dispatch --------------------------------------------------

func (h *Hub) handleFrame(c *Client, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("ws: frame handler panic recovered", "panic", rec)
		}
	}()

	env, err := decodeEnvelope(raw)
	if err != nil {
		logger.Warn("ws: malformed frame", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("_envelope").Inc()
		return
	}
	metrics.InboundEventsTotal.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case "add_user":
		h.handleAddUser(c, env.Data)
	case "get_userdata":
		h.handleGetUserData(c, env.Data)
	case "request_join":
		h.handleRequestJoin(c, env.Data)
	case "friend_create_room":
		h.handleFriendCreateRoom(c, env.Data)
	case "friend_join_room":
		h.handleFriendJoinRoom(c, env.Data)
	case "dice_send":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p dicePayload) {
			r.DiceSend(c.UserID, room.DicePayload{PeerID: p.PeerID, DiceFace: p.DiceFace})
		})
	case "token_send":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p tokenPayload) {
			r.TokenSend(c.UserID, room.TokenPayload{PeerID: p.PeerID, TokenID: p.TokenID, TokenValue: p.TokenValue})
		})
	case "token_reset":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p tokenPayload) {
			r.TokenReset(c.UserID, room.TokenPayload{PeerID: p.PeerID, TokenID: p.TokenID, TokenValue: p.TokenValue})
		})
	case "change_turn":
		h.withRoomNoPayload(env.Event, env.Data, func(r *room.Room) { r.ChangeTurn(c.UserID) })
	case "win_game":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p winPayload) {
			r.WinGame(c.UserID, room.WinPayload{PeerID: p.PeerID, PlayerRank: p.PlayerRank})
		})
	case "leave_room":
		h.withRoomNoPayload(env.Event, env.Data, func(r *room.Room) { r.LeaveRoom(c.UserID) })
	case "user_chat":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p chatPayload) {
			r.Chat(c.UserID, room.ChatPayload{PeerID: p.PeerID, ChatText: p.ChatText})
		})
	case "user_emoji_id":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p emojiPayload) {
			r.Emoji(c.UserID, room.EmojiPayload{PeerID: p.PeerID, EmojiID: p.EmojiID})
		})
	case "user_send_gift":
		withRoomPayload(h, env.Event, env.Data, func(r *room.Room, p giftPayload) {
			r.Gift(c.UserID, room.GiftPayload{PeerID: p.PeerID, GiftID: p.GiftID})
		})
	case "get_previous_room":
		h.handleGetPreviousRoom(c, env.Data)
	case "remove_from_matchmaking":
		h.handleRemoveFromMatchmaking(c, env.Data)
	default:
		logger.Debug("ws: unknown event", "event", env.Event)
	}
}

type roomScopedPayload interface {
	roomID() string
}

type dicePayload struct {
	RoomID   string `json:"room_id"`
	PeerID   int    `json:"peer_id"`
	DiceFace int    `json:"dice_face"`
}

func (p dicePayload) roomID() string { return p.RoomID }

type tokenPayload struct {
	RoomID     string `json:"room_id"`
	PeerID     int    `json:"peer_id"`
	TokenID    int    `json:"token_id"`
	TokenValue int    `json:"token_value"`
}

func (p tokenPayload) roomID() string { return p.RoomID }

type winPayload struct {
	RoomID     string `json:"room_id"`
	PeerID     int    `json:"peer_id"`
	PlayerRank int    `json:"player_rank"`
}

func (p winPayload) roomID() string { return p.RoomID }

type chatPayload struct {
	RoomID   string `json:"room_id"`
	PeerID   int    `json:"peer_id"`
	ChatText string `json:"chat_text"`
}

func (p chatPayload) roomID() string { return p.RoomID }

type emojiPayload struct {
	RoomID  string `json:"room_id"`
	PeerID  int    `json:"peer_id"`
	EmojiID string `json:"emoji_id"`
}

func (p emojiPayload) roomID() string { return p.RoomID }

type giftPayload struct {
	RoomID string `json:"room_id"`
	PeerID int    `json:"peer_id"`
	GiftID string `json:"gift_id"`
}

func (p giftPayload) roomID() string { return p.RoomID }

type roomOnlyPayload struct {
	RoomID string `json:"room_id"`
	PeerID int    `json:"peer_id"`
}

func withRoomPayload[T roomScopedPayload](h *Hub, eventType, data string, fn func(r *room.Room, p T)) {
	p, err := decodePayload[T](data)
	if err != nil {
		logger.Warn("ws: malformed payload", "event", eventType, "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues(eventType).Inc()
		return
	}
	r, ok := h.Rooms.Get(p.roomID())
	if !ok {
		return
	}
	fn(r, p)
}

func (h *Hub) withRoomNoPayload(eventType, data string, fn func(r *room.Room)) {
	p, err := decodePayload[roomOnlyPayload](data)
	if err != nil {
		logger.Warn("ws: malformed payload", "event", eventType, "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues(eventType).Inc()
		return
	}
	r, ok := h.Rooms.Get(p.RoomID)
	if !ok {
		return
	}
	fn(r)
}

// --- auth / profile ----------------------------------------------------------

type addUserPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	FCMToken string `json:"fcm_token"`
}

func (h *Hub) handleAddUser(c *Client, data string) {
	p, err := decodePayload[addUserPayload](data)
	if err != nil {
		logger.Warn("ws: malformed add_user payload", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("add_user").Inc()
		return
	}
	c.UserID = p.UserID
	c.UserName = p.UserName
	h.Sessions.Bind(p.UserID, c)
	metrics.ActiveConnections.Inc()

	token := fmt.Sprintf("token_%s_%d", p.UserID, time.Now().Unix())
	c.Deliver("auth_token", token)
}

type getUserDataPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

func (h *Hub) handleGetUserData(c *Client, data string) {
	p, err := decodePayload[getUserDataPayload](data)
	if err != nil {
		logger.Warn("ws: malformed get_userdata payload", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("get_userdata").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	u, err := h.Store.Get(ctx, p.UserID)
	if err != nil {
		u = domain.NewUser(p.UserID, p.UserName)
		_ = h.Store.Put(ctx, u)
	}

	c.Deliver("user_data", map[string]any{
		"user_id":     u.UserID,
		"user_name":   u.UserName,
		"user_coin":   u.Coins,
		"numof_win":   u.WinCount,
		"numof_lose":  u.LostCount,
		"user_level":  u.Level(),
		"total_games": u.TotalGamesPlayed,
	})
}

// --- join paths ---------------------------------------------------------------

type requestJoinPayload struct {
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name"`
	RoomCoinValue   int64  `json:"room_coin_value"`
	RoomPlayersSize int    `json:"room_players_size"`
}

func (h *Hub) handleRequestJoin(c *Client, data string) {
	p, err := decodePayload[requestJoinPayload](data)
	if err != nil {
		logger.Warn("ws: malformed request_join payload", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("request_join").Inc()
		return
	}

	if !h.deductBet(c, p.UserID, p.RoomCoinValue) {
		return
	}

	r, ok := h.Rooms.FindAvailable(p.RoomCoinValue, p.RoomPlayersSize)
	if !ok {
		r = h.Rooms.CreateMatchRoom(p.UserID, p.RoomCoinValue, p.RoomPlayersSize)
	}
	h.seat(c, r, p.UserID, p.UserName, p.RoomCoinValue)
}

type friendCreateRoomPayload struct {
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name"`
	RoomCoinValue   int64  `json:"room_coin_value"`
	RoomPlayersSize int    `json:"room_players_size"`
	RoomCode        string `json:"room_code"`
}

func (h *Hub) handleFriendCreateRoom(c *Client, data string) {
	p, err := decodePayload[friendCreateRoomPayload](data)
	if err != nil {
		logger.Warn("ws: malformed friend_create_room payload", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("friend_create_room").Inc()
		return
	}
	if !h.deductBet(c, p.UserID, p.RoomCoinValue) {
		return
	}
	r := h.Rooms.CreateFriendRoom(p.UserID, p.RoomCoinValue, p.RoomPlayersSize, p.RoomCode)
	c.Deliver("friend_room_code", map[string]any{"room_code": r.RoomID})
	h.seat(c, r, p.UserID, p.UserName, p.RoomCoinValue)
}

type friendJoinRoomPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	RoomCode string `json:"room_code"`
}

func (h *Hub) handleFriendJoinRoom(c *Client, data string) {
	p, err := decodePayload[friendJoinRoomPayload](data)
	if err != nil {
		logger.Warn("ws: malformed friend_join_room payload", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("friend_join_room").Inc()
		return
	}

	r, ok := h.Rooms.Get(p.RoomCode)
	if !ok {
		c.Deliver("friend_error_response", map[string]any{"message": "Room not found"})
		return
	}
	status, count := r.StatusSnapshot()
	if status != domain.RoomWaiting {
		c.Deliver("friend_error_response", map[string]any{"message": "Game already started"})
		return
	}
	if count >= r.MaxPlayers {
		c.Deliver("friend_error_response", map[string]any{"message": "Room is full"})
		return
	}

	if !h.deductBet(c, p.UserID, r.BetAmount) {
		return
	}
	h.seat(c, r, p.UserID, p.UserName, r.BetAmount)
}

// deductBet loads the user, checks the balance, and atomically debits the
// bet. It reports insufficient_coins and returns false on failure, exactly
// as §4.6 specifies for every coin-deducting join path.
func (h *Hub) deductBet(c *Client, userID string, betAmount int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	u, err := h.Store.Get(ctx, userID)
	if err != nil {
		u = domain.NewUser(userID, "")
	}
	if u.Coins < betAmount {
		c.Deliver("insufficient_coins", map[string]any{"required": betAmount, "current": u.Coins})
		return false
	}
	u.Coins -= betAmount
	if err := h.Store.Put(ctx, u); err != nil {
		logger.Warn("ws: bet deduction persist failed", "user_id", userID, "error", err)
	}
	return true
}

// seat attempts to add the caller to r. If seating fails (e.g. the room
// filled between FindAvailable's read and this seat call), the deduction
// is reversed per §9's open-question resolution: seating failures must not
// leave a player's coins short with nothing to show for it.
func (h *Hub) seat(c *Client, r *room.Room, userID, userName string, betAmount int64) {
	c.UserID = userID
	c.UserName = userName
	// Track membership first so the player_joined/game_start broadcasts
	// emitted while seating also reach the joining player.
	h.trackMembership(r.RoomID, userID, c)
	if err := r.Seat(userID, userName, c); err != nil {
		h.untrackMembership(r.RoomID, userID)
		h.refundBet(userID, betAmount)
		if err == room.ErrRoomFull {
			c.Deliver("friend_error_response", map[string]any{"message": "Room is full"})
		} else {
			c.Deliver("friend_error_response", map[string]any{"message": "Game already started"})
		}
		return
	}
	c.currentRoom = r.RoomID
}

func (h *Hub) refundBet(userID string, betAmount int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	u, err := h.Store.Get(ctx, userID)
	if err != nil {
		return
	}
	u.Coins += betAmount
	_ = h.Store.Put(ctx, u)
}

// --- reconnection / matchmaking cancel ----------------------------------------

type getPreviousRoomPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

func (h *Hub) handleGetPreviousRoom(c *Client, data string) {
	p, err := decodePayload[getPreviousRoomPayload](data)
	if err != nil {
		logger.Warn("ws: malformed get_previous_room payload", "error", err)
		metrics.MalformedPayloadsTotal.WithLabelValues("get_previous_room").Inc()
		return
	}
	r, ok := h.Rooms.Get(p.RoomID)
	if !ok {
		c.Deliver("room_not_found", map[string]any{"room_id": p.RoomID})
		return
	}
	c.UserID = p.UserID
	if !r.Reconnect(p.UserID, c) {
		c.Deliver("room_not_found", map[string]any{"room_id": p.RoomID})
		return
	}
	c.currentRoom = r.RoomID
	h.trackMembership(r.RoomID, p.UserID, c)
	h.Sessions.Bind(p.UserID, c)
}

func (h *Hub) handleRemoveFromMatchmaking(c *Client, userID string) {
	if c.currentRoom == "" {
		return
	}
	r, ok := h.Rooms.Get(c.currentRoom)
	if !ok {
		return
	}
	status, _ := r.StatusSnapshot()
	if status != domain.RoomWaiting {
		return
	}
	r.LeaveRoom(userID)
	h.untrackMembership(r.RoomID, userID)
	c.currentRoom = ""
}

// Counts reports aggregate figures for the status surface.
func (h *Hub) Counts() (rooms, connections int) {
	rooms, _ = h.Rooms.Counts()
	connections = h.Sessions.Count()
	return
}
