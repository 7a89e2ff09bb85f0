package room

import (
	"testing"
	"time"

	"ludoarena/internal/domain"
)

type fakeHandle string

func (h fakeHandle) ID() string { return string(h) }

type recordedEmit struct {
	eventType string
	payload   any
	exclude   string
}

type fakeEmitter struct {
	toRoom chan recordedEmit
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{toRoom: make(chan recordedEmit, 256)}
}

func (e *fakeEmitter) ToUser(userID, eventType string, payload any) {}

func (e *fakeEmitter) ToRoom(r *Room, eventType string, payload any, excludeUserID string) {
	e.toRoom <- recordedEmit{eventType: eventType, payload: payload, exclude: excludeUserID}
}

type fakeSettler struct {
	called  chan *Room
	results []SettlementResult
}

func newFakeSettler(results []SettlementResult) *fakeSettler {
	return &fakeSettler{called: make(chan *Room, 4), results: results}
}

func (s *fakeSettler) Settle(r *Room) []SettlementResult {
	s.called <- r
	return s.results
}

func waitFor(t *testing.T, ch chan recordedEmit, eventType string, timeout time.Duration) recordedEmit {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-ch:
			if ev.eventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", eventType)
		}
	}
}

func newTestManager(turnTimeout, disconnectGrace time.Duration) (*Manager, *fakeEmitter, *fakeSettler) {
	emitter := newFakeEmitter()
	settler := newFakeSettler(nil)
	m := NewManager(emitter, settler, turnTimeout, disconnectGrace)
	return m, emitter, settler
}

func TestSeatFillsRoomAndStartsGame(t *testing.T) {
	m, emitter, _ := newTestManager(time.Hour, time.Hour)
	r := m.CreateMatchRoom("host", 100, 2)

	if err := r.Seat("a", "Alice", fakeHandle("h-a")); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	status, count := r.StatusSnapshot()
	if status != domain.RoomWaiting || count != 1 {
		t.Fatalf("after one seat: status=%v count=%d", status, count)
	}

	if err := r.Seat("b", "Bob", fakeHandle("h-b")); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	waitFor(t, emitter.toRoom, "game_start", time.Second)

	status, count = r.StatusSnapshot()
	if status != domain.RoomPlaying || count != 2 {
		t.Fatalf("after room full: status=%v count=%d", status, count)
	}

	a := r.PlayerByUserID("a")
	b := r.PlayerByUserID("b")
	if a == nil || b == nil {
		t.Fatal("missing seated players")
	}
	if a.PeerID != 0 || b.PeerID != 1 {
		t.Fatalf("peer ids = %d, %d, want 0, 1", a.PeerID, b.PeerID)
	}
}

func TestSeatAfterGameStartedReturnsError(t *testing.T) {
	m, emitter, _ := newTestManager(time.Hour, time.Hour)
	r := m.CreateMatchRoom("host", 100, 2)

	if err := r.Seat("a", "Alice", fakeHandle("h-a")); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if err := r.Seat("b", "Bob", fakeHandle("h-b")); err != nil {
		t.Fatalf("seat b: %v", err)
	}
	waitFor(t, emitter.toRoom, "game_start", time.Second)

	err := r.Seat("c", "Carol", fakeHandle("h-c"))
	if err != ErrGameStarted {
		t.Fatalf("seat after start = %v, want ErrGameStarted", err)
	}
}

func TestWinGameEndsRoomWhenOnePlayerRemains(t *testing.T) {
	results := []SettlementResult{{UserID: "a", WinningCoin: 200, PlayerRank: 1, PlayerStatus: int(domain.PlayerWin)}}
	emitter := newFakeEmitter()
	settler := newFakeSettler(results)
	m := NewManager(emitter, settler, time.Hour, time.Hour)
	r := m.CreateMatchRoom("host", 100, 2)

	r.Seat("a", "Alice", fakeHandle("h-a"))
	r.Seat("b", "Bob", fakeHandle("h-b"))
	waitFor(t, emitter.toRoom, "game_start", time.Second)

	r.WinGame("a", WinPayload{PeerID: 0})

	waitFor(t, emitter.toRoom, "win_game", time.Second)
	waitFor(t, emitter.toRoom, "game_over", time.Second)

	select {
	case settled := <-settler.called:
		if settled != r {
			t.Fatal("settler called with wrong room")
		}
	case <-time.After(time.Second):
		t.Fatal("settler was never called")
	}

	status, _ := r.StatusSnapshot()
	if status != domain.RoomFinished {
		t.Fatalf("status = %v, want RoomFinished", status)
	}
}

func TestLeaveRoomDuringWaitingRemovesSeatAndDeletes(t *testing.T) {
	m, emitter, _ := newTestManager(time.Hour, time.Hour)
	r := m.CreateMatchRoom("host", 100, 2)

	if err := r.Seat("a", "Alice", fakeHandle("h-a")); err != nil {
		t.Fatalf("seat a: %v", err)
	}

	r.LeaveRoom("a")
	waitFor(t, emitter.toRoom, "leave_room", time.Second)

	deadline := time.After(time.Second)
	for {
		if _, ok := m.Get(r.RoomID); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("room was not removed from the manager after the last waiting player left")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTripleTimeoutEndsGameWithSoleSurvivorWin(t *testing.T) {
	const turnTimeout = 20 * time.Millisecond
	m, emitter, settler := newTestManager(turnTimeout, time.Hour)
	r := m.CreateMatchRoom("host", 100, 2)

	r.Seat("a", "Alice", fakeHandle("h-a"))
	r.Seat("b", "Bob", fakeHandle("h-b"))
	waitFor(t, emitter.toRoom, "game_start", time.Second)

	waitFor(t, emitter.toRoom, "game_over", 5*time.Second)

	select {
	case <-settler.called:
	default:
		t.Fatal("settler was never called")
	}

	a := r.PlayerByUserID("a")
	b := r.PlayerByUserID("b")
	if a.Status != domain.PlayerTimeout {
		t.Fatalf("a.Status = %v, want PlayerTimeout", a.Status)
	}
	if b.Status != domain.PlayerWin {
		t.Fatalf("b.Status = %v, want PlayerWin", b.Status)
	}
	if a.NumOfTimeout != domain.MaxTimeouts {
		t.Fatalf("a.NumOfTimeout = %d, want %d", a.NumOfTimeout, domain.MaxTimeouts)
	}
}

func TestDisconnectGraceFiresTimeoutWhenNoReconnectOccurs(t *testing.T) {
	const grace = 20 * time.Millisecond
	m, emitter, _ := newTestManager(time.Hour, grace)
	r := m.CreateMatchRoom("host", 100, 2)

	r.Seat("a", "Alice", fakeHandle("h-a"))
	r.Seat("b", "Bob", fakeHandle("h-b"))
	waitFor(t, emitter.toRoom, "game_start", time.Second)

	r.ArmDisconnectGrace("a", fakeHandle("h-a"))
	waitFor(t, emitter.toRoom, "user_timeout", time.Second)

	a := r.PlayerByUserID("a")
	if a.Status != domain.PlayerTimeout {
		t.Fatalf("a.Status = %v, want PlayerTimeout", a.Status)
	}
}

func TestReconnectDuringGraceWindowCancelsPunitiveTimeout(t *testing.T) {
	const grace = 50 * time.Millisecond
	m, emitter, _ := newTestManager(time.Hour, grace)
	r := m.CreateMatchRoom("host", 100, 2)

	r.Seat("a", "Alice", fakeHandle("h-a"))
	r.Seat("b", "Bob", fakeHandle("h-b"))
	waitFor(t, emitter.toRoom, "game_start", time.Second)

	r.ArmDisconnectGrace("a", fakeHandle("h-a"))

	// Reconnect with a new handle before the grace window elapses, the way
	// ws.Hub.handleGetPreviousRoom does on a get_previous_room event.
	if ok := r.Reconnect("a", fakeHandle("h-a-new")); !ok {
		t.Fatal("reconnect returned false for a seated player")
	}

	select {
	case ev := <-emitter.toRoom:
		if ev.eventType == "user_timeout" {
			t.Fatal("grace timer punished a player who reconnected before it fired")
		}
	case <-time.After(2 * grace):
	}

	a := r.PlayerByUserID("a")
	if a.Status != domain.PlayerPlaying {
		t.Fatalf("a.Status = %v, want PlayerPlaying after reconnect", a.Status)
	}
}

func TestReconnectReportsWhetherUserHeldSeat(t *testing.T) {
	m, emitter, _ := newTestManager(time.Hour, time.Hour)
	r := m.CreateMatchRoom("host", 100, 2)

	r.Seat("a", "Alice", fakeHandle("h-a"))
	r.Seat("b", "Bob", fakeHandle("h-b"))
	waitFor(t, emitter.toRoom, "game_start", time.Second)

	if ok := r.Reconnect("a", fakeHandle("h-a-new")); !ok {
		t.Fatal("reconnect for a seated player returned false")
	}
	if ok := r.Reconnect("ghost", fakeHandle("h-ghost")); ok {
		t.Fatal("reconnect for an unseated user returned true")
	}
}
