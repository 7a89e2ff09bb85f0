package room

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"ludoarena/internal/domain"
	"ludoarena/internal/metrics"
)

const friendCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const friendCodeLength = 6

// Manager is the Room Registry: it owns every active room and answers the
// matchmaking lookup. Insertion order is preserved for FindAvailable's
// earliest-open-first scan.
type Manager struct {
	mu              sync.RWMutex
	order           []string
	rooms           map[string]*Room
	emitter         Emitter
	settler         Settler
	turnTimeout     time.Duration
	disconnectGrace time.Duration
}

func NewManager(emitter Emitter, settler Settler, turnTimeout, disconnectGrace time.Duration) *Manager {
	return &Manager{
		rooms:           make(map[string]*Room),
		emitter:         emitter,
		settler:         settler,
		turnTimeout:     turnTimeout,
		disconnectGrace: disconnectGrace,
	}
}

func (m *Manager) add(r *Room) {
	m.mu.Lock()
	m.rooms[r.RoomID] = r
	m.order = append(m.order, r.RoomID)
	m.mu.Unlock()
	metrics.ActiveRooms.Inc()
}

// Remove deletes a room from the registry. Safe to call more than once.
func (m *Manager) Remove(roomID string) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if ok {
		r.Stop()
		delete(m.rooms, roomID)
		for i, id := range m.order {
			if id == roomID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if ok {
		metrics.ActiveRooms.Dec()
	}
}

func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// FindAvailable returns the first insertion-order WAITING room matching bet
// amount and size exactly, with a free seat. Friend rooms are excluded —
// they are only reachable by code (§4.3).
func (m *Manager) FindAvailable(betAmount int64, maxPlayers int) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		r := m.rooms[id]
		if r.IsFriend {
			continue
		}
		status, count := r.StatusSnapshot()
		if status == domain.RoomWaiting && r.BetAmount == betAmount && r.MaxPlayers == maxPlayers && count < maxPlayers {
			return r, true
		}
	}
	return nil, false
}

// CreateMatchRoom creates a fresh matchmaking room with a UUID id.
func (m *Manager) CreateMatchRoom(hostUserID string, betAmount int64, maxPlayers int) *Room {
	r := newRoom(uuid.NewString(), hostUserID, betAmount, maxPlayers, false, m.turnTimeout, m.disconnectGrace, m.emitter, m.settler, m.Remove)
	m.add(r)
	return r
}

// CreateFriendRoom mints (or accepts a caller-supplied) 6-char uppercase
// code. Codes share the keyspace with matchmaking room ids, as specified.
func (m *Manager) CreateFriendRoom(hostUserID string, betAmount int64, maxPlayers int, code string) *Room {
	if code == "" {
		code = m.generateFriendCode()
	}
	r := newRoom(code, hostUserID, betAmount, maxPlayers, true, m.turnTimeout, m.disconnectGrace, m.emitter, m.settler, m.Remove)
	m.add(r)
	return r
}

func (m *Manager) generateFriendCode() string {
	for {
		b := make([]byte, friendCodeLength)
		for i := range b {
			b[i] = friendCodeAlphabet[rand.Intn(len(friendCodeAlphabet))]
		}
		code := string(b)
		m.mu.RLock()
		_, exists := m.rooms[code]
		m.mu.RUnlock()
		if !exists {
			return code
		}
	}
}

// Counts returns aggregate counters for the status surface.
func (m *Manager) Counts() (rooms, connections int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms = len(m.rooms)
	for _, r := range m.rooms {
		_, n := r.StatusSnapshot()
		connections += n
	}
	return
}
