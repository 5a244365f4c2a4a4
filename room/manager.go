package room

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/matchgame/network"
)

// maxCodeAttempts bounds the search for an unused code.
const maxCodeAttempts = 64

var ErrCodesExhausted = errors.New("could not allocate a free room code")

// Manager is the live-room registry, keyed by normalized code.
type Manager struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	generate func() (string, error)
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		generate: GenerateCode,
	}
}

// CreateRoom registers a new waiting room whose first member is host. The
// room is returned LOCKED so the caller can finish announcing it before any
// other goroutine observes it; the caller must Unlock.
func (m *Manager) CreateRoom(maxNumber int, host *Player) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := m.generate()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		code = network.NormalizeCode(code)
		if _, exists := m.rooms[code]; exists {
			continue
		}

		room := NewRoom(code, maxNumber)
		room.AddPlayer(host)
		room.Lock()
		m.rooms[code] = room
		return room, nil
	}
	return nil, ErrCodesExhausted
}

// RemoveRoom deregisters the room with the given code if it is still the
// one registered under it.
func (m *Manager) RemoveRoom(room *Room) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	code := network.NormalizeCode(room.Code)
	if current, exists := m.rooms[code]; exists && current == room {
		delete(m.rooms, code)
	}
}

func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[network.NormalizeCode(code)]
	return room, exists
}

// Rooms returns the registered rooms in no particular order.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
