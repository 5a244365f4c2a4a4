// room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/matchgame/models"
	"github.com/wfunc/matchgame/network"
	"github.com/wfunc/matchgame/state"
)

// MaxPlayers is the fixed room capacity.
const MaxPlayers = 2

var (
	ErrRoomFull       = errors.New("room is full")
	ErrPlayerNotFound = errors.New("player not in room")
)

// Player is a room member. The room references it; the owning connection
// holds the only Sender.
type Player struct {
	ID     string
	IsHost bool
	Number *int
	conn   network.Sender
}

func NewPlayer(id string, isHost bool, conn network.Sender) *Player {
	return &Player{ID: id, IsHost: isHost, conn: conn}
}

// Send delivers ev if the player still has a connection.
func (p *Player) Send(ev network.Event) bool {
	if p.conn == nil {
		return false
	}
	return p.conn.Send(ev)
}

// Room is one game session. All methods except Lock/Unlock and the
// immutable fields require the caller to hold the room lock.
type Room struct {
	Code           string
	CreatedAt      time.Time
	maxNumber      int
	players        []*Player
	hasUsedReverse bool
	machine        state.StateMachine
	lastActivity   time.Time
	closed         bool
	mutex          sync.Mutex
}

// NewRoom creates a room in the waiting phase.
func NewRoom(code string, maxNumber int) *Room {
	now := time.Now()
	r := &Room{
		Code:         code,
		CreatedAt:    now,
		maxNumber:    maxNumber,
		lastActivity: now,
	}
	r.machine = state.NewGameMachine(state.Waiting, func() bool {
		return len(r.players) == MaxPlayers
	})
	return r
}

func (r *Room) Lock()   { r.mutex.Lock() }
func (r *Room) Unlock() { r.mutex.Unlock() }

func (r *Room) MaxNumber() int { return r.maxNumber }

func (r *Room) SetMaxNumber(n int) { r.maxNumber = n }

func (r *Room) HasUsedReverse() bool { return r.hasUsedReverse }

func (r *Room) SetUsedReverse(used bool) { r.hasUsedReverse = used }

func (r *Room) State() state.Phase { return r.machine.GetCurrentState() }

func (r *Room) ChangeState(to state.Phase) error { return r.machine.ChangeState(to) }

func (r *Room) CanTransition(to state.Phase) bool { return r.machine.CanTransition(to) }

// OnTransition forwards to the room's state machine.
func (r *Room) OnTransition(fn func(from, to state.Phase)) { r.machine.OnTransition(fn) }

// Players returns the members in join order.
func (r *Room) Players() []*Player {
	players := make([]*Player, len(r.players))
	copy(players, r.players)
	return players
}

func (r *Room) PlayerCount() int { return len(r.players) }

func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) AddPlayer(p *Player) error {
	if len(r.players) >= MaxPlayers {
		return ErrRoomFull
	}
	r.players = append(r.players, p)
	return nil
}

func (r *Room) RemovePlayer(id string) error {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return nil
		}
	}
	return ErrPlayerNotFound
}

// ClearNumbers opens a fresh round.
func (r *Room) ClearNumbers() {
	for _, p := range r.players {
		p.Number = nil
	}
}

// AllReady reports whether a full room has every number in.
func (r *Room) AllReady() bool {
	if len(r.players) != MaxPlayers {
		return false
	}
	for _, p := range r.players {
		if p.Number == nil {
			return false
		}
	}
	return true
}

// Numbers returns the submitted numbers in join order. Only meaningful
// when AllReady is true.
func (r *Room) Numbers() [2]int {
	var numbers [2]int
	for i, p := range r.players {
		if i < len(numbers) && p.Number != nil {
			numbers[i] = *p.Number
		}
	}
	return numbers
}

func (r *Room) Closed() bool { return r.closed }

func (r *Room) MarkClosed() { r.closed = true }

func (r *Room) Touch(now time.Time) { r.lastActivity = now }

func (r *Room) LastActivity() time.Time { return r.lastActivity }

func (r *Room) Snapshot() models.RoomSnapshot {
	players := make([]models.PlayerSnapshot, 0, len(r.players))
	for _, p := range r.players {
		ps := models.PlayerSnapshot{ID: p.ID, IsHost: p.IsHost}
		if p.Number != nil {
			n := *p.Number
			ps.Number = &n
		}
		players = append(players, ps)
	}
	return models.RoomSnapshot{
		Code:           r.Code,
		MaxNumber:      r.maxNumber,
		HasUsedReverse: r.hasUsedReverse,
		State:          string(r.State()),
		Players:        players,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.lastActivity,
	}
}

func (r *Room) Info() models.RoomInfo {
	return models.RoomInfo{
		Code:         r.Code,
		State:        string(r.State()),
		MaxNumber:    r.maxNumber,
		PlayerCount:  len(r.players),
		LastActivity: r.lastActivity,
	}
}
