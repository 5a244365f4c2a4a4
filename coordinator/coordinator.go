// coordinator/coordinator.go
package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/matchgame/broadcast"
	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/models"
	"github.com/wfunc/matchgame/network"
	"github.com/wfunc/matchgame/room"
	"github.com/wfunc/matchgame/state"
)

// Member is the connection-side state the coordinator reads and updates.
// *session.Session implements it.
type Member interface {
	network.Sender
	Bind(playerID, roomCode string)
	Unbind() (playerID, roomCode string)
	Membership() (playerID, roomCode string)
}

type Options struct {
	Recorder Recorder
	Metrics  Metrics
	NewID    func() string
	Now      func() time.Time
}

// Coordinator applies client commands to rooms. Every mutation of a room
// happens under that room's lock, and every event it produces is queued
// before the lock is released.
type Coordinator struct {
	rooms       *room.Manager
	broadcaster room.Broadcaster
	recorder    Recorder
	metrics     Metrics
	newID       func() string
	now         func() time.Time
}

func New(rooms *room.Manager, opts Options) *Coordinator {
	c := &Coordinator{
		rooms:    rooms,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		newID:    opts.NewID,
		now:      opts.Now,
	}
	if c.recorder == nil {
		c.recorder = Recorders(nil)
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.New().String() }
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.broadcaster = broadcast.NewRoomBroadcaster(c.metrics)
	return c
}

// HandleFrame decodes one JSON object and applies it. The returned error, if
// any, is meant for the issuing connection only.
func (c *Coordinator) HandleFrame(m Member, frame []byte) error {
	start := c.now()
	cmd, err := network.DecodeCommand(frame)
	if err != nil {
		err = decodeError(err)
		c.metrics.CommandHandled("invalid", KindOf(err), c.now().Sub(start))
		return err
	}
	err = c.Handle(m, cmd)
	kind := Kind("ok")
	if err != nil {
		kind = KindOf(err)
	}
	c.metrics.CommandHandled(cmd.Type, kind, c.now().Sub(start))
	return err
}

func (c *Coordinator) Handle(m Member, cmd network.Command) error {
	switch cmd.Type {
	case network.CmdCreate:
		return c.Create(m, cmd.MaxNumber)
	case network.CmdJoin:
		return c.Join(m, cmd.Code)
	case network.CmdSubmitNumber:
		return c.SubmitNumber(m, cmd.Number)
	case network.CmdReverse:
		return c.Reverse(m)
	case network.CmdReset:
		return c.Reset(m)
	default:
		return ErrMalformedCommand
	}
}

// Create opens a new waiting room with m as host. A member already in a
// room leaves it first.
func (c *Coordinator) Create(m Member, maxNumber int) error {
	c.leave(m)

	maxNumber = network.ClampMaxNumber(maxNumber)
	playerID := c.newID()
	host := room.NewPlayer(playerID, true, m)

	r, err := c.rooms.CreateRoom(maxNumber, host)
	if err != nil {
		logger.Log.Errorf("Failed to create room: %v", err)
		return fmt.Errorf("create room: %w", err)
	}
	defer r.Unlock()

	code := r.Code
	r.OnTransition(func(from, to state.Phase) {
		logger.Log.Debugf("Room %s: %s -> %s", code, from, to)
	})
	r.Touch(c.now())
	m.Bind(playerID, r.Code)
	c.broadcaster.SendToPlayer(r.Code, host, network.NewRoomCreated(r.Code, playerID, maxNumber))

	c.recorder.RoomOpened(r.Snapshot())
	c.metrics.RoomOpened()
	logger.Log.Infof("Player %s created room %s (maxNumber=%d)", playerID, r.Code, maxNumber)
	return nil
}

// Join adds m to the room with the given code. Filling the room starts a
// round for both players. A member already in another room keeps it until
// the new seat is taken.
func (c *Coordinator) Join(m Member, code string) error {
	code = network.NormalizeCode(code)
	if code == "" {
		return ErrInvalidRoomCode
	}

	prevID, prevCode := m.Membership()
	joined, err := c.takeSeat(m, code, prevID, prevCode)
	if err != nil || !joined {
		return err
	}
	if prevCode != "" {
		c.removePlayer(prevID, prevCode)
	}
	return nil
}

// takeSeat seats m in the room under a single hold of its lock. It reports
// false when m already holds a seat there and only room_joined was resent.
func (c *Coordinator) takeSeat(m Member, code, prevID, prevCode string) (bool, error) {
	r, ok := c.rooms.GetRoom(code)
	if !ok {
		return false, newError(KindRoomNotFound, "Room not found. Code: %s", code)
	}
	r.Lock()
	defer r.Unlock()

	if r.Closed() {
		return false, newError(KindRoomNotFound, "Room not found. Code: %s", code)
	}
	if r.PlayerCount() >= room.MaxPlayers {
		return false, ErrRoomFull
	}
	if prevCode == code {
		if p, ok := r.Player(prevID); ok {
			c.broadcaster.SendToPlayer(r.Code, p, network.NewRoomJoined(r.Code, prevID, r.MaxNumber()))
			return false, nil
		}
	}

	playerID := c.newID()
	p := room.NewPlayer(playerID, false, m)
	if err := r.AddPlayer(p); err != nil {
		return false, ErrRoomFull
	}

	r.Touch(c.now())
	m.Bind(playerID, r.Code)
	c.broadcaster.SendToPlayer(r.Code, p, network.NewRoomJoined(r.Code, playerID, r.MaxNumber()))
	c.broadcaster.BroadcastToRoom(r, network.NewPlayerJoined(r.PlayerCount()), playerID)

	if r.PlayerCount() == room.MaxPlayers {
		r.ClearNumbers()
		if err := r.ChangeState(state.Playing); err != nil {
			logger.Log.Warnf("Room %s could not start from %s: %v", r.Code, r.State(), err)
		}
		c.broadcaster.BroadcastToRoom(r, network.NewGameStart(r.MaxNumber()), "")
	}

	c.recorder.RoomUpdated(r.Snapshot())
	logger.Log.Infof("Player %s joined room %s (%d/%d)", playerID, r.Code, r.PlayerCount(), room.MaxPlayers)
	return true, nil
}

// SubmitNumber records the member's pick for the open round. When both
// picks are in, the result is sent to the room exactly once.
func (c *Coordinator) SubmitNumber(m Member, number int) error {
	r, p, err := c.lockMemberRoom(m)
	if err != nil {
		return err
	}
	defer r.Unlock()

	if r.State() != state.Playing {
		return newError(KindInvalidState, "Round is not open")
	}

	n := number
	p.Number = &n
	r.Touch(c.now())
	c.broadcaster.BroadcastToRoom(r, network.NewPlayerReady(p.ID), p.ID)

	if r.AllReady() {
		c.finishRound(r)
	}
	c.recorder.RoomUpdated(r.Snapshot())
	return nil
}

// finishRound resolves a round whose numbers are all in. Caller holds r.
func (c *Coordinator) finishRound(r *room.Room) {
	numbers := r.Numbers()
	record := models.GameRecord{
		RoomCode:  r.Code,
		MaxNumber: r.MaxNumber(),
		Numbers:   numbers,
		Match:     numbers[0] == numbers[1],
		Reversed:  r.HasUsedReverse(),
		PlayedAt:  c.now(),
	}

	if record.Match {
		if err := r.ChangeState(state.GameOver); err != nil {
			logger.Log.Warnf("Room %s: %v", r.Code, err)
		}
		c.broadcaster.BroadcastToRoom(r, network.NewMatchResult(numbers), "")
	} else {
		if err := r.ChangeState(state.Result); err != nil {
			logger.Log.Warnf("Room %s: %v", r.Code, err)
		}
		c.broadcaster.BroadcastToRoom(r, network.NewMismatchResult(numbers, !r.HasUsedReverse()), "")
	}

	c.recorder.RoundFinished(record)
	c.metrics.RoundFinished(record.Outcome())
	logger.Log.Infof("Room %s round finished: %v (%s)", r.Code, numbers, record.Outcome())
}

// Reverse halves the room's range once per game and opens a new round.
// Host only.
func (c *Coordinator) Reverse(m Member) error {
	r, p, err := c.lockMemberRoom(m)
	if err != nil {
		return newError(KindNotHost, "Only host can reverse")
	}
	defer r.Unlock()

	if !p.IsHost {
		return newError(KindNotHost, "Only host can reverse")
	}
	if r.HasUsedReverse() {
		return ErrReverseAlreadyUsed
	}
	if !r.CanTransition(state.Playing) {
		return newError(KindInvalidState, "Game has not started")
	}

	newMax := max(network.MinNumber, (r.MaxNumber()+1)/2)
	r.SetUsedReverse(true)
	r.SetMaxNumber(newMax)
	r.ClearNumbers()
	if err := r.ChangeState(state.Playing); err != nil {
		logger.Log.Warnf("Room %s: %v", r.Code, err)
	}
	r.Touch(c.now())

	c.broadcaster.BroadcastToRoom(r, network.NewReverseActivated(newMax), "")
	c.recorder.RoomUpdated(r.Snapshot())
	logger.Log.Infof("Room %s reversed, maxNumber now %d", r.Code, newMax)
	return nil
}

// Reset starts a fresh round at the current range and re-arms reverse.
// Host only.
func (c *Coordinator) Reset(m Member) error {
	r, p, err := c.lockMemberRoom(m)
	if err != nil {
		return newError(KindNotHost, "Only host can reset")
	}
	defer r.Unlock()

	if !p.IsHost {
		return newError(KindNotHost, "Only host can reset")
	}
	if !r.CanTransition(state.Playing) {
		return newError(KindInvalidState, "Game has not started")
	}

	r.SetUsedReverse(false)
	r.ClearNumbers()
	if err := r.ChangeState(state.Playing); err != nil {
		logger.Log.Warnf("Room %s: %v", r.Code, err)
	}
	r.Touch(c.now())

	c.broadcaster.BroadcastToRoom(r, network.NewGameReset(r.MaxNumber()), "")
	c.recorder.RoomUpdated(r.Snapshot())
	logger.Log.Infof("Room %s reset", r.Code)
	return nil
}

// Disconnect removes m from its room. The last player out closes the room.
func (c *Coordinator) Disconnect(m Member) {
	c.leave(m)
}

func (c *Coordinator) leave(m Member) {
	playerID, code := m.Unbind()
	c.removePlayer(playerID, code)
}

func (c *Coordinator) removePlayer(playerID, code string) {
	if code == "" {
		return
	}
	r, ok := c.rooms.GetRoom(code)
	if !ok {
		return
	}

	r.Lock()
	defer r.Unlock()

	if r.Closed() {
		return
	}
	if err := r.RemovePlayer(playerID); err != nil {
		return
	}
	r.Touch(c.now())

	if r.PlayerCount() == 0 {
		c.closeRoom(r)
		logger.Log.Infof("Room %s closed, last player %s left", r.Code, playerID)
		return
	}

	c.broadcaster.BroadcastToRoom(r, network.NewPlayerLeft(r.PlayerCount()), "")
	c.recorder.RoomUpdated(r.Snapshot())
	logger.Log.Infof("Player %s left room %s", playerID, r.Code)
}

// closeRoom deregisters r. Caller holds r.
func (c *Coordinator) closeRoom(r *room.Room) {
	r.MarkClosed()
	c.rooms.RemoveRoom(r)
	c.recorder.RoomClosed(r.Code)
	c.metrics.RoomClosed()
}

// lockMemberRoom returns m's room locked together with m's player. Stale
// memberships are cleared and reported as ErrNotInRoom.
func (c *Coordinator) lockMemberRoom(m Member) (*room.Room, *room.Player, error) {
	playerID, code := m.Membership()
	if code == "" {
		return nil, nil, ErrNotInRoom
	}
	r, ok := c.rooms.GetRoom(code)
	if !ok {
		m.Unbind()
		return nil, nil, ErrNotInRoom
	}

	r.Lock()
	p, ok := r.Player(playerID)
	if r.Closed() || !ok {
		r.Unlock()
		m.Unbind()
		return nil, nil, ErrNotInRoom
	}
	return r, p, nil
}

// ClearStale closes rooms a previous process left in the store. Their
// connections did not survive the restart, so each one is reported closed
// and never registered.
func (c *Coordinator) ClearStale(snapshots []models.RoomSnapshot) int {
	cleared := 0
	for _, s := range snapshots {
		code := network.NormalizeCode(s.Code)
		if code == "" {
			continue
		}
		if _, live := c.rooms.GetRoom(code); live {
			continue
		}
		c.recorder.RoomClosed(code)
		cleared++
	}
	return cleared
}

// Stats counts live rooms and players.
func (c *Coordinator) Stats() models.LiveStats {
	stats := models.LiveStats{RoomsByState: make(map[string]int)}
	for _, r := range c.rooms.Rooms() {
		r.Lock()
		if !r.Closed() {
			stats.Rooms++
			stats.Players += r.PlayerCount()
			stats.RoomsByState[string(r.State())]++
		}
		r.Unlock()
	}
	return stats
}

func (c *Coordinator) ListRooms() []models.RoomInfo {
	var infos []models.RoomInfo
	for _, r := range c.rooms.Rooms() {
		r.Lock()
		if !r.Closed() {
			infos = append(infos, r.Info())
		}
		r.Unlock()
	}
	return infos
}

// HasRoom reports whether a live room is registered under code.
func (c *Coordinator) HasRoom(code string) bool {
	r, ok := c.rooms.GetRoom(code)
	if !ok {
		return false
	}
	r.Lock()
	defer r.Unlock()
	return !r.Closed()
}
