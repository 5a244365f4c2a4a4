package broadcast

import (
	"testing"

	"github.com/wfunc/matchgame/network"
	"github.com/wfunc/matchgame/room"
)

type recordingSender struct {
	events []network.Event
	open   bool
}

func (s *recordingSender) Send(ev network.Event) bool {
	if !s.open {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

type countingObserver struct {
	drops map[string]int
}

func (o *countingObserver) EventDropped(eventType string) {
	o.drops[eventType]++
}

func TestBroadcastToRoom(t *testing.T) {
	host := &recordingSender{open: true}
	guest := &recordingSender{open: true}

	r := room.NewRoom("ROOM01", 9)
	r.AddPlayer(room.NewPlayer("host", true, host))
	r.AddPlayer(room.NewPlayer("guest", false, guest))

	b := NewRoomBroadcaster(nil)
	b.BroadcastToRoom(r, network.NewGameStart(9), "")
	b.BroadcastToRoom(r, network.NewPlayerReady("host"), "host")

	if len(host.events) != 1 {
		t.Errorf("Expected host to receive 1 event, got %d", len(host.events))
	}
	if len(guest.events) != 2 {
		t.Errorf("Expected guest to receive 2 events, got %d", len(guest.events))
	}
	if guest.events[1].EventType() != network.EvtPlayerReady {
		t.Errorf("Expected player_ready, got %s", guest.events[1].EventType())
	}
}

func TestBroadcastToRoom_CountsDrops(t *testing.T) {
	closed := &recordingSender{open: false}
	observer := &countingObserver{drops: make(map[string]int)}

	r := room.NewRoom("ROOM02", 9)
	r.AddPlayer(room.NewPlayer("gone", true, closed))
	r.AddPlayer(room.NewPlayer("detached", false, nil))

	NewRoomBroadcaster(observer).BroadcastToRoom(r, network.NewGameReset(9), "")

	if observer.drops[network.EvtGameReset] != 2 {
		t.Errorf("Expected 2 dropped game_reset events, got %d", observer.drops[network.EvtGameReset])
	}
}
