// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/network"
	"github.com/wfunc/matchgame/room"
)

// DropObserver is told about every event that could not be queued.
type DropObserver interface {
	EventDropped(eventType string)
}

// RoomBroadcaster fans events out to room members. Sends are best-effort and
// never block, so it is safe to call while holding the room lock.
type RoomBroadcaster struct {
	observer DropObserver
}

var _ room.Broadcaster = (*RoomBroadcaster)(nil)

func NewRoomBroadcaster(observer DropObserver) *RoomBroadcaster {
	return &RoomBroadcaster{observer: observer}
}

// BroadcastToRoom sends ev to every member of r except excludeID (which may
// be empty). The caller holds r's lock.
func (b *RoomBroadcaster) BroadcastToRoom(r *room.Room, ev network.Event, excludeID string) {
	for _, p := range r.Players() {
		if p.ID == excludeID {
			continue
		}
		b.SendToPlayer(r.Code, p, ev)
	}
}

func (b *RoomBroadcaster) SendToPlayer(roomCode string, p *room.Player, ev network.Event) {
	if p.Send(ev) {
		return
	}
	logger.Log.Debugf("Dropped %s for player %s in room %s", ev.EventType(), p.ID, roomCode)
	if b.observer != nil {
		b.observer.EventDropped(ev.EventType())
	}
}
