package room

import "github.com/wfunc/matchgame/network"

// Broadcaster delivers events to room members. It lives here so the
// broadcast package can depend on room without a cycle. Implementations
// are called with the room lock held and must not block.
type Broadcaster interface {
	BroadcastToRoom(r *Room, ev network.Event, excludeID string)
	SendToPlayer(roomCode string, p *Player, ev network.Event)
}
