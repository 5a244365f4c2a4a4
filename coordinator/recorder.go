package coordinator

import (
	"time"

	"github.com/wfunc/matchgame/models"
)

// Recorder observes room mutations. Calls are made while the room lock is
// held, so implementations must only enqueue and return.
type Recorder interface {
	RoomOpened(snapshot models.RoomSnapshot)
	RoomUpdated(snapshot models.RoomSnapshot)
	RoomClosed(code string)
	RoundFinished(record models.GameRecord)
}

// Recorders fans out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) RoomOpened(s models.RoomSnapshot) {
	for _, r := range rs {
		r.RoomOpened(s)
	}
}

func (rs Recorders) RoomUpdated(s models.RoomSnapshot) {
	for _, r := range rs {
		r.RoomUpdated(s)
	}
}

func (rs Recorders) RoomClosed(code string) {
	for _, r := range rs {
		r.RoomClosed(code)
	}
}

func (rs Recorders) RoundFinished(rec models.GameRecord) {
	for _, r := range rs {
		r.RoundFinished(rec)
	}
}

// Metrics receives coordinator counters.
type Metrics interface {
	CommandHandled(command string, kind Kind, latency time.Duration)
	RoomOpened()
	RoomClosed()
	RoundFinished(outcome string)
	EventDropped(eventType string)
}

type nopMetrics struct{}

func (nopMetrics) CommandHandled(string, Kind, time.Duration) {}
func (nopMetrics) RoomOpened()                                {}
func (nopMetrics) RoomClosed()                                {}
func (nopMetrics) RoundFinished(string)                       {}
func (nopMetrics) EventDropped(string)                        {}
