package coordinator

import (
	"time"

	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/network"
)

// Scheduler runs callbacks on an interval. *timer.TimerManager implements it.
type Scheduler interface {
	AddTimer(delay, interval time.Duration, callback func()) int64
}

// ReapIdle closes every room with no activity for at least idle. Connected
// members are told the room expired. It returns the number of rooms closed.
func (c *Coordinator) ReapIdle(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	now := c.now()
	expired := 0
	for _, r := range c.rooms.Rooms() {
		r.Lock()
		if !r.Closed() && now.Sub(r.LastActivity()) >= idle {
			c.broadcaster.BroadcastToRoom(r, network.NewError("Room expired"), "")
			c.closeRoom(r)
			expired++
			logger.Log.Infof("Room %s expired after %s idle", r.Code, now.Sub(r.LastActivity()).Truncate(time.Second))
		}
		r.Unlock()
	}
	return expired
}

// StartReaper schedules ReapIdle every interval and returns the timer id.
func (c *Coordinator) StartReaper(s Scheduler, idle, interval time.Duration) int64 {
	return s.AddTimer(interval, interval, func() {
		if n := c.ReapIdle(idle); n > 0 {
			logger.Log.Infof("Reaped %d idle rooms", n)
		}
	})
}
