// models/models.go
package models

import (
	"time"
)

// PlayerSnapshot is a point-in-time copy of a room member.
type PlayerSnapshot struct {
	ID     string `json:"id"`
	IsHost bool   `json:"is_host"`
	Number *int   `json:"number,omitempty"`
}

// RoomSnapshot is a point-in-time copy of a room, taken under the room lock.
type RoomSnapshot struct {
	Code           string           `json:"code"`
	MaxNumber      int              `json:"max_number"`
	HasUsedReverse bool             `json:"has_used_reverse"`
	State          string           `json:"state"`
	Players        []PlayerSnapshot `json:"players"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// GameRecord describes one finished round.
type GameRecord struct {
	RoomCode  string    `json:"room_code"`
	MaxNumber int       `json:"max_number"`
	Numbers   [2]int    `json:"numbers"`
	Match     bool      `json:"match"`
	Reversed  bool      `json:"reversed"`
	PlayedAt  time.Time `json:"played_at"`
}

// Outcome labels a record for metrics and storage.
func (r GameRecord) Outcome() string {
	if r.Match {
		return "match"
	}
	return "mismatch"
}

// Summary aggregates stored rounds.
type Summary struct {
	Rounds  int64 `json:"rounds"`
	Matches int64 `json:"matches"`
}

// LiveStats describes the in-memory registry.
type LiveStats struct {
	Rooms        int            `json:"rooms"`
	Players      int            `json:"players"`
	RoomsByState map[string]int `json:"rooms_by_state"`
}

// RoomInfo is the admin view of a single live room.
type RoomInfo struct {
	Code         string    `json:"code"`
	State        string    `json:"state"`
	MaxNumber    int       `json:"max_number"`
	PlayerCount  int       `json:"player_count"`
	LastActivity time.Time `json:"last_activity"`
}
