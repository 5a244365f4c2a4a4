// models/gorm_models.go
package models

import (
	"time"
)

// GormRoom mirrors a live room.
type GormRoom struct {
	ID             uint             `gorm:"primaryKey"`
	Code           string           `gorm:"uniqueIndex;size:16;not null"`
	MaxNumber      int              `gorm:"not null"`
	HasUsedReverse bool             `gorm:"not null;default:false"`
	State          string           `gorm:"size:16;not null"`
	Players        []PlayerSnapshot `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (GormRoom) TableName() string { return "rooms" }

// GormGameRecord is one finished round.
type GormGameRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomCode  string `gorm:"index;size:16;not null"`
	MaxNumber int    `gorm:"not null"`
	First     int    `gorm:"not null"`
	Second    int    `gorm:"not null"`
	Match     bool   `gorm:"index;not null"`
	Reversed  bool   `gorm:"not null"`
	PlayedAt  time.Time
}

func (GormGameRecord) TableName() string { return "game_records" }

func NewGormRoom(s RoomSnapshot) GormRoom {
	return GormRoom{
		Code:           s.Code,
		MaxNumber:      s.MaxNumber,
		HasUsedReverse: s.HasUsedReverse,
		State:          s.State,
		Players:        s.Players,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (g GormRoom) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Code:           g.Code,
		MaxNumber:      g.MaxNumber,
		HasUsedReverse: g.HasUsedReverse,
		State:          g.State,
		Players:        g.Players,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

func NewGormGameRecord(r GameRecord) GormGameRecord {
	return GormGameRecord{
		RoomCode:  r.RoomCode,
		MaxNumber: r.MaxNumber,
		First:     r.Numbers[0],
		Second:    r.Numbers[1],
		Match:     r.Match,
		Reversed:  r.Reversed,
		PlayedAt:  r.PlayedAt,
	}
}
