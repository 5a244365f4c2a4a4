// services/stats_service.go
package services

import (
	"context"

	"github.com/wfunc/matchgame/models"
)

// LiveSource reports on the in-memory registry. *coordinator.Coordinator
// implements it.
type LiveSource interface {
	Stats() models.LiveStats
	ListRooms() []models.RoomInfo
}

// SummarySource reports stored totals. Any persistence.Store implements it.
type SummarySource interface {
	Summary(ctx context.Context) (models.Summary, error)
}

// Overview combines live and stored statistics.
type Overview struct {
	Live   models.LiveStats `json:"live"`
	Stored *models.Summary  `json:"stored,omitempty"`
}

type StatsService struct {
	live  LiveSource
	store SummarySource
}

// NewStatsService builds the service. store may be nil when nothing is
// persisted.
func NewStatsService(live LiveSource, store SummarySource) *StatsService {
	return &StatsService{live: live, store: store}
}

func (s *StatsService) Summary(ctx context.Context) (Overview, error) {
	o := Overview{Live: s.live.Stats()}
	if s.store == nil {
		return o, nil
	}
	stored, err := s.store.Summary(ctx)
	if err != nil {
		return o, err
	}
	o.Stored = &stored
	return o, nil
}

func (s *StatsService) Live() models.LiveStats {
	return s.live.Stats()
}

func (s *StatsService) Rooms() []models.RoomInfo {
	return s.live.ListRooms()
}
