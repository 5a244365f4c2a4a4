package services

import (
	"context"
	"errors"
	"testing"

	"github.com/wfunc/matchgame/models"
)

type mockLive struct{}

func (mockLive) Stats() models.LiveStats {
	return models.LiveStats{Rooms: 2, Players: 3, RoomsByState: map[string]int{"playing": 1, "waiting": 1}}
}

func (mockLive) ListRooms() []models.RoomInfo {
	return []models.RoomInfo{{Code: "ABC123"}, {Code: "XYZ789"}}
}

type mockSummary struct {
	summary models.Summary
	err     error
}

func (m mockSummary) Summary(context.Context) (models.Summary, error) { return m.summary, m.err }

func TestSummaryWithoutStore(t *testing.T) {
	s := NewStatsService(mockLive{}, nil)
	o, err := s.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if o.Live.Players != 3 || o.Stored != nil {
		t.Errorf("Unexpected overview %+v", o)
	}
	if len(s.Rooms()) != 2 {
		t.Error("Expected both rooms")
	}
}

func TestSummaryWithStore(t *testing.T) {
	s := NewStatsService(mockLive{}, mockSummary{summary: models.Summary{Rounds: 10, Matches: 4}})
	o, err := s.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if o.Stored == nil || o.Stored.Rounds != 10 || o.Stored.Matches != 4 {
		t.Errorf("Unexpected stored summary %+v", o.Stored)
	}

	failing := NewStatsService(mockLive{}, mockSummary{err: errors.New("db down")})
	o, err = failing.Summary(context.Background())
	if err == nil {
		t.Error("Expected the store error")
	}
	if o.Live.Rooms != 2 {
		t.Error("Live stats should still be returned on store failure")
	}
}
