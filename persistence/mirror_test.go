package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/matchgame/models"
)

// MockStore records calls in order.
type MockStore struct {
	mutex   sync.Mutex
	calls   []string
	block   chan struct{}
	failAll bool
}

func (s *MockStore) record(call string) error {
	if s.block != nil {
		<-s.block
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls = append(s.calls, call)
	if s.failAll {
		return errors.New("boom")
	}
	return nil
}

func (s *MockStore) Calls() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *MockStore) SaveRoom(_ context.Context, r models.RoomSnapshot) error {
	return s.record("save:" + r.Code + ":" + r.State)
}

func (s *MockStore) DeleteRoom(_ context.Context, code string) error {
	return s.record("delete:" + code)
}

func (s *MockStore) LoadRooms(context.Context) ([]models.RoomSnapshot, error) { return nil, nil }

func (s *MockStore) SaveGameRecord(_ context.Context, r models.GameRecord) error {
	return s.record("record:" + r.RoomCode + ":" + r.Outcome())
}

func (s *MockStore) Summary(context.Context) (models.Summary, error) { return models.Summary{}, nil }

func (s *MockStore) Close() error { return nil }

func TestMirrorPreservesOrder(t *testing.T) {
	store := &MockStore{}
	m := NewMirror(store, 16, nil)

	m.RoomOpened(models.RoomSnapshot{Code: "AAAAAA", State: "waiting"})
	m.RoomUpdated(models.RoomSnapshot{Code: "AAAAAA", State: "playing"})
	m.RoundFinished(models.GameRecord{RoomCode: "AAAAAA", Match: true})
	m.RoomClosed("AAAAAA")
	m.Close()

	want := []string{"save:AAAAAA:waiting", "save:AAAAAA:playing", "record:AAAAAA:match", "delete:AAAAAA"}
	got := store.Calls()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Call %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMirrorDropsWhenFull(t *testing.T) {
	store := &MockStore{block: make(chan struct{})}
	drops := 0
	m := NewMirror(store, 1, func() { drops++ })

	// The worker takes the first write and blocks; the second fills the
	// queue; the third is dropped.
	m.RoomClosed("A")
	for len(m.queue) != 0 {
		time.Sleep(time.Millisecond)
	}
	m.RoomClosed("B")
	m.RoomClosed("C")

	if drops != 1 {
		t.Errorf("Expected 1 drop, got %d", drops)
	}
	close(store.block)
	m.Close()

	if got := store.Calls(); len(got) != 2 {
		t.Errorf("Expected 2 writes, got %v", got)
	}
}

func TestMirrorClosedIgnoresWrites(t *testing.T) {
	store := &MockStore{failAll: true}
	m := NewMirror(store, 4, nil)
	m.RoomClosed("A")
	m.Close()
	m.Close()
	m.RoomClosed("B")

	if got := store.Calls(); len(got) != 1 {
		t.Errorf("Expected only the write before Close, got %v", got)
	}
}
