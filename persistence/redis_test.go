package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wfunc/matchgame/models"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return newRedisStore(client, "test:"), mr
}

func TestRedis_RoomLifecycle(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	room := models.RoomSnapshot{
		Code:      "ABC123",
		MaxNumber: 7,
		State:     "waiting",
		Players:   []models.PlayerSnapshot{{ID: "p1", IsHost: true}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := store.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom failed: %v", err)
	}
	room.State = "playing"
	if err := store.SaveRoom(ctx, room); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRoom(ctx, models.RoomSnapshot{Code: "XYZ789", State: "waiting"}); err != nil {
		t.Fatal(err)
	}

	if !mr.Exists("test:room:ABC123") {
		t.Error("Expected the room document under the prefixed key")
	}

	rooms, err := store.LoadRooms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	for _, r := range rooms {
		if r.Code == "ABC123" && (r.State != "playing" || !r.CreatedAt.Equal(created)) {
			t.Errorf("Unexpected stored room %+v", r)
		}
	}

	if err := store.DeleteRoom(ctx, "ABC123"); err != nil {
		t.Fatal(err)
	}
	rooms, _ = store.LoadRooms(ctx)
	if len(rooms) != 1 || rooms[0].Code != "XYZ789" {
		t.Errorf("Expected only XYZ789 after delete, got %+v", rooms)
	}
}

func TestRedis_LoadSkipsMissingDocuments(t *testing.T) {
	store, mr := newTestRedis(t)
	mr.SAdd("test:rooms", "GHOST1")

	rooms, err := store.LoadRooms(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 0 {
		t.Errorf("Expected no rooms, got %+v", rooms)
	}
}

func TestRedis_RecordsAndSummary(t *testing.T) {
	store, _ := newTestRedis(t)
	ctx := context.Background()

	empty, err := store.Summary(ctx)
	if err != nil || empty.Rounds != 0 {
		t.Fatalf("Expected empty summary, got %+v, %v", empty, err)
	}

	records := []models.GameRecord{
		{RoomCode: "A", Numbers: [2]int{1, 2}},
		{RoomCode: "A", Numbers: [2]int{2, 2}, Match: true},
		{RoomCode: "B", Numbers: [2]int{3, 3}, Match: true},
	}
	for _, r := range records {
		if err := store.SaveGameRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	s, err := store.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Rounds != 3 || s.Matches != 2 {
		t.Errorf("Unexpected summary %+v", s)
	}

	recent, err := store.RecentRecords(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].RoomCode != "B" {
		t.Errorf("Expected newest first, got %+v", recent)
	}
}
