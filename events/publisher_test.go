package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wfunc/matchgame/models"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type mockChannel struct {
	mutex  sync.Mutex
	out    []published
	closed bool
}

func (c *mockChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.out = append(c.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *mockChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisherRoutesLifecycleEvents(t *testing.T) {
	ch := &mockChannel{}
	p := newPublisher(ch, "matchgame", 8, nil)

	p.RoomOpened(models.RoomSnapshot{Code: "ABC123", MaxNumber: 9, State: "waiting"})
	p.RoomUpdated(models.RoomSnapshot{Code: "ABC123", State: "playing"})
	p.RoundFinished(models.GameRecord{RoomCode: "ABC123", Numbers: [2]int{4, 4}, Match: true})
	p.RoomClosed("ABC123")
	p.Close()

	if !ch.closed {
		t.Error("Close should close the channel")
	}
	wantKeys := []string{EventRoomOpened, EventRoundFinished, EventRoomClosed}
	if len(ch.out) != len(wantKeys) {
		t.Fatalf("Expected %d messages, got %d", len(wantKeys), len(ch.out))
	}
	for i, key := range wantKeys {
		if ch.out[i].key != key || ch.out[i].exchange != "matchgame" {
			t.Errorf("Message %d went to %s/%s, want matchgame/%s", i, ch.out[i].exchange, ch.out[i].key, key)
		}
		if ch.out[i].msg.ContentType != "application/json" {
			t.Errorf("Message %d has content type %q", i, ch.out[i].msg.ContentType)
		}
	}

	var msg Message
	if err := json.Unmarshal(ch.out[1].msg.Body, &msg); err != nil {
		t.Fatal(err)
	}
	var rec models.GameRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		t.Fatal(err)
	}
	if msg.RoomCode != "ABC123" || !rec.Match || rec.Numbers != [2]int{4, 4} {
		t.Errorf("Unexpected round payload %+v / %+v", msg, rec)
	}

	var closed Message
	if err := json.Unmarshal(ch.out[2].msg.Body, &closed); err != nil {
		t.Fatal(err)
	}
	if closed.RoomCode != "ABC123" || len(closed.Data) != 0 {
		t.Errorf("room.closed should carry only the code, got %+v", closed)
	}
}

func TestPublisherIgnoresEventsAfterClose(t *testing.T) {
	ch := &mockChannel{}
	p := newPublisher(ch, "x", 1, nil)
	p.Close()
	p.RoomClosed("ABC123")

	if len(ch.out) != 0 {
		t.Errorf("Expected no messages after Close, got %d", len(ch.out))
	}
}
