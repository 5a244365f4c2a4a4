package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/models"
)

// Routing keys.
const (
	EventRoomOpened    = "room.opened"
	EventRoomClosed    = "room.closed"
	EventRoundFinished = "round.finished"
)

const publishTimeout = 5 * time.Second

// Message is the body of every published event.
type Message struct {
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type delivery struct {
	key  string
	body []byte
}

// Publisher sends room lifecycle events to a topic exchange from a
// background goroutine. Publishing is best-effort.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	queue    chan delivery
	onDrop   func()
	mutex    sync.RWMutex
	closed   bool
	done     chan struct{}
}

func NewPublisher(cfg config.EventsConfig, onDrop func()) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %v", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %v", cfg.Exchange, err)
	}

	p := newPublisher(ch, cfg.Exchange, cfg.QueueSize, onDrop)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, queueSize int, onDrop func()) *Publisher {
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		queue:    make(chan delivery, queueSize),
		onDrop:   onDrop,
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) RoomOpened(room models.RoomSnapshot) {
	p.enqueue(EventRoomOpened, room.Code, room)
}

// RoomUpdated is not published; only lifecycle edges are.
func (p *Publisher) RoomUpdated(models.RoomSnapshot) {}

func (p *Publisher) RoomClosed(code string) {
	p.enqueue(EventRoomClosed, code, nil)
}

func (p *Publisher) RoundFinished(record models.GameRecord) {
	p.enqueue(EventRoundFinished, record.RoomCode, record)
}

func (p *Publisher) enqueue(key, code string, payload any) {
	msg := Message{RoomCode: code}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Log.Errorf("Failed to encode %s event: %v", key, err)
			return
		}
		msg.Data = data
	}
	body, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorf("Failed to encode %s event: %v", key, err)
		return
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.queue <- delivery{key: key, body: body}:
	default:
		logger.Log.Warnf("Event queue full, dropped %s for room %s", key, code)
		if p.onDrop != nil {
			p.onDrop()
		}
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for d := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.ch.PublishWithContext(ctx, p.exchange, d.key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         d.body,
		})
		cancel()
		if err != nil {
			logger.Log.Errorf("Failed to publish %s: %v", d.key, err)
		}
	}
}

// Close drains queued events and closes the channel and connection.
func (p *Publisher) Close() {
	p.mutex.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mutex.Unlock()
	<-p.done

	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
