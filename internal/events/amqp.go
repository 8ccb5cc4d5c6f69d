package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	publishBuffer  = 256
)

// publishChannel is the part of *amqp.Channel the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// DomainEvent is the message body sent to the exchange.
type DomainEvent struct {
	Action        string    `json:"action"`
	RequestID     string    `json:"request_id,omitempty"`
	Vehicle       string    `json:"vehicle,omitempty"`
	TripID        string    `json:"trip_id,omitempty"`
	RouteID       string    `json:"route_id,omitempty"`
	Phase         string    `json:"phase"`
	Occupied      int       `json:"occupied"`
	Capacity      int       `json:"capacity"`
	LedgerBalance int64     `json:"ledger_balance"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AMQPPublisher forwards console events to a RabbitMQ topic exchange with routing
// key "driver.<action>". Publish only enqueues; a single goroutine does the I/O.
type AMQPPublisher struct {
	exchange string
	vehicle  string
	conn     *amqp.Connection
	ch       publishChannel
	queue    chan models.Event
	now      func() time.Time

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// DialAMQP connects, declares the durable topic exchange and starts the publish loop.
func DialAMQP(url, exchange, vehicle string) (*AMQPPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare %s: %w", exchange, err)
	}
	p := newPublisher(ch, exchange, vehicle)
	p.conn = conn
	return p, nil
}

func newPublisher(ch publishChannel, exchange, vehicle string) *AMQPPublisher {
	p := &AMQPPublisher{
		exchange: exchange,
		vehicle:  vehicle,
		ch:       ch,
		queue:    make(chan models.Event, publishBuffer),
		now:      utils.NowUTC,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish implements services.SnapshotSink.
func (p *AMQPPublisher) Publish(ev models.Event) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- ev:
	default:
		utils.LogEvent(ev.RequestID, "amqp", "drop", "queue full action="+string(ev.Action))
	}
}

// Close stops accepting events, flushes what is queued and closes the channel.
// It returns once the publish loop has exited.
func (p *AMQPPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	<-p.stopped
}

func (p *AMQPPublisher) loop() {
	defer close(p.stopped)
	defer func() {
		_ = p.ch.Close()
		if p.conn != nil {
			_ = p.conn.Close()
		}
	}()
	for {
		select {
		case ev := <-p.queue:
			p.send(ev)
		case <-p.done:
			for {
				select {
				case ev := <-p.queue:
					p.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *AMQPPublisher) send(ev models.Event) {
	body, err := json.Marshal(DomainEvent{
		Action:        string(ev.Action),
		RequestID:     ev.RequestID,
		Vehicle:       p.vehicle,
		TripID:        ev.Snapshot.TripID,
		RouteID:       ev.Snapshot.RouteID,
		Phase:         string(ev.Snapshot.Phase),
		Occupied:      ev.Snapshot.Occupied,
		Capacity:      ev.Snapshot.Capacity,
		LedgerBalance: ev.Snapshot.LedgerBalance,
		OccurredAt:    p.now(),
	})
	if err != nil {
		utils.LogEvent(ev.RequestID, "amqp", "marshal", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	key := RoutingKey(ev.Action)
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		utils.LogEvent(ev.RequestID, "amqp", "publish", "key="+key+" "+err.Error())
	}
}

// RoutingKey is the topic key for an action, e.g. "driver.collect_cash".
func RoutingKey(action domain.Action) string {
	return "driver." + strings.ToLower(action.String())
}
