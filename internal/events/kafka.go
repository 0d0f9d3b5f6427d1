package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Audience identifies the room class an event was addressed to, for
// downstream consumers of the relay topic.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceStaff Audience = "staff"
	AudienceTable Audience = "table"
	AudienceAll   Audience = "all"
)

// Envelope is the relay wire format. The partition key is the room so that
// events for one room keep their order.
type Envelope struct {
	EventID    string          `json:"event_id"`
	Audience   Audience        `json:"audience"`
	Room       string          `json:"room,omitempty"`
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
}

// KafkaRelay republishes every event to a Kafka topic so that downstream
// systems (kitchen displays, analytics) can consume the same stream the
// websocket hub delivers. Writes are asynchronous; errors are logged by the
// writer completion callback and never reach the caller.
type KafkaRelay struct {
	writer   *kafka.Writer
	producer string
	lg       *zap.Logger
}

// NewKafkaRelay creates a relay producing to the given brokers and topic.
func NewKafkaRelay(brokers []string, topic, producer string, lg *zap.Logger) *KafkaRelay {
	r := &KafkaRelay{producer: producer, lg: lg}
	r.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				lg.Error("relay write failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return r
}

// Close flushes pending messages and releases the writer.
func (r *KafkaRelay) Close() error {
	return r.writer.Close()
}

func (r *KafkaRelay) publish(ctx context.Context, audience Audience, room string, ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		r.lg.Error("relay marshal failed", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		Audience:   audience,
		Room:       room,
		Event:      ev.Name,
		Data:       data,
		OccurredAt: time.Now().UTC(),
		Producer:   r.producer,
	}
	value, err := json.Marshal(env)
	if err != nil {
		r.lg.Error("relay marshal failed", zap.String("event", ev.Name), zap.Error(err))
		return
	}

	key := string(audience)
	if room != "" {
		key += ":" + room
	}
	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.Name)},
		},
	}); err != nil {
		// Async mode only errors here on queueing problems.
		r.lg.Error("relay enqueue failed", zap.String("event", ev.Name), zap.Error(err))
	}
}

func (r *KafkaRelay) ToUser(ctx context.Context, userID string, ev Event) {
	r.publish(ctx, AudienceUser, userID, ev)
}

func (r *KafkaRelay) ToStaff(ctx context.Context, ev Event) {
	r.publish(ctx, AudienceStaff, "", ev)
}

func (r *KafkaRelay) ToTable(ctx context.Context, tableID string, ev Event) {
	r.publish(ctx, AudienceTable, tableID, ev)
}

func (r *KafkaRelay) Broadcast(ctx context.Context, ev Event) {
	r.publish(ctx, AudienceAll, "", ev)
}
