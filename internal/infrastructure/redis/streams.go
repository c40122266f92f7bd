package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/redis/go-redis/v9"
)

// EventStream carries outbox events from the relay to consumers.
const EventStream = "payments:events"

// Event is a decoded stream message.
type Event struct {
	MessageID     string
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
}

type StreamProducer struct {
	client redis.UniversalClient
	stream string
}

func NewStreamProducer(client redis.UniversalClient, stream string) *StreamProducer {
	if stream == "" {
		stream = EventStream
	}
	return &StreamProducer{client: client, stream: stream}
}

// Publish appends an outbox entry to the stream and returns the message id.
func (p *StreamProducer) Publish(ctx context.Context, entry *outbox.Entry) (string, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":       entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
			"payload":        string(payload),
			"timestamp":      entry.CreatedAt.Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish event: %w", err)
	}

	return id, nil
}

type StreamConsumer struct {
	client        redis.UniversalClient
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client redis.UniversalClient,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

// CreateGroup creates the consumer group and the stream if needed.
func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read blocks up to the configured duration for new messages.
func (c *StreamConsumer) Read(ctx context.Context) ([]*Event, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var events []*Event
	for _, s := range streams {
		for _, msg := range s.Messages {
			events = append(events, ParseEvent(msg))
		}
	}
	return events, nil
}

// ClaimStale takes over messages other consumers left pending for longer
// than minIdle.
func (c *StreamConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]*Event, error) {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}

	events := make([]*Event, 0, len(msgs))
	for _, msg := range msgs {
		events = append(events, ParseEvent(msg))
	}
	return events, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// ParseEvent decodes a stream message. An undecodable payload leaves
// Payload nil rather than dropping the event.
func ParseEvent(msg redis.XMessage) *Event {
	str := func(k string) string {
		v, _ := msg.Values[k].(string)
		return v
	}

	ev := &Event{
		MessageID:     msg.ID,
		EventID:       str("event_id"),
		AggregateType: str("aggregate_type"),
		AggregateID:   str("aggregate_id"),
		EventType:     str("event_type"),
	}
	if raw := str("payload"); raw != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			ev.Payload = payload
		}
	}
	return ev
}
