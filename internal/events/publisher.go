package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	producer *Producer
	service  string
	now      func() time.Time
}

func NewPublisher(producer *Producer, service string) *Publisher {
	return &Publisher{producer: producer, service: service, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	env, err := NewEnvelope(ctx, ev, p.service, p.now())
	if err != nil {
		return err
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.Type)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(envelopeVersion))},
		},
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
