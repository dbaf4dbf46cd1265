package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrPublisherBusy = errors.New("event publisher inbox is full")

// KafkaPublisher hands envelopes to a single writer goroutine through a
// buffered inbox so request handlers never wait on the broker.
type KafkaPublisher struct {
	w     *kafka.Writer
	inbox chan kafka.Message
}

func NewKafkaPublisher(brokers []string, topic string, buf int) *KafkaPublisher {
	if buf < 1 {
		buf = 256
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 20 * time.Millisecond,
		},
		inbox: make(chan kafka.Message, buf),
	}
}

func (p *KafkaPublisher) Publish(_ context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrPublisherBusy
	}
}

// Run writes queued messages until ctx is cancelled, then flushes what is
// left and closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			if err := p.w.Close(); err != nil {
				log.Printf("[events] close writer: %v", err)
			}
			return nil
		case m := <-p.inbox:
			p.write(context.Background(), m)
		}
	}
}

func (p *KafkaPublisher) flush() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case m := <-p.inbox:
			p.write(flushCtx, m)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, m kafka.Message) {
	if err := p.w.WriteMessages(ctx, m); err != nil {
		log.Printf("[events] publish key=%s failed: %v", m.Key, err)
	}
}
