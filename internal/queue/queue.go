// Package queue defers command dispatch across a Kafka topic. A publisher
// hands CommandPayloads to the broker; a consumer loop reads them back and
// resolves them through the command registry. When the queue is disabled,
// callers dispatch in-process instead.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/groupscribe/groupscribe/internal/command"
)

// envelope is the wire form of one deferred dispatch.
type envelope struct {
	Command string          `json:"command"`
	Payload command.Payload `json:"payload"`
}

// Publisher writes command payloads to the topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a publisher for the given brokers and topic.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(brokers, ",")...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Dispatch queues a command instead of resolving it. Keyed by chat id so
// commands for one chat stay ordered.
func (p *Publisher) Dispatch(ctx context.Context, name string, payload command.Payload) error {
	body, err := json.Marshal(envelope{Command: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal command payload: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.ChatID),
		Value: body,
	})
	if err != nil {
		return fmt.Errorf("queue command %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads deferred commands and resolves them through a registry.
type Consumer struct {
	reader   *kafka.Reader
	registry *command.Registry
}

// NewConsumer builds a group consumer for the topic.
func NewConsumer(brokers, consumerGroup, topic string, registry *command.Registry) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  strings.Split(brokers, ","),
			Topic:    topic,
			GroupID:  consumerGroup,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		registry: registry,
	}
}

// Run consumes until the context is cancelled. A bad message is logged
// and skipped; one poison payload must not stall the topic.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("queue: read error: %v", err)
			continue
		}

		var env envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			log.Printf("queue: malformed payload at offset %d: %v", msg.Offset, err)
			continue
		}
		if err := c.registry.Dispatch(ctx, env.Command, env.Payload); err != nil {
			log.Printf("queue: dispatch %s for chat %s: %v", env.Command, env.Payload.ChatID, err)
		}
	}
}

// Close stops the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
