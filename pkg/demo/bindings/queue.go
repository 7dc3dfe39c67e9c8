package bindings

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Queue is the demo worker's message-queue binding. Consumers acknowledge
// handled messages; a handler error negatively acknowledges so the message is
// redelivered.
type Queue interface {
	Publish(ctx context.Context, subject string, body []byte) error
	Consume(subject string, handler func(body []byte) error) (func() error, error)
}

type NatsQueueImpl struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

func NewNatsQueueImpl(url string, logger *zap.Logger) (*NatsQueueImpl, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	return &NatsQueueImpl{js: js, logger: logger}, nil
}

func (q *NatsQueueImpl) Publish(ctx context.Context, subject string, body []byte) error {
	_, err := q.js.Publish(subject, body, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (q *NatsQueueImpl) Consume(subject string, handler func(body []byte) error) (func() error, error) {
	sub, err := q.js.Subscribe(
		subject,
		func(msg *nats.Msg) {
			if err := handler(msg.Data); err != nil {
				q.logger.Warn("Message handler failed, requesting redelivery",
					zap.String("subject", subject),
					zap.Error(err),
				)
				if nakErr := msg.Nak(); nakErr != nil {
					q.logger.Error("Failed to nak message", zap.Error(nakErr))
				}
				return
			}
			if ackErr := msg.Ack(); ackErr != nil {
				q.logger.Error("Failed to ack message", zap.Error(ackErr))
			}
		},
		nats.ManualAck(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}
