package event_bus

import (
	"encoding/json"
	"fmt"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// TailEventBus carries process-internal notifications, such as completed
// invocations, between components that must not know about each other.
// Payloads cross the bus as JSON so subscribers never share mutable state
// with publishers.
type TailEventBus[PayloadType any] interface {
	Subscribe(topic string, handler func(payload PayloadType) error, transactional bool) error
	Publish(topic string, payload PayloadType) error
}

type TailEventBusImpl[PayloadType any] struct {
	eventBus EventBus.Bus
	logger   *zap.Logger
}

func NewTailEventBus[PayloadType any](
	eventBus EventBus.Bus,
	logger *zap.Logger,
) TailEventBus[PayloadType] {
	return &TailEventBusImpl[PayloadType]{
		eventBus: eventBus,
		logger:   logger,
	}
}

func (b *TailEventBusImpl[PayloadType]) Subscribe(
	topic string,
	handler func(payload PayloadType) error,
	transactional bool,
) error {
	err := b.eventBus.SubscribeAsync(
		topic,
		func(raw string) {
			var payload PayloadType
			err := json.Unmarshal([]byte(raw), &payload)
			if err != nil {
				b.logger.Error("Failed to unmarshal payload for topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
				return
			}
			err = handler(payload)
			if err != nil {
				b.logger.Error("Failed to handle payload for topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		},
		transactional,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

func (b *TailEventBusImpl[PayloadType]) Publish(topic string, payload PayloadType) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for topic %s: %w", topic, err)
	}
	b.eventBus.Publish(topic, string(payloadBytes))
	return nil
}
