package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/messaging"
)

// marshaler names topics after the event struct, so entity.OrderPlaced is
// published to "OrderPlaced".
func marshaler() cqrs.JSONMarshaler {
	return cqrs.JSONMarshaler{GenerateName: cqrs.StructName}
}

// EventBus publishes domain events through a watermill CQRS event bus over
// Kafka.
type EventBus struct {
	bus       *cqrs.EventBus
	publisher message.Publisher
}

var _ messaging.Publisher = (*EventBus)(nil)

func NewEventBus(brokers []string, logger watermill.LoggerAdapter) (*EventBus, error) {
	publisher, err := wkafka.NewPublisher(wkafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: wkafka.DefaultMarshaler{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	bus, err := cqrs.NewEventBusWithConfig(publisher, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: marshaler(),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	return &EventBus{bus: bus, publisher: publisher}, nil
}

func (b *EventBus) PublishEvent(ctx context.Context, event entity.Event) error {
	return b.bus.Publish(ctx, event)
}

func (b *EventBus) Close() error {
	return b.publisher.Close()
}

// NewEventProcessor wires a watermill event processor that consumes events
// from Kafka, one consumer group subscription per handler topic.
func NewEventProcessor(router *message.Router, brokers []string, consumerGroup string, logger watermill.LoggerAdapter) (*cqrs.EventProcessor, error) {
	return cqrs.NewEventProcessorWithConfig(router, cqrs.EventProcessorConfig{
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			saramaConfig := wkafka.DefaultSaramaSubscriberConfig()
			saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

			return wkafka.NewSubscriber(wkafka.SubscriberConfig{
				Brokers:               brokers,
				Unmarshaler:           wkafka.DefaultMarshaler{},
				ConsumerGroup:         consumerGroup,
				OverwriteSaramaConfig: saramaConfig,
			}, logger)
		},
		Marshaler: marshaler(),
		Logger:    logger,
	})
}
