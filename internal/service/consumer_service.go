package service

import (
	"context"
	"encoding/json"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/unitofwork"
	"devotion-guide-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService stores guide session telemetry and forwards it to the
// cross-service bus.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	events     events.Publisher
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher events.Publisher,
	log logger.ILogger,
) IConsumerService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		events:     eventPublisher,
		logger:     log,
	}
}

// Consume subscribes and processes messages in the background until ctx ends.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()
	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.GuideSessionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal session message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Redelivery cannot fix a malformed payload.
		msg.Ack()
		return
	}

	record := &entity.GuideSessionLog{
		Id:             uuid.New(),
		UserId:         payload.UserId,
		ConversationId: payload.ConversationId,
		Entrypoint:     payload.Entrypoint,
		TraceId:        payload.TraceId,
		Accepted:       payload.Accepted,
		Drops:          payload.Drops,
		SyntheticDone:  payload.SyntheticDone,
		DurationMs:     payload.DurationMs,
		Error:          payload.Error,
		CreatedAt:      payload.FinishedAt,
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.GuideSessionLogRepository().Create(ctx, record); err != nil {
		cs.logger.Error("CONSUMER", "Failed to store session log", map[string]interface{}{
			"trace_id": payload.TraceId,
			"error":    err.Error(),
		})
		msg.Nack()
		return
	}

	// Bus delivery is best effort once the row is stored.
	event := events.BaseEvent{
		Type: events.TypeGuideSessionCompleted,
		Data: map[string]interface{}{
			"session_id":     record.Id.String(),
			"user_id":        record.UserId.String(),
			"entrypoint":     record.Entrypoint,
			"trace_id":       record.TraceId,
			"accepted":       record.Accepted,
			"synthetic_done": record.SyntheticDone,
			"duration_ms":    record.DurationMs,
		},
		OccurredAt: payload.FinishedAt,
	}
	if err := cs.events.Publish(ctx, event); err != nil {
		cs.logger.Warn("CONSUMER", "Failed to forward session event", map[string]interface{}{
			"trace_id": payload.TraceId,
			"error":    err.Error(),
		})
	}

	cs.logger.Debug("CONSUMER", "Session log stored", map[string]interface{}{
		"trace_id": payload.TraceId,
		"accepted": payload.Accepted,
	})
	msg.Ack()
}
