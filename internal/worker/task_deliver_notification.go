package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// PayloadDeliverNotification identifies the record whose first delivery
// attempt should run. The record itself stays in Postgres; only the ID rides
// through Redis.
type PayloadDeliverNotification struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

func (distributor *RedisTaskDistributor) DistributeTaskDeliverNotification(
	ctx context.Context,
	payload *PayloadDeliverNotification,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	// Retry accounting lives in the notification state machine; the retry
	// sweep re-attempts the record, never asynq.
	opts = append(opts, asynq.MaxRetry(0))

	task := asynq.NewTask(TaskDeliverNotification, jsonPayload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().Str("type", task.Type()).Bytes("payload", task.Payload()).
		Str("queue", info.Queue).Msg("task enqueued")

	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskDeliverNotification(
	ctx context.Context,
	task *asynq.Task,
) error {
	var payload PayloadDeliverNotification
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	n, err := processor.store.GetNotification(ctx, payload.NotificationID)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return fmt.Errorf("notification %s no longer exists: %w", payload.NotificationID, asynq.SkipRetry)
		}

		return fmt.Errorf("failed to load notification %s: %w", payload.NotificationID, err)
	}

	if err = processor.deliverer.Attempt(ctx, n); err != nil {
		return fmt.Errorf("failed to process delivery attempt: %w", err)
	}

	log.Info().Str("type", task.Type()).
		Str("notification_id", payload.NotificationID.String()).Msg("task processed")

	return nil
}
