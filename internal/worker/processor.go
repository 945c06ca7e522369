package worker

import (
	"context"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

/*
This file contains the code that picks up delivery tasks from the Redis queue
and processes them.
*/

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// NotificationDeliverer runs one channel delivery attempt for a record and
// persists the resulting transition.
type NotificationDeliverer interface {
	Attempt(ctx context.Context, n db.Notification) error
}

type RedisTaskProcessor struct {
	server    *asynq.Server
	store     db.Store
	deliverer NotificationDeliverer
}

func NewRedisTaskProcessor(redisOpt asynq.RedisClientOpt, store db.Store, deliverer NotificationDeliverer) *RedisTaskProcessor {
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger: NewLogger(),
		},
	)

	return &RedisTaskProcessor{
		server:    server,
		store:     store,
		deliverer: deliverer,
	}
}

// Start registers the task handlers for the mux, attaches the mux to the asynq server, and starts the server.
func (processor *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskDeliverNotification, processor.ProcessTaskDeliverNotification)

	return processor.server.Start(mux)
}

// Shutdown waits for in-flight tasks to finish and stops the server.
func (processor *RedisTaskProcessor) Shutdown() {
	processor.server.Shutdown()
}
