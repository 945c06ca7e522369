package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/db/dbtest"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	mu        sync.Mutex
	attempted []uuid.UUID
	err       error
}

func (d *recordingDeliverer) Attempt(_ context.Context, n db.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempted = append(d.attempted, n.ID)
	return d.err
}

func deliverTask(t *testing.T, payload PayloadDeliverNotification) *asynq.Task {
	t.Helper()

	jsonPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	return asynq.NewTask(TaskDeliverNotification, jsonPayload)
}

func TestProcessTaskDeliverNotification(t *testing.T) {
	store := dbtest.NewFakeStore()
	deliverer := &recordingDeliverer{}
	processor := &RedisTaskProcessor{store: store, deliverer: deliverer}

	n := store.Seed(db.Notification{
		UserID:     "user-1",
		Channel:    db.NotificationChannelPortal,
		Status:     db.NotificationStatusPending,
		MaxRetries: 3,
	})

	task := deliverTask(t, PayloadDeliverNotification{NotificationID: n.ID})
	err := processor.ProcessTaskDeliverNotification(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{n.ID}, deliverer.attempted)
}

func TestProcessTaskDeliverNotificationMissingRecord(t *testing.T) {
	processor := &RedisTaskProcessor{store: dbtest.NewFakeStore(), deliverer: &recordingDeliverer{}}

	task := deliverTask(t, PayloadDeliverNotification{NotificationID: uuid.New()})
	err := processor.ProcessTaskDeliverNotification(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessTaskDeliverNotificationMalformedPayload(t *testing.T) {
	processor := &RedisTaskProcessor{store: dbtest.NewFakeStore(), deliverer: &recordingDeliverer{}}

	task := asynq.NewTask(TaskDeliverNotification, []byte("{not json"))
	err := processor.ProcessTaskDeliverNotification(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessTaskDeliverNotificationAttemptError(t *testing.T) {
	store := dbtest.NewFakeStore()
	deliverer := &recordingDeliverer{err: errors.New("store unavailable")}
	processor := &RedisTaskProcessor{store: store, deliverer: deliverer}

	n := store.Seed(db.Notification{
		UserID:     "user-1",
		Channel:    db.NotificationChannelPortal,
		Status:     db.NotificationStatusPending,
		MaxRetries: 3,
	})

	task := deliverTask(t, PayloadDeliverNotification{NotificationID: n.ID})
	err := processor.ProcessTaskDeliverNotification(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}
