package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/db/dbtest"
	"github.com/fundlane/notify-BE/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type enqueuedTask struct {
	payload *worker.PayloadDeliverNotification
	opts    []asynq.Option
}

type captureDistributor struct {
	mu    sync.Mutex
	tasks []enqueuedTask
	err   error
}

func (c *captureDistributor) DistributeTaskDeliverNotification(_ context.Context, payload *worker.PayloadDeliverNotification, opts ...asynq.Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	c.tasks = append(c.tasks, enqueuedTask{payload: payload, opts: opts})
	return nil
}

func (c *captureDistributor) queueOf(t *testing.T, task enqueuedTask) string {
	t.Helper()

	for _, opt := range task.opts {
		if opt.Type() == asynq.QueueOpt {
			return opt.Value().(string)
		}
	}

	t.Fatal("no queue option on enqueued task")
	return ""
}

func validCreateParams() CreateParams {
	return CreateParams{
		UserID:  "user-1",
		Type:    string(db.NotificationTypeCapitalCall),
		Channel: string(db.NotificationChannelPortal),
		Title:   "Capital call issued",
		Message: "A capital call of $50,000 is due on 2026-09-15.",
	}
}

func TestDispatcherCreate(t *testing.T) {
	store := dbtest.NewFakeStore()
	distributor := &captureDistributor{}
	dispatcher := NewDispatcher(store, distributor, nil)

	n, err := dispatcher.Create(context.Background(), validCreateParams())
	require.NoError(t, err)

	require.Equal(t, db.NotificationStatusPending, n.Status)
	require.Equal(t, int32(0), n.RetryCount)
	require.Equal(t, int32(defaultMaxRetries), n.MaxRetries)
	require.Equal(t, db.NotificationPriorityNormal, n.Priority)
	require.Nil(t, n.ReadAt)
	require.Nil(t, n.NextRetryAt)

	require.Len(t, distributor.tasks, 1)
	require.Equal(t, n.ID, distributor.tasks[0].payload.NotificationID)
	require.Equal(t, worker.QueueDefault, distributor.queueOf(t, distributor.tasks[0]))
}

func TestDispatcherCreateUrgentGoesToCriticalQueue(t *testing.T) {
	store := dbtest.NewFakeStore()
	distributor := &captureDistributor{}
	dispatcher := NewDispatcher(store, distributor, nil)

	arg := validCreateParams()
	arg.Priority = string(db.NotificationPriorityUrgent)

	_, err := dispatcher.Create(context.Background(), arg)
	require.NoError(t, err)

	require.Len(t, distributor.tasks, 1)
	require.Equal(t, worker.QueueCritical, distributor.queueOf(t, distributor.tasks[0]))
}

func TestDispatcherCreateValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(arg *CreateParams)
		wantField string
	}{
		{
			name:      "MissingUserID",
			mutate:    func(arg *CreateParams) { arg.UserID = "" },
			wantField: "user_id",
		},
		{
			name:      "MissingTitle",
			mutate:    func(arg *CreateParams) { arg.Title = "" },
			wantField: "title",
		},
		{
			name:      "MissingMessage",
			mutate:    func(arg *CreateParams) { arg.Message = "" },
			wantField: "message",
		},
		{
			name:      "UnknownType",
			mutate:    func(arg *CreateParams) { arg.Type = "carrier_pigeon_update" },
			wantField: "type",
		},
		{
			name:      "UnknownChannel",
			mutate:    func(arg *CreateParams) { arg.Channel = "fax" },
			wantField: "channel",
		},
		{
			name:      "UnknownPriority",
			mutate:    func(arg *CreateParams) { arg.Priority = "extreme" },
			wantField: "priority",
		},
		{
			name: "NegativeMaxRetries",
			mutate: func(arg *CreateParams) {
				maxRetries := int32(-1)
				arg.MaxRetries = &maxRetries
			},
			wantField: "max_retries",
		},
		{
			name: "ExpiresAtInThePast",
			mutate: func(arg *CreateParams) {
				expiresAt := time.Now().Add(-time.Hour)
				arg.ExpiresAt = &expiresAt
			},
			wantField: "expires_at",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := dbtest.NewFakeStore()
			distributor := &captureDistributor{}
			dispatcher := NewDispatcher(store, distributor, nil)

			arg := validCreateParams()
			tc.mutate(&arg)

			_, err := dispatcher.Create(context.Background(), arg)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, tc.wantField, validationErr.Field)

			require.Zero(t, store.Len())
			require.Empty(t, distributor.tasks)
		})
	}
}

func TestDispatcherCreateEnqueueFailureDoesNotFailCreate(t *testing.T) {
	store := dbtest.NewFakeStore()
	distributor := &captureDistributor{err: errors.New("redis unavailable")}
	dispatcher := NewDispatcher(store, distributor, nil)

	n, err := dispatcher.Create(context.Background(), validCreateParams())
	require.NoError(t, err)

	// The row is persisted in pending; the retry sweep will find it.
	got, err := store.GetNotification(context.Background(), n.ID)
	require.NoError(t, err)
	require.Equal(t, db.NotificationStatusPending, got.Status)
}

func TestDispatcherCreateMany(t *testing.T) {
	store := dbtest.NewFakeStore()
	distributor := &captureDistributor{}
	dispatcher := NewDispatcher(store, distributor, nil)

	args := []CreateParams{validCreateParams(), validCreateParams(), validCreateParams()}
	args[1].UserID = "user-2"

	created, err := dispatcher.CreateMany(context.Background(), args)
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Len(t, distributor.tasks, 3)

	for _, n := range created {
		require.Equal(t, db.NotificationStatusPending, n.Status)
	}
}

func TestDispatcherCreateManyRejectsWholeBatch(t *testing.T) {
	store := dbtest.NewFakeStore()
	distributor := &captureDistributor{}
	dispatcher := NewDispatcher(store, distributor, nil)

	args := []CreateParams{validCreateParams(), validCreateParams(), validCreateParams()}
	args[2].Channel = "fax"

	_, err := dispatcher.CreateMany(context.Background(), args)
	require.Error(t, err)
	require.Contains(t, err.Error(), "notification at index 2")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	require.Zero(t, store.Len())
	require.Empty(t, distributor.tasks)
}

func TestDispatcherCreateManyEmptyBatch(t *testing.T) {
	dispatcher := NewDispatcher(dbtest.NewFakeStore(), &captureDistributor{}, nil)

	_, err := dispatcher.CreateMany(context.Background(), nil)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "notifications", validationErr.Field)
}
