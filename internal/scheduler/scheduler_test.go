package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/db/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	mu        sync.Mutex
	attempted []uuid.UUID
	inFlight  int
	peak      int
	failOn    map[uuid.UUID]error
	delay     time.Duration
}

func (d *recordingDeliverer) Attempt(_ context.Context, n db.Notification) error {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.peak {
		d.peak = d.inFlight
	}
	d.mu.Unlock()

	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.inFlight--
	d.attempted = append(d.attempted, n.ID)

	if err, ok := d.failOn[n.ID]; ok {
		return err
	}

	return nil
}

func (d *recordingDeliverer) attemptedIDs() []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]uuid.UUID{}, d.attempted...)
}

func seedDue(store *dbtest.FakeStore, status db.NotificationStatus, retryCount int32, nextRetryAt *time.Time) db.Notification {
	return store.Seed(db.Notification{
		UserID:      "user-1",
		Type:        db.NotificationTypeCapitalCall,
		Channel:     db.NotificationChannelEmail,
		Priority:    db.NotificationPriorityNormal,
		Title:       "Capital call reminder",
		Message:     "Your capital call payment is due soon.",
		Status:      status,
		RetryCount:  retryCount,
		MaxRetries:  3,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		NextRetryAt: nextRetryAt,
	})
}

func newTestScheduler(t *testing.T, store db.Store, deliverer NotificationDeliverer, workers int) *Scheduler {
	t.Helper()

	s, err := New(store, deliverer, Config{
		RetrySweepInterval: time.Minute,
		RetryBatchSize:     100,
		DeliveryWorkers:    workers,
		RetentionInterval:  time.Hour,
		ReadRetentionDays:  30,
	})
	require.NoError(t, err)

	return s
}

func TestRetrySweepAttemptsDueRecords(t *testing.T) {
	store := dbtest.NewFakeStore()
	deliverer := &recordingDeliverer{}
	s := newTestScheduler(t, store, deliverer, 4)

	pastRetry := time.Now().Add(-time.Minute)
	futureRetry := time.Now().Add(time.Hour)

	neverAttempted := seedDue(store, db.NotificationStatusPending, 0, nil)
	dueRetry := seedDue(store, db.NotificationStatusFailed, 1, &pastRetry)

	// Not yet due, terminal, and already-sent rows stay untouched.
	seedDue(store, db.NotificationStatusPending, 1, &futureRetry)
	seedDue(store, db.NotificationStatusFailed, 3, nil)
	seedDue(store, db.NotificationStatusSent, 0, nil)

	s.runRetrySweep(context.Background())

	attempted := deliverer.attemptedIDs()
	require.Len(t, attempted, 2)
	require.ElementsMatch(t, []uuid.UUID{neverAttempted.ID, dueRetry.ID}, attempted)
}

func TestRetrySweepSkipsExpiredRecords(t *testing.T) {
	store := dbtest.NewFakeStore()
	deliverer := &recordingDeliverer{}
	s := newTestScheduler(t, store, deliverer, 2)

	expiresAt := time.Now().Add(-time.Minute)
	expired := seedDue(store, db.NotificationStatusPending, 0, nil)
	expired.ExpiresAt = &expiresAt
	store.Seed(expired)

	s.runRetrySweep(context.Background())
	require.Empty(t, deliverer.attemptedIDs())
}

func TestRetrySweepIsolatesAttemptErrors(t *testing.T) {
	store := dbtest.NewFakeStore()

	first := seedDue(store, db.NotificationStatusPending, 0, nil)
	second := seedDue(store, db.NotificationStatusPending, 0, nil)
	third := seedDue(store, db.NotificationStatusPending, 0, nil)

	deliverer := &recordingDeliverer{
		failOn: map[uuid.UUID]error{second.ID: errors.New("store unavailable")},
	}
	s := newTestScheduler(t, store, deliverer, 1)

	s.runRetrySweep(context.Background())

	require.ElementsMatch(t,
		[]uuid.UUID{first.ID, second.ID, third.ID},
		deliverer.attemptedIDs(),
	)
}

func TestRetrySweepBoundsConcurrency(t *testing.T) {
	store := dbtest.NewFakeStore()
	for i := 0; i < 12; i++ {
		seedDue(store, db.NotificationStatusPending, 0, nil)
	}

	deliverer := &recordingDeliverer{delay: 10 * time.Millisecond}
	s := newTestScheduler(t, store, deliverer, 3)

	s.runRetrySweep(context.Background())

	require.Len(t, deliverer.attemptedIDs(), 12)
	require.LessOrEqual(t, deliverer.peak, 3)
}

func TestRetrySweepHonorsBatchLimit(t *testing.T) {
	store := dbtest.NewFakeStore()
	for i := 0; i < 10; i++ {
		seedDue(store, db.NotificationStatusPending, 0, nil)
	}

	deliverer := &recordingDeliverer{}
	s, err := New(store, deliverer, Config{
		RetrySweepInterval: time.Minute,
		RetryBatchSize:     4,
		DeliveryWorkers:    2,
		RetentionInterval:  time.Hour,
		ReadRetentionDays:  30,
	})
	require.NoError(t, err)

	s.runRetrySweep(context.Background())
	require.Len(t, deliverer.attemptedIDs(), 4)
}

func TestRetentionSweep(t *testing.T) {
	store := dbtest.NewFakeStore()
	deliverer := &recordingDeliverer{}
	s := newTestScheduler(t, store, deliverer, 2)

	// Read long ago: purged by the age-based sweep.
	oldReadAt := time.Now().AddDate(0, 0, -45)
	oldRead := store.Seed(db.Notification{
		UserID: "user-1",
		Status: db.NotificationStatusRead,
		ReadAt: &oldReadAt,
	})

	// Read recently: retained.
	recentReadAt := time.Now().AddDate(0, 0, -2)
	recentRead := store.Seed(db.Notification{
		UserID: "user-1",
		Status: db.NotificationStatusRead,
		ReadAt: &recentReadAt,
	})

	// Expired and never consumed: purged.
	expiresAt := time.Now().Add(-time.Hour)
	expiredPending := store.Seed(db.Notification{
		UserID:     "user-1",
		Status:     db.NotificationStatusPending,
		MaxRetries: 3,
		ExpiresAt:  &expiresAt,
	})

	// Expired but delivered: kept for the age-based sweep instead.
	expiredDelivered := store.Seed(db.Notification{
		UserID:    "user-1",
		Status:    db.NotificationStatusDelivered,
		ExpiresAt: &expiresAt,
	})

	s.runRetentionSweep(context.Background())

	ctx := context.Background()
	_, err := store.GetNotification(ctx, oldRead.ID)
	require.ErrorIs(t, err, db.ErrRecordNotFound)

	_, err = store.GetNotification(ctx, expiredPending.ID)
	require.ErrorIs(t, err, db.ErrRecordNotFound)

	_, err = store.GetNotification(ctx, recentRead.ID)
	require.NoError(t, err)

	_, err = store.GetNotification(ctx, expiredDelivered.ID)
	require.NoError(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	store := dbtest.NewFakeStore()
	s := newTestScheduler(t, store, &recordingDeliverer{}, 2)

	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}
