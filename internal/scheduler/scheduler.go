package scheduler

import (
	"context"
	"sync"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// NotificationDeliverer runs one channel delivery attempt for a record and
// persists the resulting transition.
type NotificationDeliverer interface {
	Attempt(ctx context.Context, n db.Notification) error
}

type Config struct {
	RetrySweepInterval time.Duration
	RetryBatchSize     int32
	DeliveryWorkers    int
	RetentionInterval  time.Duration
	ReadRetentionDays  int
}

// Scheduler drives the two background cadences: the retry sweep that feeds
// due notifications back into delivery, and the retention sweep that purges
// stale rows. Both run independently of request traffic.
type Scheduler struct {
	store     db.Store
	deliverer NotificationDeliverer
	scheduler gocron.Scheduler
	config    Config
}

func New(store db.Store, deliverer NotificationDeliverer, config Config) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		store:     store,
		deliverer: deliverer,
		scheduler: scheduler,
		config:    config,
	}, nil
}

// Start registers the sweep jobs and begins running them.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.config.RetrySweepInterval),
		gocron.NewTask(
			func() {
				s.runRetrySweep(context.Background())
			},
		),
	)
	if err != nil {
		return err
	}

	_, err = s.scheduler.NewJob(
		gocron.DurationJob(s.config.RetentionInterval),
		gocron.NewTask(
			func() {
				log.Info().
					Str("job", "retention_sweep").
					Time("start_time", time.Now()).
					Msg("starting retention sweep")

				s.runRetentionSweep(context.Background())
			},
		),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	return nil
}

// Stop finishes the in-flight batch and shuts the cadences down. Unattempted
// records stay pending/failed and are picked up by the next process.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// runRetrySweep fetches the due batch and fans it out across a fixed pool of
// delivery workers. Each record's attempt is isolated: one failure never
// aborts the rest of the batch.
func (s *Scheduler) runRetrySweep(ctx context.Context) {
	batch, err := s.store.ListDueNotifications(ctx, db.ListDueNotificationsParams{
		Now:   time.Now(),
		Limit: s.config.RetryBatchSize,
	})
	if err != nil {
		log.Error().Err(err).Msg("retry sweep failed to fetch due notifications")
		return
	}

	if len(batch) == 0 {
		return
	}

	log.Info().Int("batch_size", len(batch)).Msg("retry sweep dispatching due notifications")

	jobs := make(chan db.Notification)

	var wg sync.WaitGroup
	for i := 0; i < s.config.DeliveryWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for n := range jobs {
				if err := s.deliverer.Attempt(ctx, n); err != nil {
					log.Error().Err(err).
						Str("notification_id", n.ID.String()).
						Msg("delivery attempt failed to persist, skipping record")
				}
			}
		}()
	}

	for _, n := range batch {
		jobs <- n
	}
	close(jobs)

	wg.Wait()
}

func (s *Scheduler) runRetentionSweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.ReadRetentionDays)

	deletedRead, err := s.store.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("retention sweep failed to delete old read notifications")
	}

	deletedExpired, err := s.store.DeleteExpiredNotifications(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("retention sweep failed to delete expired notifications")
	}

	if deletedRead > 0 || deletedExpired > 0 {
		log.Info().
			Int64("deleted_read", deletedRead).
			Int64("deleted_expired", deletedExpired).
			Msg("retention sweep completed")
	}
}
