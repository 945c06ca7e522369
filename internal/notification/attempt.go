package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/delivery"
	"github.com/rs/zerolog/log"
)

// Deliverer runs one channel delivery attempt and persists the resulting
// state transition. Both the first-attempt worker and the retry scheduler
// funnel through Attempt.
type Deliverer struct {
	store          db.Store
	registry       *delivery.Registry
	attemptTimeout time.Duration
}

func NewDeliverer(store db.Store, registry *delivery.Registry, attemptTimeout time.Duration) *Deliverer {
	return &Deliverer{
		store:          store,
		registry:       registry,
		attemptTimeout: attemptTimeout,
	}
}

// Attempt hands the notification to its channel transport. Success moves the
// record to sent; failure either schedules a retry or settles it as failed.
// A record that left the attempt-eligible states or expired since it was
// fetched is skipped without touching the transport, so a stale duplicate
// task never produces a second outbound message.
func (d *Deliverer) Attempt(ctx context.Context, n db.Notification) error {
	if !db.IsAttemptEligible(n) || db.IsExpired(n, time.Now()) {
		log.Debug().
			Str("notification_id", n.ID.String()).
			Str("status", string(n.Status)).
			Msg("skipping delivery attempt for settled, delivered or expired notification")
		return nil
	}

	transport, err := d.registry.Transport(n.Channel)
	if err != nil {
		return d.markFailed(ctx, n, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	if sendErr := transport.Send(attemptCtx, n); sendErr != nil {
		return d.markFailed(ctx, n, sendErr)
	}

	if _, err = d.store.MarkNotificationSent(ctx, n.ID); err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			// The row left pending/failed while the attempt was in flight
			// (cancelled, or a racing cycle won). Last writer wins.
			log.Warn().
				Str("notification_id", n.ID.String()).
				Msg("notification transitioned during delivery attempt, sent stamp dropped")
			return nil
		}

		return fmt.Errorf("failed to mark notification %s as sent: %w", n.ID, err)
	}

	log.Info().
		Str("notification_id", n.ID.String()).
		Str("channel", string(n.Channel)).
		Str("user_id", n.UserID).
		Msg("notification sent")

	return nil
}

// markFailed evaluates retry eligibility: a permanent delivery error or an
// exhausted ceiling settles the record as failed, otherwise it re-enters
// pending with the next backoff delay.
func (d *Deliverer) markFailed(ctx context.Context, n db.Notification, sendErr error) error {
	attempt := n.RetryCount + 1

	if delivery.IsPermanent(sendErr) || attempt >= n.MaxRetries {
		_, err := d.store.SettleNotificationFailed(ctx, db.SettleNotificationFailedParams{
			ID:           n.ID,
			ErrorMessage: sendErr.Error(),
		})
		if err != nil && !errors.Is(err, db.ErrRecordNotFound) {
			return fmt.Errorf("failed to settle notification %s: %w", n.ID, err)
		}

		log.Warn().
			Str("notification_id", n.ID.String()).
			Str("channel", string(n.Channel)).
			Int32("retry_count", attempt).
			Err(sendErr).
			Msg("notification permanently failed")

		return nil
	}

	nextRetryAt := time.Now().Add(Backoff(attempt))

	_, err := d.store.ScheduleNotificationRetry(ctx, db.ScheduleNotificationRetryParams{
		ID:           n.ID,
		ErrorMessage: sendErr.Error(),
		NextRetryAt:  nextRetryAt,
	})
	if err != nil && !errors.Is(err, db.ErrRecordNotFound) {
		return fmt.Errorf("failed to schedule retry for notification %s: %w", n.ID, err)
	}

	log.Info().
		Str("notification_id", n.ID.String()).
		Int32("retry_count", attempt).
		Time("next_retry_at", nextRetryAt).
		Err(sendErr).
		Msg("delivery attempt failed, retry scheduled")

	return nil
}
