package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const defaultMaxRetries = 3

// CreateParams carries one notification request as received from the caller,
// enums still unparsed. Validation happens before anything touches the store.
type CreateParams struct {
	UserID            string          `json:"user_id"`
	Type              string          `json:"type"`
	Channel           string          `json:"channel"`
	Priority          string          `json:"priority"`
	Title             string          `json:"title"`
	Message           string          `json:"message"`
	Metadata          json.RawMessage `json:"metadata"`
	ActionURL         *string         `json:"action_url"`
	EmailSubject      *string         `json:"email_subject"`
	EmailTemplate     *string         `json:"email_template"`
	SMSPhoneNumber    *string         `json:"sms_phone_number"`
	RelatedEntityType *string         `json:"related_entity_type"`
	RelatedEntityID   *string         `json:"related_entity_id"`
	SenderID          *string         `json:"sender_id"`
	SenderName        *string         `json:"sender_name"`
	MaxRetries        *int32          `json:"max_retries"`
	ExpiresAt         *time.Time      `json:"expires_at"`
}

func (arg *CreateParams) validate() (db.CreateNotificationParams, error) {
	var persisted db.CreateNotificationParams

	if arg.UserID == "" {
		return persisted, invalidField("user_id", "is required")
	}
	if arg.Title == "" {
		return persisted, invalidField("title", "is required")
	}
	if arg.Message == "" {
		return persisted, invalidField("message", "is required")
	}

	if err := db.IsValidNotificationType(arg.Type); err != nil {
		return persisted, invalidField("type", err.Error())
	}
	if err := db.IsValidNotificationChannel(arg.Channel); err != nil {
		return persisted, invalidField("channel", err.Error())
	}

	priority := arg.Priority
	if priority == "" {
		priority = string(db.NotificationPriorityNormal)
	}
	if err := db.IsValidNotificationPriority(priority); err != nil {
		return persisted, invalidField("priority", err.Error())
	}

	maxRetries := int32(defaultMaxRetries)
	if arg.MaxRetries != nil {
		if *arg.MaxRetries < 0 {
			return persisted, invalidField("max_retries", "must not be negative")
		}
		maxRetries = *arg.MaxRetries
	}

	if arg.ExpiresAt != nil && !arg.ExpiresAt.After(time.Now()) {
		return persisted, invalidField("expires_at", "must be in the future")
	}

	persisted = db.CreateNotificationParams{
		UserID:            arg.UserID,
		Type:              db.NotificationType(arg.Type),
		Channel:           db.NotificationChannel(arg.Channel),
		Priority:          db.NotificationPriority(priority),
		Title:             arg.Title,
		Message:           arg.Message,
		Metadata:          arg.Metadata,
		ActionURL:         arg.ActionURL,
		EmailSubject:      arg.EmailSubject,
		EmailTemplate:     arg.EmailTemplate,
		SMSPhoneNumber:    arg.SMSPhoneNumber,
		RelatedEntityType: arg.RelatedEntityType,
		RelatedEntityID:   arg.RelatedEntityID,
		SenderID:          arg.SenderID,
		SenderName:        arg.SenderName,
		MaxRetries:        maxRetries,
		ExpiresAt:         arg.ExpiresAt,
	}

	return persisted, nil
}

// Dispatcher validates and persists new notification requests and is the only
// writer of the initial pending state.
type Dispatcher struct {
	store       db.Store
	distributor worker.TaskDistributor
	cache       *UnreadCountCache
}

func NewDispatcher(store db.Store, distributor worker.TaskDistributor, cache *UnreadCountCache) *Dispatcher {
	return &Dispatcher{
		store:       store,
		distributor: distributor,
		cache:       cache,
	}
}

// Create persists a single notification in pending state and enqueues its
// first delivery attempt. A queueing failure is logged only: the retry sweep
// picks up never-attempted rows on its next cycle.
func (d *Dispatcher) Create(ctx context.Context, arg CreateParams) (db.Notification, error) {
	persisted, err := arg.validate()
	if err != nil {
		return db.Notification{}, err
	}

	n, err := d.store.CreateNotification(ctx, persisted)
	if err != nil {
		return db.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	d.cache.Invalidate(ctx, n.UserID)
	d.enqueueFirstAttempt(ctx, n)

	return n, nil
}

// CreateMany validates every element first, then persists the whole batch in
// one transaction. One invalid element rejects the entire batch with zero
// rows created.
func (d *Dispatcher) CreateMany(ctx context.Context, args []CreateParams) ([]db.Notification, error) {
	if len(args) == 0 {
		return nil, invalidField("notifications", "must not be empty")
	}

	persisted := make([]db.CreateNotificationParams, 0, len(args))
	for i, arg := range args {
		p, err := arg.validate()
		if err != nil {
			return nil, fmt.Errorf("notification at index %d: %w", i, err)
		}

		persisted = append(persisted, p)
	}

	created, err := d.store.CreateNotificationsBatchTx(ctx, persisted)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification batch: %w", err)
	}

	for _, n := range created {
		d.cache.Invalidate(ctx, n.UserID)
		d.enqueueFirstAttempt(ctx, n)
	}

	return created, nil
}

func (d *Dispatcher) enqueueFirstAttempt(ctx context.Context, n db.Notification) {
	queue := worker.QueueDefault
	if n.Priority == db.NotificationPriorityHigh || n.Priority == db.NotificationPriorityUrgent {
		queue = worker.QueueCritical
	}

	// The task ID mirrors the record ID so an administrative cancel can drop
	// the queued attempt again.
	err := d.distributor.DistributeTaskDeliverNotification(ctx, &worker.PayloadDeliverNotification{
		NotificationID: n.ID,
	}, asynq.Queue(queue), asynq.TaskID(n.ID.String()))
	if err != nil {
		log.Error().Err(err).
			Str("notification_id", n.ID.String()).
			Msg("failed to enqueue first delivery attempt, retry sweep will pick it up")
	}
}
