package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const notificationColumns = `
	id, user_id, type, channel, priority, title, message, metadata,
	action_url, email_subject, email_template, sms_phone_number,
	related_entity_type, related_entity_id, sender_id, sender_name,
	status, error_message, retry_count, max_retries,
	created_at, updated_at, sent_at, delivered_at, read_at, failed_at,
	expires_at, next_retry_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Channel, &n.Priority, &n.Title, &n.Message, &n.Metadata,
		&n.ActionURL, &n.EmailSubject, &n.EmailTemplate, &n.SMSPhoneNumber,
		&n.RelatedEntityType, &n.RelatedEntityID, &n.SenderID, &n.SenderName,
		&n.Status, &n.ErrorMessage, &n.RetryCount, &n.MaxRetries,
		&n.CreatedAt, &n.UpdatedAt, &n.SentAt, &n.DeliveredAt, &n.ReadAt, &n.FailedAt,
		&n.ExpiresAt, &n.NextRetryAt,
	)

	return n, err
}

func collectNotifications(rows pgx.Rows) ([]Notification, error) {
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

type CreateNotificationParams struct {
	UserID            string               `json:"user_id"`
	Type              NotificationType     `json:"type"`
	Channel           NotificationChannel  `json:"channel"`
	Priority          NotificationPriority `json:"priority"`
	Title             string               `json:"title"`
	Message           string               `json:"message"`
	Metadata          json.RawMessage      `json:"metadata"`
	ActionURL         *string              `json:"action_url"`
	EmailSubject      *string              `json:"email_subject"`
	EmailTemplate     *string              `json:"email_template"`
	SMSPhoneNumber    *string              `json:"sms_phone_number"`
	RelatedEntityType *string              `json:"related_entity_type"`
	RelatedEntityID   *string              `json:"related_entity_id"`
	SenderID          *string              `json:"sender_id"`
	SenderName        *string              `json:"sender_name"`
	MaxRetries        int32                `json:"max_retries"`
	ExpiresAt         *time.Time           `json:"expires_at"`
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, type, channel, priority, title, message, metadata,
			action_url, email_subject, email_template, sms_phone_number,
			related_entity_type, related_entity_id, sender_id, sender_name,
			status, retry_count, max_retries, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16,
			'pending', 0, $17, $18, now(), now()
		)
		RETURNING` + notificationColumns

	row := q.db.QueryRow(ctx, query,
		uuid.New(), arg.UserID, arg.Type, arg.Channel, arg.Priority, arg.Title, arg.Message, arg.Metadata,
		arg.ActionURL, arg.EmailSubject, arg.EmailTemplate, arg.SMSPhoneNumber,
		arg.RelatedEntityType, arg.RelatedEntityID, arg.SenderID, arg.SenderName,
		arg.MaxRetries, arg.ExpiresAt,
	)

	return scanNotification(row)
}

func (q *Queries) GetNotification(ctx context.Context, id uuid.UUID) (Notification, error) {
	query := `SELECT` + notificationColumns + ` FROM notifications WHERE id = $1`

	return scanNotification(q.db.QueryRow(ctx, query, id))
}

type ListNotificationsParams struct {
	UserID         string               `json:"user_id"`
	Status         *NotificationStatus  `json:"status"`
	Channel        *NotificationChannel `json:"channel"`
	Type           *NotificationType    `json:"type"`
	UnreadOnly     bool                 `json:"unread_only"`
	IncludeExpired bool                 `json:"include_expired"`
	Limit          int32                `json:"limit"`
	Offset         int32                `json:"offset"`
}

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		AND ($2::text IS NULL OR status = $2)
		AND ($3::text IS NULL OR channel = $3)
		AND ($4::text IS NULL OR type = $4)
		AND (NOT $5::bool OR read_at IS NULL)
		AND ($6::bool OR expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT $7 OFFSET $8`

	rows, err := q.db.Query(ctx, query,
		arg.UserID, arg.Status, arg.Channel, arg.Type,
		arg.UnreadOnly, arg.IncludeExpired, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}

	return collectNotifications(rows)
}

type ListUnreadNotificationsParams struct {
	UserID string `json:"user_id"`
	Limit  int32  `json:"limit"`
	Offset int32  `json:"offset"`
}

func (q *Queries) ListUnreadNotifications(ctx context.Context, arg ListUnreadNotificationsParams) ([]Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		AND read_at IS NULL
		AND status <> 'cancelled'
		AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := q.db.Query(ctx, query, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}

	return collectNotifications(rows)
}

// CountUnreadNotifications uses the same predicate as ListUnreadNotifications,
// transferring only the count.
func (q *Queries) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1
		AND read_at IS NULL
		AND status <> 'cancelled'
		AND (expires_at IS NULL OR expires_at > now())`

	var count int64
	err := q.db.QueryRow(ctx, query, userID).Scan(&count)

	return count, err
}

type ListDueNotificationsParams struct {
	Now   time.Time `json:"now"`
	Limit int32     `json:"limit"`
}

// ListDueNotifications selects the batch eligible for a delivery attempt:
// never-attempted pending rows (next_retry_at IS NULL) and rows whose retry
// is due. Terminal failed and expired rows are never eligible.
func (q *Queries) ListDueNotifications(ctx context.Context, arg ListDueNotificationsParams) ([]Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE (status = 'pending' OR (status = 'failed' AND retry_count < max_retries))
		AND (next_retry_at IS NULL OR next_retry_at <= $1)
		AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY next_retry_at ASC NULLS FIRST
		LIMIT $2`

	rows, err := q.db.Query(ctx, query, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}

	return collectNotifications(rows)
}

func (q *Queries) MarkNotificationSent(ctx context.Context, id uuid.UUID) (Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'sent',
			sent_at = now(),
			next_retry_at = NULL,
			error_message = NULL,
			updated_at = now()
		WHERE id = $1
		AND (status = 'pending' OR (status = 'failed' AND retry_count < max_retries))
		RETURNING` + notificationColumns

	return scanNotification(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) MarkNotificationDelivered(ctx context.Context, id uuid.UUID) (Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'delivered',
			delivered_at = now(),
			updated_at = now()
		WHERE id = $1
		AND status = 'sent'
		RETURNING` + notificationColumns

	return scanNotification(q.db.QueryRow(ctx, query, id))
}

type MarkNotificationReadParams struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`
}

// MarkNotificationRead is scoped to the owning user: an ownership mismatch
// scans zero rows and surfaces as ErrRecordNotFound, indistinguishable from
// a missing record.
func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'read',
			read_at = now(),
			updated_at = now()
		WHERE id = $1
		AND user_id = $2
		AND status NOT IN ('cancelled', 'read')
		AND NOT (status = 'failed' AND retry_count >= max_retries)
		RETURNING` + notificationColumns

	return scanNotification(q.db.QueryRow(ctx, query, arg.ID, arg.UserID))
}

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE notifications
		SET status = 'read',
			read_at = now(),
			updated_at = now()
		WHERE user_id = $1
		AND read_at IS NULL
		AND status NOT IN ('cancelled', 'read')
		AND NOT (status = 'failed' AND retry_count >= max_retries)
		AND (expires_at IS NULL OR expires_at > now())`

	tag, err := q.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

type ScheduleNotificationRetryParams struct {
	ID           uuid.UUID `json:"id"`
	ErrorMessage string    `json:"error_message"`
	NextRetryAt  time.Time `json:"next_retry_at"`
}

// ScheduleNotificationRetry re-enters pending after a failed attempt with
// retries remaining. The retry_count guard keeps retry_count <= max_retries
// even when two scheduler cycles race on the same row.
func (q *Queries) ScheduleNotificationRetry(ctx context.Context, arg ScheduleNotificationRetryParams) (Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'pending',
			retry_count = retry_count + 1,
			error_message = $2,
			next_retry_at = $3,
			updated_at = now()
		WHERE id = $1
		AND status IN ('pending', 'sent', 'delivered', 'failed')
		AND retry_count < max_retries
		RETURNING` + notificationColumns

	return scanNotification(q.db.QueryRow(ctx, query, arg.ID, arg.ErrorMessage, arg.NextRetryAt))
}

type SettleNotificationFailedParams struct {
	ID           uuid.UUID `json:"id"`
	ErrorMessage string    `json:"error_message"`
}

// SettleNotificationFailed moves a record into terminal failed once the retry
// ceiling is reached. LEAST caps the counter at the ceiling.
func (q *Queries) SettleNotificationFailed(ctx context.Context, arg SettleNotificationFailedParams) (Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'failed',
			retry_count = LEAST(retry_count + 1, max_retries),
			error_message = $2,
			failed_at = now(),
			next_retry_at = NULL,
			updated_at = now()
		WHERE id = $1
		AND status NOT IN ('cancelled', 'read')
		RETURNING` + notificationColumns

	return scanNotification(q.db.QueryRow(ctx, query, arg.ID, arg.ErrorMessage))
}

func (q *Queries) CancelNotification(ctx context.Context, id uuid.UUID) (Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'cancelled',
			next_retry_at = NULL,
			updated_at = now()
		WHERE id = $1
		AND status NOT IN ('cancelled', 'read')
		AND NOT (status = 'failed' AND retry_count >= max_retries)
		RETURNING` + notificationColumns

	return scanNotification(q.db.QueryRow(ctx, query, id))
}

type DeleteNotificationParams struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`
}

func (q *Queries) DeleteNotification(ctx context.Context, arg DeleteNotificationParams) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`

	tag, err := q.db.Exec(ctx, query, arg.ID, arg.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (q *Queries) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE status = 'read' AND read_at < $1`

	tag, err := q.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// DeleteExpiredNotifications purges expired rows that were never successfully
// consumed. Read and delivered history is left to the age-based sweep.
func (q *Queries) DeleteExpiredNotifications(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE expires_at IS NOT NULL
		AND expires_at < $1
		AND status NOT IN ('read', 'delivered')`

	tag, err := q.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
