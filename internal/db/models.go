package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusRead      NotificationStatus = "read"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusCancelled NotificationStatus = "cancelled"
)

type NotificationChannel string

const (
	NotificationChannelEmail  NotificationChannel = "email"
	NotificationChannelSMS    NotificationChannel = "sms"
	NotificationChannelPortal NotificationChannel = "portal"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

type NotificationType string

const (
	NotificationTypeCapitalCall         NotificationType = "capital_call"
	NotificationTypeDistribution        NotificationType = "distribution"
	NotificationTypeQuarterlyReport     NotificationType = "quarterly_report"
	NotificationTypeSubscriptionUpdate  NotificationType = "subscription_update"
	NotificationTypePaymentConfirmation NotificationType = "payment_confirmation"
	NotificationTypeSecurityAlert       NotificationType = "security_alert"
	NotificationTypeSystemUpdate        NotificationType = "system_update"
	NotificationTypeDocumentReady       NotificationType = "document_ready"
	NotificationTypeKYCRequired         NotificationType = "kyc_required"
	NotificationTypeGeneral             NotificationType = "general"
)

func IsValidNotificationStatus(status string) error {
	switch NotificationStatus(status) {
	case NotificationStatusPending, NotificationStatusSent, NotificationStatusDelivered,
		NotificationStatusRead, NotificationStatusFailed, NotificationStatusCancelled:
		return nil
	}

	return fmt.Errorf("invalid notification status %q", status)
}

func IsValidNotificationChannel(channel string) error {
	switch NotificationChannel(channel) {
	case NotificationChannelEmail, NotificationChannelSMS, NotificationChannelPortal:
		return nil
	}

	return fmt.Errorf("invalid notification channel %q", channel)
}

func IsValidNotificationPriority(priority string) error {
	switch NotificationPriority(priority) {
	case NotificationPriorityLow, NotificationPriorityNormal,
		NotificationPriorityHigh, NotificationPriorityUrgent:
		return nil
	}

	return fmt.Errorf("invalid notification priority %q", priority)
}

func IsValidNotificationType(notificationType string) error {
	switch NotificationType(notificationType) {
	case NotificationTypeCapitalCall, NotificationTypeDistribution,
		NotificationTypeQuarterlyReport, NotificationTypeSubscriptionUpdate,
		NotificationTypePaymentConfirmation, NotificationTypeSecurityAlert,
		NotificationTypeSystemUpdate, NotificationTypeDocumentReady,
		NotificationTypeKYCRequired, NotificationTypeGeneral:
		return nil
	}

	return fmt.Errorf("invalid notification type %q", notificationType)
}

type Notification struct {
	ID                uuid.UUID            `json:"id"`
	UserID            string               `json:"user_id"`
	Type              NotificationType     `json:"type"`
	Channel           NotificationChannel  `json:"channel"`
	Priority          NotificationPriority `json:"priority"`
	Title             string               `json:"title"`
	Message           string               `json:"message"`
	Metadata          json.RawMessage      `json:"metadata,omitempty"`
	ActionURL         *string              `json:"action_url,omitempty"`
	EmailSubject      *string              `json:"email_subject,omitempty"`
	EmailTemplate     *string              `json:"email_template,omitempty"`
	SMSPhoneNumber    *string              `json:"sms_phone_number,omitempty"`
	RelatedEntityType *string              `json:"related_entity_type,omitempty"`
	RelatedEntityID   *string              `json:"related_entity_id,omitempty"`
	SenderID          *string              `json:"sender_id,omitempty"`
	SenderName        *string              `json:"sender_name,omitempty"`
	Status            NotificationStatus   `json:"status"`
	ErrorMessage      *string              `json:"error_message,omitempty"`
	RetryCount        int32                `json:"retry_count"`
	MaxRetries        int32                `json:"max_retries"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	SentAt            *time.Time           `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	ReadAt            *time.Time           `json:"read_at,omitempty"`
	FailedAt          *time.Time           `json:"failed_at,omitempty"`
	ExpiresAt         *time.Time           `json:"expires_at,omitempty"`
	NextRetryAt       *time.Time           `json:"next_retry_at,omitempty"`
}

// IsRead reports whether the notification has been read by its recipient.
func IsRead(n Notification) bool {
	return n.Status == NotificationStatusRead && n.ReadAt != nil
}

// IsExpired reports whether the notification is past its expiry at the given instant.
// A notification without an expiry never expires.
func IsExpired(n Notification, now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// IsAttemptEligible reports whether a delivery attempt may run for the
// record: pending, or failed with retries remaining. Mirrors the predicate
// the due-batch query selects on, so a record that already reached sent,
// delivered or an absorbing state never goes back to the transport.
func IsAttemptEligible(n Notification) bool {
	return n.Status == NotificationStatusPending ||
		(n.Status == NotificationStatusFailed && n.RetryCount < n.MaxRetries)
}

// IsAbsorbing reports whether no further transition may leave the record.
// Cancelled and read records are settled; a failed record is absorbing only
// once its retry ceiling is exhausted.
func IsAbsorbing(n Notification) bool {
	switch n.Status {
	case NotificationStatusCancelled, NotificationStatusRead:
		return true
	case NotificationStatusFailed:
		return n.RetryCount >= n.MaxRetries
	}

	return false
}
