package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsValidNotificationChannel(t *testing.T) {
	require.NoError(t, IsValidNotificationChannel("email"))
	require.NoError(t, IsValidNotificationChannel("sms"))
	require.NoError(t, IsValidNotificationChannel("portal"))

	require.Error(t, IsValidNotificationChannel(""))
	require.Error(t, IsValidNotificationChannel("push"))
	require.Error(t, IsValidNotificationChannel("EMAIL"))
}

func TestIsValidNotificationStatus(t *testing.T) {
	for _, status := range []string{"pending", "sent", "delivered", "read", "failed", "cancelled"} {
		require.NoError(t, IsValidNotificationStatus(status))
	}

	require.Error(t, IsValidNotificationStatus("canceled"))
	require.Error(t, IsValidNotificationStatus(""))
}

func TestIsValidNotificationType(t *testing.T) {
	require.NoError(t, IsValidNotificationType("capital_call"))
	require.NoError(t, IsValidNotificationType("kyc_required"))
	require.NoError(t, IsValidNotificationType("general"))

	require.Error(t, IsValidNotificationType("capital-call"))
	require.Error(t, IsValidNotificationType(""))
}

func TestIsValidNotificationPriority(t *testing.T) {
	for _, priority := range []string{"low", "normal", "high", "urgent"} {
		require.NoError(t, IsValidNotificationPriority(priority))
	}

	require.Error(t, IsValidNotificationPriority("critical"))
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.False(t, IsExpired(Notification{}, now))
	require.False(t, IsExpired(Notification{ExpiresAt: &future}, now))
	require.True(t, IsExpired(Notification{ExpiresAt: &past}, now))
}

func TestIsAbsorbing(t *testing.T) {
	require.True(t, IsAbsorbing(Notification{Status: NotificationStatusCancelled}))
	require.True(t, IsAbsorbing(Notification{Status: NotificationStatusRead}))

	// Failed is absorbing only once the retry ceiling is exhausted.
	require.False(t, IsAbsorbing(Notification{Status: NotificationStatusFailed, RetryCount: 1, MaxRetries: 3}))
	require.True(t, IsAbsorbing(Notification{Status: NotificationStatusFailed, RetryCount: 3, MaxRetries: 3}))

	require.False(t, IsAbsorbing(Notification{Status: NotificationStatusPending}))
	require.False(t, IsAbsorbing(Notification{Status: NotificationStatusSent}))
	require.False(t, IsAbsorbing(Notification{Status: NotificationStatusDelivered}))
}

func TestIsAttemptEligible(t *testing.T) {
	require.True(t, IsAttemptEligible(Notification{Status: NotificationStatusPending}))
	require.True(t, IsAttemptEligible(Notification{Status: NotificationStatusFailed, RetryCount: 1, MaxRetries: 3}))

	require.False(t, IsAttemptEligible(Notification{Status: NotificationStatusFailed, RetryCount: 3, MaxRetries: 3}))
	require.False(t, IsAttemptEligible(Notification{Status: NotificationStatusSent}))
	require.False(t, IsAttemptEligible(Notification{Status: NotificationStatusDelivered}))
	require.False(t, IsAttemptEligible(Notification{Status: NotificationStatusRead}))
	require.False(t, IsAttemptEligible(Notification{Status: NotificationStatusCancelled}))
}

func TestIsRead(t *testing.T) {
	readAt := time.Now()

	require.True(t, IsRead(Notification{Status: NotificationStatusRead, ReadAt: &readAt}))
	require.False(t, IsRead(Notification{Status: NotificationStatusSent}))
	require.False(t, IsRead(Notification{Status: NotificationStatusRead}))
}
