package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	wrapped := errors.New("dial tcp: connection refused")

	err := retryableError("smtp send failed", wrapped)
	require.Equal(t, "smtp send failed: dial tcp: connection refused", err.Error())
	require.ErrorIs(t, err, wrapped)

	bare := permanentError("recipient has no email address on file")
	require.Equal(t, "recipient has no email address on file", bare.Error())
}

func TestIsPermanent(t *testing.T) {
	require.True(t, IsPermanent(permanentError("unroutable recipient")))
	require.False(t, IsPermanent(retryableError("provider outage", nil)))

	// Unclassified errors stay retryable, even when wrapped.
	require.False(t, IsPermanent(errors.New("something broke")))
	require.False(t, IsPermanent(nil))

	wrapped := fmt.Errorf("attempt failed: %w", permanentError("unroutable recipient"))
	require.True(t, IsPermanent(wrapped))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	portal := NewPortalTransport()
	registry.Register(db.NotificationChannelPortal, portal)

	got, err := registry.Transport(db.NotificationChannelPortal)
	require.NoError(t, err)
	require.Equal(t, portal, got)

	_, err = registry.Transport(db.NotificationChannelSMS)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sms")
}

func TestPortalTransportSend(t *testing.T) {
	portal := NewPortalTransport()

	err := portal.Send(context.Background(), db.Notification{
		Channel: db.NotificationChannelPortal,
		Title:   "Quarterly report available",
	})
	require.NoError(t, err)
}
