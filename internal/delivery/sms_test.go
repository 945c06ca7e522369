package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"
)

type staticDirectory struct {
	email string
	phone string
	err   error
}

func (d *staticDirectory) EmailAddress(_ context.Context, _ string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.email, nil
}

func (d *staticDirectory) PhoneNumber(_ context.Context, _ string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.phone, nil
}

func smsNotification(phoneNumber *string) db.Notification {
	return db.Notification{
		UserID:         "investor-7",
		Channel:        db.NotificationChannelSMS,
		Title:          "Capital call issued",
		Message:        "A capital call of $25,000 is due on 2026-09-30.",
		SMSPhoneNumber: phoneNumber,
	}
}

func TestSMSGatewaySend(t *testing.T) {
	var received smsMessageRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(smsMessageResponse{MessageID: "msg-123", Status: "queued"})
	}))
	defer srv.Close()

	phone := "+14155550123"
	gateway := NewSMSGateway(resty.New(), srv.URL, "test-api-key", &staticDirectory{})

	err := gateway.Send(context.Background(), smsNotification(&phone))
	require.NoError(t, err)

	require.Equal(t, "Bearer test-api-key", gotAuth)
	require.Equal(t, phone, received.To)
	require.Equal(t, "Capital call issued: A capital call of $25,000 is due on 2026-09-30.", received.Body)
}

func TestSMSGatewayResolvesPhoneFromDirectory(t *testing.T) {
	var received smsMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gateway := NewSMSGateway(resty.New(), srv.URL, "key", &staticDirectory{phone: "+14155550199"})

	err := gateway.Send(context.Background(), smsNotification(nil))
	require.NoError(t, err)
	require.Equal(t, "+14155550199", received.To)
}

func TestSMSGatewayRejectionIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	phone := "+14155550123"
	gateway := NewSMSGateway(resty.New(), srv.URL, "key", &staticDirectory{})

	err := gateway.Send(context.Background(), smsNotification(&phone))
	require.Error(t, err)
	require.True(t, IsPermanent(err))
}

func TestSMSGatewayOutageIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	phone := "+14155550123"
	gateway := NewSMSGateway(resty.New(), srv.URL, "key", &staticDirectory{})

	err := gateway.Send(context.Background(), smsNotification(&phone))
	require.Error(t, err)
	require.False(t, IsPermanent(err))
}

func TestSMSGatewayMissingPhoneIsPermanent(t *testing.T) {
	gateway := NewSMSGateway(resty.New(), "http://unused.invalid", "key",
		&staticDirectory{err: permanentError("user investor-7 has no phone number on file")})

	err := gateway.Send(context.Background(), smsNotification(nil))
	require.Error(t, err)
	require.True(t, IsPermanent(err))
}
