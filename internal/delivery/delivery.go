package delivery

import (
	"context"
	"errors"
	"fmt"

	db "github.com/fundlane/notify-BE/internal/db"
)

// Transport hands one notification to an outbound channel provider.
// Ordinary delivery failures are returned as *Error values, never panics.
type Transport interface {
	Send(ctx context.Context, n db.Notification) error
}

// Error is a failed delivery attempt. Retryable failures (provider outages,
// network errors, timeouts) consume a retry slot and go back through the
// scheduler; permanent ones (unroutable recipient) settle the record at once.
type Error struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}

	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func retryableError(reason string, err error) *Error {
	return &Error{Reason: reason, Retryable: true, Err: err}
}

func permanentError(reason string) *Error {
	return &Error{Reason: reason, Retryable: false}
}

// IsPermanent reports whether a delivery error should skip further retries.
// Unclassified errors are treated as retryable.
func IsPermanent(err error) bool {
	var deliveryErr *Error
	if errors.As(err, &deliveryErr) {
		return !deliveryErr.Retryable
	}

	return false
}

// Registry maps each channel to its transport.
type Registry struct {
	transports map[db.NotificationChannel]Transport
}

func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[db.NotificationChannel]Transport),
	}
}

func (r *Registry) Register(channel db.NotificationChannel, transport Transport) {
	r.transports[channel] = transport
}

func (r *Registry) Transport(channel db.NotificationChannel) (Transport, error) {
	transport, ok := r.transports[channel]
	if !ok {
		return nil, fmt.Errorf("no transport registered for channel %q", channel)
	}

	return transport, nil
}
