// Package dbtest provides an in-memory Store for tests, mirroring the
// transition guards and selection predicates of the SQL implementation.
package dbtest

import (
	"context"
	"sort"
	"sync"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/google/uuid"
)

type FakeStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]db.Notification

	// CreateErr makes inserts fail, including every element of a batch.
	CreateErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		rows: make(map[uuid.UUID]db.Notification),
	}
}

var _ db.Store = (*FakeStore)(nil)

func (s *FakeStore) Ping(_ context.Context) error {
	return nil
}

// Seed inserts a row as-is, bypassing dispatch defaults.
func (s *FakeStore) Seed(n db.Notification) db.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	s.rows[n.ID] = n

	return n
}

// Len reports the number of stored rows.
func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

func (s *FakeStore) insert(arg db.CreateNotificationParams) db.Notification {
	now := time.Now()
	n := db.Notification{
		ID:                uuid.New(),
		UserID:            arg.UserID,
		Type:              arg.Type,
		Channel:           arg.Channel,
		Priority:          arg.Priority,
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
		Status:            db.NotificationStatusPending,
		RetryCount:        0,
		MaxRetries:        arg.MaxRetries,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         arg.ExpiresAt,
	}
	s.rows[n.ID] = n

	return n
}

func (s *FakeStore) CreateNotification(_ context.Context, arg db.CreateNotificationParams) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return db.Notification{}, s.CreateErr
	}

	return s.insert(arg), nil
}

func (s *FakeStore) CreateNotificationsBatchTx(_ context.Context, args []db.CreateNotificationParams) ([]db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return nil, s.CreateErr
	}

	created := make([]db.Notification, 0, len(args))
	for _, arg := range args {
		created = append(created, s.insert(arg))
	}

	return created, nil
}

func (s *FakeStore) GetNotification(_ context.Context, id uuid.UUID) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return db.Notification{}, db.ErrRecordNotFound
	}

	return n, nil
}

func unreadPredicate(n db.Notification, userID string, now time.Time) bool {
	return n.UserID == userID &&
		n.ReadAt == nil &&
		n.Status != db.NotificationStatusCancelled &&
		(n.ExpiresAt == nil || n.ExpiresAt.After(now))
}

func (s *FakeStore) ListNotifications(_ context.Context, arg db.ListNotificationsParams) ([]db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	matched := []db.Notification{}
	for _, n := range s.rows {
		if n.UserID != arg.UserID {
			continue
		}
		if arg.Status != nil && n.Status != *arg.Status {
			continue
		}
		if arg.Channel != nil && n.Channel != *arg.Channel {
			continue
		}
		if arg.Type != nil && n.Type != *arg.Type {
			continue
		}
		if arg.UnreadOnly && n.ReadAt != nil {
			continue
		}
		if !arg.IncludeExpired && n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			continue
		}

		matched = append(matched, n)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, arg.Limit, arg.Offset), nil
}

func (s *FakeStore) ListUnreadNotifications(_ context.Context, arg db.ListUnreadNotificationsParams) ([]db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	matched := []db.Notification{}
	for _, n := range s.rows {
		if unreadPredicate(n, arg.UserID, now) {
			matched = append(matched, n)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, arg.Limit, arg.Offset), nil
}

func (s *FakeStore) CountUnreadNotifications(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var count int64
	for _, n := range s.rows {
		if unreadPredicate(n, userID, now) {
			count++
		}
	}

	return count, nil
}

func (s *FakeStore) ListDueNotifications(_ context.Context, arg db.ListDueNotificationsParams) ([]db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []db.Notification{}
	for _, n := range s.rows {
		if !db.IsAttemptEligible(n) {
			continue
		}
		if n.NextRetryAt != nil && n.NextRetryAt.After(arg.Now) {
			continue
		}
		if n.ExpiresAt != nil && !n.ExpiresAt.After(arg.Now) {
			continue
		}

		matched = append(matched, n)
	}

	// next_retry_at ascending, NULLS FIRST
	sort.Slice(matched, func(i, j int) bool {
		left, right := matched[i].NextRetryAt, matched[j].NextRetryAt
		switch {
		case left == nil && right == nil:
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		case left == nil:
			return true
		case right == nil:
			return false
		default:
			return left.Before(*right)
		}
	})

	return paginate(matched, arg.Limit, 0), nil
}

func (s *FakeStore) MarkNotificationSent(_ context.Context, id uuid.UUID) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok || !db.IsAttemptEligible(n) {
		return db.Notification{}, db.ErrRecordNotFound
	}

	now := time.Now()
	n.Status = db.NotificationStatusSent
	n.SentAt = &now
	n.NextRetryAt = nil
	n.ErrorMessage = nil
	n.UpdatedAt = now
	s.rows[id] = n

	return n, nil
}

func (s *FakeStore) MarkNotificationDelivered(_ context.Context, id uuid.UUID) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok || n.Status != db.NotificationStatusSent {
		return db.Notification{}, db.ErrRecordNotFound
	}

	now := time.Now()
	n.Status = db.NotificationStatusDelivered
	n.DeliveredAt = &now
	n.UpdatedAt = now
	s.rows[id] = n

	return n, nil
}

func readable(n db.Notification) bool {
	if n.Status == db.NotificationStatusCancelled || n.Status == db.NotificationStatusRead {
		return false
	}
	if n.Status == db.NotificationStatusFailed && n.RetryCount >= n.MaxRetries {
		return false
	}

	return true
}

func (s *FakeStore) MarkNotificationRead(_ context.Context, arg db.MarkNotificationReadParams) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[arg.ID]
	if !ok || n.UserID != arg.UserID || !readable(n) {
		return db.Notification{}, db.ErrRecordNotFound
	}

	now := time.Now()
	n.Status = db.NotificationStatusRead
	n.ReadAt = &now
	n.UpdatedAt = now
	s.rows[arg.ID] = n

	return n, nil
}

func (s *FakeStore) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var affected int64
	for id, n := range s.rows {
		if n.UserID != userID || n.ReadAt != nil || !readable(n) {
			continue
		}
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			continue
		}

		n.Status = db.NotificationStatusRead
		n.ReadAt = &now
		n.UpdatedAt = now
		s.rows[id] = n
		affected++
	}

	return affected, nil
}

func (s *FakeStore) ScheduleNotificationRetry(_ context.Context, arg db.ScheduleNotificationRetryParams) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[arg.ID]
	if !ok || n.Status == db.NotificationStatusCancelled || n.Status == db.NotificationStatusRead ||
		n.RetryCount >= n.MaxRetries {
		return db.Notification{}, db.ErrRecordNotFound
	}

	n.Status = db.NotificationStatusPending
	n.RetryCount++
	n.ErrorMessage = &arg.ErrorMessage
	nextRetryAt := arg.NextRetryAt
	n.NextRetryAt = &nextRetryAt
	n.UpdatedAt = time.Now()
	s.rows[arg.ID] = n

	return n, nil
}

func (s *FakeStore) SettleNotificationFailed(_ context.Context, arg db.SettleNotificationFailedParams) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[arg.ID]
	if !ok || n.Status == db.NotificationStatusCancelled || n.Status == db.NotificationStatusRead {
		return db.Notification{}, db.ErrRecordNotFound
	}

	now := time.Now()
	n.Status = db.NotificationStatusFailed
	if n.RetryCount < n.MaxRetries {
		n.RetryCount++
	}
	n.ErrorMessage = &arg.ErrorMessage
	n.FailedAt = &now
	n.NextRetryAt = nil
	n.UpdatedAt = now
	s.rows[arg.ID] = n

	return n, nil
}

func (s *FakeStore) CancelNotification(_ context.Context, id uuid.UUID) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok || !readable(n) {
		return db.Notification{}, db.ErrRecordNotFound
	}

	n.Status = db.NotificationStatusCancelled
	n.NextRetryAt = nil
	n.UpdatedAt = time.Now()
	s.rows[id] = n

	return n, nil
}

func (s *FakeStore) DeleteNotification(_ context.Context, arg db.DeleteNotificationParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[arg.ID]
	if !ok || n.UserID != arg.UserID {
		return db.ErrRecordNotFound
	}

	delete(s.rows, arg.ID)
	return nil
}

func (s *FakeStore) DeleteReadNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, n := range s.rows {
		if n.Status == db.NotificationStatusRead && n.ReadAt != nil && n.ReadAt.Before(cutoff) {
			delete(s.rows, id)
			deleted++
		}
	}

	return deleted, nil
}

func (s *FakeStore) DeleteExpiredNotifications(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, n := range s.rows {
		if n.ExpiresAt == nil || !n.ExpiresAt.Before(now) {
			continue
		}
		if n.Status == db.NotificationStatusRead || n.Status == db.NotificationStatusDelivered {
			continue
		}

		delete(s.rows, id)
		deleted++
	}

	return deleted, nil
}

func paginate(rows []db.Notification, limit, offset int32) []db.Notification {
	if offset > 0 {
		if int(offset) >= len(rows) {
			return []db.Notification{}
		}
		rows = rows[offset:]
	}

	if limit > 0 && int(limit) < len(rows) {
		rows = rows[:limit]
	}

	return rows
}
