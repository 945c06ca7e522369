package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/notification"
	"github.com/fundlane/notify-BE/internal/token"
	"github.com/fundlane/notify-BE/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

//	@Summary		Create notification
//	@Description	Create a single notification addressed to a user over one channel
//	@Tags			notifications
//	@Accept			json
//	@Produce		json
//	@Security		accessToken
//	@Param			request	body		notification.CreateParams	true	"Notification request"
//	@Success		201		{object}	db.Notification				"Created notification"
//	@Failure		400		"Invalid request parameters"
//	@Failure		500		"Internal server error"
//	@Router			/notifications [post]
func (server *Server) createNotification(c *gin.Context) {
	var req notification.CreateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	created, err := server.dispatcher.Create(c, req)
	if err != nil {
		var validationErr *notification.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{
				fieldViolation(validationErr.Field, validationErr),
			}))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, created)
}

type createNotificationsBatchRequest struct {
	Notifications []notification.CreateParams `json:"notifications"`
}

type createNotificationsBatchResponse struct {
	Notifications []db.Notification `json:"notifications"`
	CreatedCount  int               `json:"created_count"`
}

//	@Summary		Create notifications in bulk
//	@Description	Create a batch of notifications atomically: one invalid element rejects the whole batch
//	@Tags			notifications
//	@Accept			json
//	@Produce		json
//	@Security		accessToken
//	@Param			request	body		createNotificationsBatchRequest		true	"Batch of notification requests"
//	@Success		201		{object}	createNotificationsBatchResponse	"Created notifications"
//	@Failure		400		"Invalid request parameters"
//	@Failure		500		"Internal server error"
//	@Router			/notifications/batch [post]
func (server *Server) createNotificationsBatch(c *gin.Context) {
	var req createNotificationsBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	created, err := server.dispatcher.CreateMany(c, req.Notifications)
	if err != nil {
		var validationErr *notification.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, createNotificationsBatchResponse{
		Notifications: created,
		CreatedCount:  len(created),
	})
}

//	@Summary		List notifications
//	@Description	List the authenticated user's notifications, newest first
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Param			status			query	string	false	"Filter by status"
//	@Param			channel			query	string	false	"Filter by channel"
//	@Param			type			query	string	false	"Filter by type"
//	@Param			unread_only		query	bool	false	"Only unread notifications"
//	@Param			include_expired	query	bool	false	"Include expired notifications"
//	@Param			limit			query	int		false	"Page size (default 20, max 100)"
//	@Param			offset			query	int		false	"Page offset"
//	@Success		200	{array}	db.Notification	"Notifications"
//	@Failure		400	"Invalid filter value"
//	@Router			/notifications [get]
func (server *Server) listNotifications(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)
	userID := authPayload.Subject

	arg := db.ListNotificationsParams{
		UserID:         userID,
		UnreadOnly:     c.Query("unread_only") == "true",
		IncludeExpired: c.Query("include_expired") == "true",
		Limit:          parsePageSize(c.Query("limit")),
		Offset:         parseOffset(c.Query("offset")),
	}

	if status := c.Query("status"); status != "" {
		if err := db.IsValidNotificationStatus(status); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		s := db.NotificationStatus(status)
		arg.Status = &s
	}

	if channel := c.Query("channel"); channel != "" {
		if err := db.IsValidNotificationChannel(channel); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		ch := db.NotificationChannel(channel)
		arg.Channel = &ch
	}

	if notificationType := c.Query("type"); notificationType != "" {
		if err := db.IsValidNotificationType(notificationType); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		t := db.NotificationType(notificationType)
		arg.Type = &t
	}

	notifications, err := server.dbStore.ListNotifications(c, arg)
	if err != nil {
		err = fmt.Errorf("failed to list notifications for user ID %s: %w", userID, err)
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, notifications)
}

//	@Summary		Get unread notification count
//	@Description	Count the authenticated user's unread, unexpired notifications
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Success		200	{object}	map[string]int64	"Unread count"
//	@Router			/notifications/unread-count [get]
func (server *Server) getUnreadCount(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)

	count, err := server.tracker.UnreadCount(c, authPayload.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

//	@Summary		Get notification details
//	@Description	Get one of the authenticated user's notifications
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Param			id	path		string			true	"Notification ID"
//	@Success		200	{object}	db.Notification	"Notification"
//	@Failure		404	"Notification not found"
//	@Router			/notifications/:id [get]
func (server *Server) getNotification(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)

	n, ok := server.getOwnedNotification(c, authPayload.Subject)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, n)
}

//	@Summary		Mark notification as read
//	@Description	Transition one owned notification to read
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Param			id	path		string			true	"Notification ID"
//	@Success		200	{object}	db.Notification	"Updated notification"
//	@Failure		404	"Notification not found"
//	@Router			/notifications/:id/read [patch]
func (server *Server) markNotificationRead(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid notification ID: %w", err)))
		return
	}

	n, err := server.tracker.MarkRead(c, id, authPayload.Subject)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			err = fmt.Errorf("notification ID %s not found", id)
			c.JSON(http.StatusNotFound, errorResponse(err))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, n)
}

//	@Summary		Mark all notifications as read
//	@Description	Transition every unread, unexpired owned notification to read in one atomic update
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Success		200	{object}	map[string]int64	"Number of notifications updated"
//	@Router			/notifications/read-all [patch]
func (server *Server) markAllNotificationsRead(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)

	affected, err := server.tracker.MarkAllRead(c, authPayload.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated_count": affected})
}

//	@Summary		Confirm notification delivery
//	@Description	Record a channel-side delivery confirmation (sent to delivered)
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Param			id	path		string			true	"Notification ID"
//	@Success		200	{object}	db.Notification	"Updated notification"
//	@Failure		404	"Notification not found"
//	@Failure		409	"Notification is not in sent state"
//	@Router			/notifications/:id/delivered [patch]
func (server *Server) markNotificationDelivered(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)

	n, ok := server.getOwnedNotification(c, authPayload.Subject)
	if !ok {
		return
	}

	updated, err := server.dbStore.MarkNotificationDelivered(c, n.ID)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			err = fmt.Errorf("notification ID %s is not in sent state", n.ID)
			c.JSON(http.StatusConflict, errorResponse(err))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, updated)
}

//	@Summary		Cancel notification
//	@Description	Administratively cancel a notification; cancelled is terminal
//	@Tags			notifications
//	@Produce		json
//	@Security		accessToken
//	@Param			id	path		string			true	"Notification ID"
//	@Success		200	{object}	db.Notification	"Cancelled notification"
//	@Failure		404	"Notification not found"
//	@Failure		409	"Notification already settled"
//	@Router			/notifications/:id/cancel [patch]
func (server *Server) cancelNotification(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)

	n, ok := server.getOwnedNotification(c, authPayload.Subject)
	if !ok {
		return
	}

	cancelled, err := server.dbStore.CancelNotification(c, n.ID)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			err = fmt.Errorf("notification ID %s has already settled", n.ID)
			c.JSON(http.StatusConflict, errorResponse(err))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	server.tracker.InvalidateUnreadCount(c, cancelled.UserID)
	server.dropQueuedDelivery(c, cancelled)

	c.JSON(http.StatusOK, cancelled)
}

//	@Summary		Delete notification
//	@Description	Delete one owned notification
//	@Tags			notifications
//	@Security		accessToken
//	@Param			id	path	string	true	"Notification ID"
//	@Success		204	"Notification deleted"
//	@Failure		404	"Notification not found"
//	@Router			/notifications/:id [delete]
func (server *Server) deleteNotification(c *gin.Context) {
	authPayload := c.MustGet(authorizationPayloadKey).(*token.Payload)
	userID := authPayload.Subject

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid notification ID: %w", err)))
		return
	}

	err = server.dbStore.DeleteNotification(c, db.DeleteNotificationParams{
		ID:     id,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			err = fmt.Errorf("notification ID %s not found", id)
			c.JSON(http.StatusNotFound, errorResponse(err))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	server.tracker.InvalidateUnreadCount(c, userID)

	c.Status(http.StatusNoContent)
}

// dropQueuedDelivery removes the notification's queued first delivery attempt,
// if any. Best effort: a task already picked up or never enqueued is fine, the
// delivery path skips cancelled records anyway.
func (server *Server) dropQueuedDelivery(c *gin.Context, n db.Notification) {
	if server.taskInspector == nil {
		return
	}

	queue := worker.QueueDefault
	if n.Priority == db.NotificationPriorityHigh || n.Priority == db.NotificationPriorityUrgent {
		queue = worker.QueueCritical
	}

	if err := server.taskInspector.DeleteTask(c, queue, n.ID.String()); err != nil {
		log.Debug().Err(err).
			Str("notification_id", n.ID.String()).
			Msg("no queued delivery task to drop")
	}
}

// getOwnedNotification loads a notification by the :id param and verifies the
// caller owns it. Ownership mismatch reports not-found, never a hint that the
// record exists.
func (server *Server) getOwnedNotification(c *gin.Context, userID string) (db.Notification, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid notification ID: %w", err)))
		return db.Notification{}, false
	}

	n, err := server.dbStore.GetNotification(c, id)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			err = fmt.Errorf("notification ID %s not found", id)
			c.JSON(http.StatusNotFound, errorResponse(err))
			return db.Notification{}, false
		}

		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return db.Notification{}, false
	}

	if n.UserID != userID {
		err = fmt.Errorf("notification ID %s not found", id)
		c.JSON(http.StatusNotFound, errorResponse(err))
		return db.Notification{}, false
	}

	return n, true
}

func parsePageSize(raw string) int32 {
	if raw == "" {
		return defaultPageSize
	}

	size, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}

	return int32(size)
}

func parseOffset(raw string) int32 {
	if raw == "" {
		return 0
	}

	offset, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || offset < 0 {
		return 0
	}

	return int32(offset)
}
