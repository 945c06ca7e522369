package delivery

import (
	"context"
	"fmt"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/rs/zerolog/log"
	"resty.dev/v3"
)

type smsMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type smsMessageResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// SMSGateway delivers sms notifications through the platform's SMS provider API.
type SMSGateway struct {
	client    *resty.Client
	baseURL   string
	apiKey    string
	directory RecipientDirectory
}

func NewSMSGateway(client *resty.Client, baseURL, apiKey string, directory RecipientDirectory) *SMSGateway {
	return &SMSGateway{
		client:    client,
		baseURL:   baseURL,
		apiKey:    apiKey,
		directory: directory,
	}
}

func (g *SMSGateway) Send(ctx context.Context, n db.Notification) error {
	phoneNumber, err := g.recipientPhoneNumber(ctx, n)
	if err != nil {
		return err
	}

	body := n.Message
	if n.Title != "" {
		body = fmt.Sprintf("%s: %s", n.Title, n.Message)
	}

	var result smsMessageResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+g.apiKey).
		SetBody(smsMessageRequest{To: phoneNumber, Body: body}).
		SetResult(&result).
		Post(g.baseURL + "/v1/messages")
	if err != nil {
		return retryableError("failed to reach sms gateway", err)
	}

	if resp.IsError() {
		// 4xx means the gateway rejected the message itself; retrying the
		// same payload will not change the outcome.
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return permanentError(fmt.Sprintf("sms gateway rejected message: %s", resp.Status()))
		}

		return retryableError(fmt.Sprintf("sms gateway returned %s", resp.Status()), nil)
	}

	log.Debug().
		Str("notification_id", n.ID.String()).
		Str("provider_message_id", result.MessageID).
		Msg("sms accepted by gateway")

	return nil
}

func (g *SMSGateway) recipientPhoneNumber(ctx context.Context, n db.Notification) (string, error) {
	if n.SMSPhoneNumber != nil && *n.SMSPhoneNumber != "" {
		return *n.SMSPhoneNumber, nil
	}

	return g.directory.PhoneNumber(ctx, n.UserID)
}
