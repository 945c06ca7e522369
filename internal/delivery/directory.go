package delivery

import (
	"context"
	"fmt"

	"resty.dev/v3"
)

// RecipientDirectory resolves a recipient's contact address for a channel.
// The user store lives in the main platform backend, so resolution goes
// through its internal API.
type RecipientDirectory interface {
	EmailAddress(ctx context.Context, userID string) (string, error)
	PhoneNumber(ctx context.Context, userID string) (string, error)
}

type contactResponse struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type PlatformDirectory struct {
	client  *resty.Client
	baseURL string
}

func NewPlatformDirectory(client *resty.Client, baseURL, apiKey string) *PlatformDirectory {
	client.SetHeader("X-Internal-Api-Key", apiKey)

	return &PlatformDirectory{
		client:  client,
		baseURL: baseURL,
	}
}

func (d *PlatformDirectory) contact(ctx context.Context, userID string) (*contactResponse, error) {
	var contact contactResponse

	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&contact).
		Get(fmt.Sprintf("%s/internal/users/%s/contact", d.baseURL, userID))
	if err != nil {
		return nil, retryableError("failed to reach user directory", err)
	}

	if resp.IsError() {
		return nil, retryableError(fmt.Sprintf("user directory returned %s", resp.Status()), nil)
	}

	return &contact, nil
}

func (d *PlatformDirectory) EmailAddress(ctx context.Context, userID string) (string, error) {
	contact, err := d.contact(ctx, userID)
	if err != nil {
		return "", err
	}

	if contact.Email == "" {
		return "", permanentError(fmt.Sprintf("user %s has no email address on file", userID))
	}

	return contact.Email, nil
}

func (d *PlatformDirectory) PhoneNumber(ctx context.Context, userID string) (string, error) {
	contact, err := d.contact(ctx, userID)
	if err != nil {
		return "", err
	}

	if contact.PhoneNumber == "" {
		return "", permanentError(fmt.Sprintf("user %s has no phone number on file", userID))
	}

	return contact.PhoneNumber, nil
}
