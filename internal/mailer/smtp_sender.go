package mailer

import (
	"context"
	"fmt"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/delivery"
	"github.com/wneessen/go-mail"
)

const (
	senderEmailName = "Fundlane"
)

// SMTPSender delivers email notifications over SMTP. It implements
// delivery.Transport.
type SMTPSender struct {
	client      *mail.Client
	fromAddress string
	directory   delivery.RecipientDirectory
}

func NewSMTPSender(host string, port int, username, password, fromAddress string, directory delivery.RecipientDirectory) (*SMTPSender, error) {
	client, err := mail.NewClient(host, mail.WithPort(port), mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username), mail.WithPassword(password))
	if err != nil {
		return nil, err
	}
	if err = client.DialWithContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	return &SMTPSender{
		client:      client,
		fromAddress: fromAddress,
		directory:   directory,
	}, nil
}

func (sender *SMTPSender) Send(ctx context.Context, n db.Notification) error {
	toAddress, err := sender.directory.EmailAddress(ctx, n.UserID)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()

	if err = msg.FromFormat(senderEmailName, sender.fromAddress); err != nil {
		return fmt.Errorf("failed to set From address: %w", err)
	}

	subject := n.Title
	if n.EmailSubject != nil && *n.EmailSubject != "" {
		subject = *n.EmailSubject
	}
	msg.Subject(subject)

	if err = msg.To(toAddress); err != nil {
		return &delivery.Error{
			Reason:    fmt.Sprintf("invalid recipient address for user %s", n.UserID),
			Retryable: false,
			Err:       err,
		}
	}

	msg.SetBodyString(mail.TypeTextPlain, n.Message)

	if err = sender.client.DialAndSendWithContext(ctx, msg); err != nil {
		return &delivery.Error{Reason: "failed to send email", Retryable: true, Err: err}
	}

	return nil
}
