package notifications

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
)

// SendgridConfig holds the API key and sender identity.
type SendgridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendgridSender delivers match e-mails through the SendGrid v3 mail API.
type SendgridSender struct {
	client sendgridClient
	from   *mail.Email
}

func NewSendgridSender(cfg SendgridConfig) (*SendgridSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("sendgrid api key and from email are required")
	}
	return newSendgridSender(sendgrid.NewSendClient(cfg.APIKey), cfg), nil
}

func newSendgridSender(client sendgridClient, cfg SendgridConfig) *SendgridSender {
	return &SendgridSender{
		client: client,
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(
		s.from,
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.ToEmail),
		plainTextBody(msg),
		htmlBody(msg),
	)
	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute sendgrid request")
	}
	if resp == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid returned no response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body)), "sendgrid request failed")
	}
	return nil
}

func plainTextBody(msg Message) string {
	return fmt.Sprintf("Hi %s,\n\n%s\nYou matched with %s.\n", msg.ToName, msg.Body, msg.MatchName)
}

func htmlBody(msg Message) string {
	return fmt.Sprintf("<p>Hi %s,</p><p>%s</p><p>You matched with <strong>%s</strong>.</p>",
		html.EscapeString(msg.ToName), html.EscapeString(msg.Body), html.EscapeString(msg.MatchName))
}
