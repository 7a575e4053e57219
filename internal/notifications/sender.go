package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

// Message carries the template parameters of one match e-mail.
type Message struct {
	ToEmail   string
	ToName    string
	MatchName string
	Subject   string
	Body      string
}

// Sender is the external delivery channel. It is assumed at-least-once and
// unreliable; callers never let its failure escape the notification path.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the channel selected by cfg.Provider. Credentials and
// template identifiers come from cfg only.
func NewSender(cfg config.NotifierConfig, logg *logger.Logger, httpClient *http.Client) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.NotifierProviderLog, "":
		return NewLogSender(logg), nil
	case config.NotifierProviderSendgrid:
		return NewSendgridSender(SendgridConfig{
			APIKey:    cfg.SendgridAPIKey,
			FromEmail: cfg.SendgridFromEmail,
			FromName:  cfg.SendgridFromName,
		})
	case config.NotifierProviderEmailJS:
		opts := []EmailJSOption{WithEmailJSEndpoint(cfg.EmailJSEndpoint)}
		if httpClient != nil {
			opts = append(opts, WithEmailJSHTTPClient(httpClient))
		}
		return NewEmailJSSender(EmailJSConfig{
			ServiceID:  cfg.EmailJSServiceID,
			TemplateID: cfg.EmailJSTemplateID,
			PublicKey:  cfg.EmailJSPublicKey,
		}, opts...)
	}
	return nil, fmt.Errorf("unsupported notifier provider %q", cfg.Provider)
}

// LogSender writes match notifications to the log instead of delivering
// them. Only the contact fingerprint is logged.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"contact_fingerprint": identity.Fingerprint(msg.ToEmail),
		"subject":             msg.Subject,
	}), "match notification (log channel)")
	return nil
}
