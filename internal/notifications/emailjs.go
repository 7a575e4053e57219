package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
)

const (
	defaultEmailJSEndpoint   = "https://api.emailjs.com/api/v1.0/email/send"
	emailJSResponseReadLimit = 1024
)

// EmailJSConfig identifies the EmailJS service, template and account.
type EmailJSConfig struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
}

// EmailJSSender delivers match e-mails through the EmailJS REST API. The
// template receives to_name, to_name2, to_email and message.
type EmailJSSender struct {
	cfg        EmailJSConfig
	endpoint   string
	httpClient *http.Client
}

type EmailJSOption func(*EmailJSSender)

func WithEmailJSHTTPClient(client *http.Client) EmailJSOption {
	return func(s *EmailJSSender) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func WithEmailJSEndpoint(endpoint string) EmailJSOption {
	return func(s *EmailJSSender) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			s.endpoint = trimmed
		}
	}
}

func NewEmailJSSender(cfg EmailJSConfig, opts ...EmailJSOption) (*EmailJSSender, error) {
	if strings.TrimSpace(cfg.ServiceID) == "" || strings.TrimSpace(cfg.TemplateID) == "" || strings.TrimSpace(cfg.PublicKey) == "" {
		return nil, errors.New("emailjs service id, template id and public key are required")
	}
	sender := &EmailJSSender{
		cfg:        cfg,
		endpoint:   defaultEmailJSEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sender)
		}
	}
	return sender, nil
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

func (s *EmailJSSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(emailJSRequest{
		ServiceID:  s.cfg.ServiceID,
		TemplateID: s.cfg.TemplateID,
		UserID:     s.cfg.PublicKey,
		TemplateParams: map[string]string{
			"to_name":  msg.ToName,
			"to_name2": msg.MatchName,
			"to_email": msg.ToEmail,
			"message":  msg.Body,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal emailjs request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build emailjs request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute emailjs request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, emailJSResponseReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "emailjs request failed")
	}
	return nil
}
