package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultMessage     = "Congratulations! You have a mutual crush match! 💘"
	defaultSubject     = "It's a match!"
)

// Notification results for metrics.
const (
	resultSent    = "sent"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

type notificationRecorder interface {
	IncNotification(result string)
}

type DispatcherParams struct {
	Sender  Sender
	Logger  *logger.Logger
	Metrics notificationRecorder
	Subject string
	Message string
	Timeout time.Duration
	// Async detaches NotifyMatch from the caller; Wait drains in-flight sends.
	Async bool
}

// Dispatcher sends one e-mail per party of a committed match. Send failures
// are logged and counted, never returned to the submission path.
type Dispatcher struct {
	sender  Sender
	logg    *logger.Logger
	metrics notificationRecorder
	subject string
	message string
	timeout time.Duration
	async   bool
	wg      sync.WaitGroup
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Sender == nil {
		return nil, errors.New("notification sender required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	d := &Dispatcher{
		sender:  params.Sender,
		logg:    params.Logger,
		metrics: params.Metrics,
		subject: params.Subject,
		message: params.Message,
		timeout: params.Timeout,
		async:   params.Async,
	}
	if d.subject == "" {
		d.subject = defaultSubject
	}
	if d.message == "" {
		d.message = defaultMessage
	}
	if d.timeout <= 0 {
		d.timeout = defaultSendTimeout
	}
	return d, nil
}

// Notify tells the owner of contact that they matched with matchName.
func (d *Dispatcher) Notify(ctx context.Context, contact, recipientName, matchName string) error {
	if !identity.ValidateContact(contact) {
		d.count(resultSkipped)
		return errors.New("recipient contact is not deliverable")
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.sender.Send(sendCtx, Message{
		ToEmail:   contact,
		ToName:    recipientName,
		MatchName: matchName,
		Subject:   d.subject,
		Body:      d.message,
	})
	if err != nil {
		d.count(resultFailed)
		return err
	}
	d.count(resultSent)
	return nil
}

// NotifyMatch notifies both parties of pair. It never fails the caller.
func (d *Dispatcher) NotifyMatch(ctx context.Context, pair crushes.MatchedPair) {
	if !d.async {
		d.notifyParties(ctx, pair)
		return
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.notifyParties(detached, pair)
	}()
}

// Wait blocks until every asynchronous NotifyMatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) notifyParties(ctx context.Context, pair crushes.MatchedPair) {
	parties := pair.Parties()
	for i, recipient := range parties {
		other := parties[1-i]
		logCtx := d.logg.WithFields(d.logg.WithCrushID(ctx, recipient.ID.String()), map[string]any{
			"contact_fingerprint": identity.Fingerprint(recipient.RequesterContact),
		})
		if err := d.Notify(ctx, recipient.RequesterContact, recipient.RequesterDisplayName, other.RequesterDisplayName); err != nil {
			d.logg.Error(logCtx, "match notification failed", err)
			continue
		}
		d.logg.Info(logCtx, "match notification sent")
	}
}

func (d *Dispatcher) count(result string) {
	if d.metrics != nil {
		d.metrics.IncNotification(result)
	}
}
