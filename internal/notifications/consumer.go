package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/registry"
)

const matchNotificationConsumer = "match-notifications"

type crushLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CrushRecord, error)
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID, parts ...string) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID, parts ...string) error
}

type partyNotifier interface {
	Notify(ctx context.Context, contact, recipientName, matchName string) error
}

// Consumer turns crush_matched events into one e-mail per party. Each
// (event, party) pair is sent at most once; a failed send releases its mark
// and nacks so redelivery retries only the parties still owed a message.
type Consumer struct {
	crushes      crushLoader
	subscription *pubsub.Subscriber
	idempotency  processedGuard
	notifier     partyNotifier
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func NewConsumer(crushes crushLoader, subscription *pubsub.Subscriber, guard processedGuard, notifier partyNotifier, logg *logger.Logger) (*Consumer, error) {
	if crushes == nil {
		return nil, fmt.Errorf("crush repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		crushes:      crushes,
		subscription: subscription,
		idempotency:  guard,
		notifier:     notifier,
		decoders:     registry.NewCrushDecoders(),
		logg:         logg,
	}, nil
}

// Run receives until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventCrushMatched) {
		c.logg.Debug(logCtx, "skipping unrelated event")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	decoded, err := c.decoders.Decode(enums.EventCrushMatched, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "malformed crush_matched payload", err)
		return true
	}
	event := decoded.(payloads.CrushMatchedEvent)
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	ack := true
	for _, party := range event.Parties {
		if err := c.notifyParty(ctx, eventID, event, party); err != nil {
			c.logg.Error(c.logg.WithCrushID(logCtx, party.CrushID.String()), "match notification failed", err)
			ack = false
		}
	}
	return ack
}

func (c *Consumer) notifyParty(ctx context.Context, eventID uuid.UUID, event payloads.CrushMatchedEvent, party payloads.MatchParty) error {
	counterpart, ok := event.Counterpart(party.CrushID)
	if !ok {
		return fmt.Errorf("counterpart missing for %s", party.CrushID)
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, matchNotificationConsumer, eventID, party.CrushID.String())
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		return nil
	}

	release := func(cause error) error {
		if err := c.idempotency.Delete(ctx, matchNotificationConsumer, eventID, party.CrushID.String()); err != nil {
			return fmt.Errorf("%w (release mark: %v)", cause, err)
		}
		return cause
	}

	record, err := c.crushes.FindByID(ctx, party.CrushID)
	if err != nil {
		return release(fmt.Errorf("load crush: %w", err))
	}
	if record == nil || record.Status != enums.CrushStatusMatched {
		// nothing to deliver; keep the mark so redelivery does not retry
		c.logg.Warn(c.logg.WithCrushID(ctx, party.CrushID.String()), "matched crush not found for notification")
		return nil
	}

	if err := c.notifier.Notify(ctx, record.RequesterContact, record.RequesterDisplayName, counterpart.DisplayName); err != nil {
		return release(err)
	}
	return nil
}
