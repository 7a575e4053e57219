// pkg/pubsub/client.go
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired  = errors.New("gcp project id is required")
	errMatchTopicRequired = errors.New("pubsub match topic is required")
)

// NewClient creates a Pub/Sub v2 client and verifies the match topic and the
// notification subscription exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.MatchTopic) == "" {
		return nil, errMatchTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}

	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"match_topic":               cfg.MatchTopic,
			"notification_subscription": cfg.NotificationSubscription,
		}), "pubsub client initialized")
	}

	return c, nil
}

func (c *Client) ensureTopicExists(ctx context.Context, name string) error {
	fullName := resourceName(c.projectID, "topics", name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", name)
		}
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
	return nil
}

func (c *Client) ensureSubscriptionExists(ctx context.Context, name string) error {
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: fullName},
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription %q does not exist", name)
		}
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	return nil
}

// Subscription returns a subscriber for the given subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// NotificationSubscription returns the subscriber the notification worker drains.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher handle for the given topic ID/resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "topics", name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping verifies the configured topic and subscription are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	if err := c.ensureTopicExists(ctx, c.cfg.MatchTopic); err != nil {
		return err
	}
	if sub := strings.TrimSpace(c.cfg.NotificationSubscription); sub != "" {
		return c.ensureSubscriptionExists(ctx, sub)
	}
	return nil
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short ID into projects/<project>/<kind>/<id>. Names
// that are already fully qualified pass through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
