package pubsub

import (
	"context"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// Client wraps a Pub/Sub v2 client bound to one project and the configured
// domain and notification topics.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.CredentialsFile) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.CredentialsFile)}
	}
	return nil
}

// NewClient dials Pub/Sub and fails unless every configured resource exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gcp project id is required")
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pubsub client")
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "pubsub_resources", c.resources()), "pubsub client initialized")
	}
	return c, nil
}

// resources lists the full names of every configured topic and subscription.
func (c *Client) resources() []string {
	var out []string
	add := func(kind, name string) {
		if full := resourceName(c.projectID, kind, name); full != "" {
			out = append(out, full)
		}
	}
	add(kindTopic, c.cfg.DomainTopic)
	add(kindTopic, c.cfg.NotificationTopic)
	add(kindSubscription, c.cfg.DomainSubscription)
	return out
}

func (c *Client) lookup(ctx context.Context, full string) error {
	var err error
	if strings.Contains(full, "/"+kindSubscription+"/") {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	} else {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s does not exist", full))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup "+full)
	}
}

// Ping resolves every configured resource concurrently.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "pubsub client not initialized")
	}
	names := c.resources()
	if len(names) == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "no pubsub topics configured")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, full := range names {
		g.Go(func() error { return c.lookup(gctx, full) })
	}
	return g.Wait()
}

// Publisher returns a handle for a short topic ID or full topic name, or nil
// when the name is blank.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindTopic, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) NotificationPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.NotificationTopic)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short ID into projects/<p>/<kind>/<id>. Full names
// of the same kind pass through untouched.
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/" + kind + "/" + name
}
