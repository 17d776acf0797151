// Package pubsub connects the outbox relay to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub ledger topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client hands out one Publisher per topic and stops them all on Close.
type Client struct {
	gcp     *pubsub.Client
	project string
	ledger  string

	mu   sync.Mutex
	pubs map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and refuses to start when the ledger topic is
// missing, so a misconfigured relay fails at boot instead of parking rows.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.LedgerTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	conn, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{gcp: conn, project: project, ledger: topic, pubs: map[string]*pubsub.Publisher{}}
	if err := c.topicExists(ctx, topic); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"gcp_project": project, "topic": topic}), "pubsub ready")
	return c, nil
}

// clientOptions prefers inline JSON credentials over a key file. With
// neither, application default credentials apply.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) topicExists(ctx context.Context, topic string) error {
	name := topicResourceName(c.project, topic)
	if name == "" {
		return fmt.Errorf("topic %q not configured", topic)
	}
	_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %s does not exist", name)
	default:
		return fmt.Errorf("looking up topic %s: %w", name, err)
	}
}

// Publisher returns the shared publisher for a topic ID or full resource
// name, or nil when the client is unusable.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	name := topicResourceName(c.project, topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pubs[name]; ok {
		return p
	}
	p := c.gcp.Publisher(name)
	c.pubs[name] = p
	return p
}

// Ping looks the ledger topic up again.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errClosed
	}
	return c.topicExists(ctx, c.ledger)
}

// Close flushes outstanding publishes before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.pubs {
		p.Stop()
		delete(c.pubs, name)
	}
	c.mu.Unlock()
	return c.gcp.Close()
}

// topicResourceName expands a bare topic ID to projects/<p>/topics/<id>.
func topicResourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
