package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"metargb/media-service/internal/models"
)

// ChannelAttachmentImported carries AttachmentImportedEvent payloads
const ChannelAttachmentImported = "attachment-imported"

// Publisher broadcasts media events to other services
type Publisher interface {
	PublishAttachmentImported(ctx context.Context, event models.AttachmentImportedEvent) error
	Close() error
}

type redisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, redisURL string) (Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// maint notifications are not supported by Redis 7 and log a warning on connect
	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisPublisher{client: client}, nil
}

// PublishAttachmentImported publishes an import event to the attachment-imported channel
func (p *redisPublisher) PublishAttachmentImported(ctx context.Context, event models.AttachmentImportedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, ChannelAttachmentImported, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	return nil
}

// Close closes the Redis connection
func (p *redisPublisher) Close() error {
	return p.client.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishAttachmentImported(context.Context, models.AttachmentImportedEvent) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
