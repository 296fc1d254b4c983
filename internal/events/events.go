// Package events publishes discovery lifecycle events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
)

// StreamName is the Redis stream discovery events are appended to.
const StreamName = "entity-discovery-events"

// maxStreamLen bounds the stream with approximate trimming.
const maxStreamLen = 10000

// EventType names a discovery event.
type EventType string

const (
	DiscoveryCompleted EventType = "DISCOVERY_COMPLETED"
	PopulateProgress   EventType = "POPULATE_PROGRESS"
	PopulateCompleted  EventType = "POPULATE_COMPLETED"
	CrawlProgress      EventType = "CRAWL_PROGRESS"
	CrawlCompleted     EventType = "CRAWL_COMPLETED"
)

// Event is the envelope of every discovery event.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	SiteID    string    `json:"site_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ProgressPayload is carried by *_PROGRESS events.
type ProgressPayload struct {
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
}

// Publisher appends events to StreamName. A nil Publisher is a no-op.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher returns nil when client is nil.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, log: log}
}

// Publish appends an event, filling in its id and timestamp.
func (p *Publisher) Publish(ctx context.Context, eventType EventType, siteID string, payload any) error {
	if p == nil || p.client == nil {
		return nil
	}

	event := Event{
		EventID:   uuid.New(),
		EventType: eventType,
		SiteID:    siteID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{"event": string(body)},
	})
	if publishErr := result.Err(); publishErr != nil {
		p.log.Warn("Failed to publish discovery event",
			logger.String("event_type", string(eventType)),
			logger.SiteID(siteID),
			logger.Error(publishErr),
		)
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	p.log.Debug("Published discovery event",
		logger.String("event_type", string(eventType)),
		logger.SiteID(siteID),
		logger.String("stream_id", result.Val()),
	)
	return nil
}
