package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeEncounterStarted EventType = "encounter.started"
	EventTypeEncounterUpdated EventType = "encounter.updated"
	EventTypeEncounterEnded   EventType = "encounter.ended"
	EventTypeVitalityUpdated  EventType = "vitality.updated"
	EventTypeStoryAppended    EventType = "story.appended"
	EventTypeStoryCompacted   EventType = "story.compacted"
)

// Event represents a generic event structure
type Event struct {
	Type    EventType              `json:"type"`
	OwnerID int                    `json:"owner_id"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// OwnerChannel returns the pub/sub channel carrying one owner's events.
func OwnerChannel(ownerID int) string {
	return fmt.Sprintf("story-events:%d", ownerID)
}

// PublishEncounterStarted publishes an encounter.started event
func (b *Broadcaster) PublishEncounterStarted(ctx context.Context, ownerID int, encounterID string, description string) error {
	event := Event{
		Type:    EventTypeEncounterStarted,
		OwnerID: ownerID,
		Data: map[string]interface{}{
			"encounter_id": encounterID,
			"description":  description,
		},
	}
	return b.publishToOwner(ctx, ownerID, event)
}

// PublishEncounterUpdated publishes an encounter.updated event after a
// roster change or snapshot refresh.
func (b *Broadcaster) PublishEncounterUpdated(ctx context.Context, ownerID int, encounterID string, reason string) error {
	event := Event{
		Type:    EventTypeEncounterUpdated,
		OwnerID: ownerID,
		Data: map[string]interface{}{
			"encounter_id": encounterID,
			"reason":       reason,
		},
	}
	return b.publishToOwner(ctx, ownerID, event)
}

// PublishEncounterEnded publishes an encounter.ended event
func (b *Broadcaster) PublishEncounterEnded(ctx context.Context, ownerID int, encounterID string, outcome string) error {
	event := Event{
		Type:    EventTypeEncounterEnded,
		OwnerID: ownerID,
		Data: map[string]interface{}{
			"encounter_id": encounterID,
			"outcome":      outcome,
		},
	}
	return b.publishToOwner(ctx, ownerID, event)
}

// PublishVitalityUpdated publishes a vitality.updated event
func (b *Broadcaster) PublishVitalityUpdated(ctx context.Context, ownerID int, actorRef string, vitality, maxVitality int) error {
	event := Event{
		Type:    EventTypeVitalityUpdated,
		OwnerID: ownerID,
		Data: map[string]interface{}{
			"actor":        actorRef,
			"vitality":     vitality,
			"max_vitality": maxVitality,
		},
	}
	return b.publishToOwner(ctx, ownerID, event)
}

// PublishStoryAppended publishes a story.appended event
func (b *Broadcaster) PublishStoryAppended(ctx context.Context, ownerID int, role string) error {
	event := Event{
		Type:    EventTypeStoryAppended,
		OwnerID: ownerID,
		Data: map[string]interface{}{
			"role": role,
		},
	}
	return b.publishToOwner(ctx, ownerID, event)
}

// PublishStoryCompacted publishes a story.compacted event
func (b *Broadcaster) PublishStoryCompacted(ctx context.Context, ownerID int, tag string, removed int) error {
	event := Event{
		Type:    EventTypeStoryCompacted,
		OwnerID: ownerID,
		Data: map[string]interface{}{
			"tag":     tag,
			"removed": removed,
		},
	}
	return b.publishToOwner(ctx, ownerID, event)
}

// publishToOwner publishes an event to the owner-specific channel
func (b *Broadcaster) publishToOwner(ctx context.Context, ownerID int, event Event) error {
	channel := OwnerChannel(ownerID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
