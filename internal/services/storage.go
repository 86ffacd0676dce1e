package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the service connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the service connection
	Close() error
}

// Storage defines persistence for actors, encounters, and story logs.
// Implementations must provide atomic read-modify-write per encounter
// aggregate and per owner's message list.
type Storage interface {
	HealthChecker
	Closer

	// NextActorID allocates the next actor ID for a kind.
	NextActorID(ctx context.Context, kind actor.Kind) (int, error)

	// SaveActor persists a canonical actor record.
	SaveActor(ctx context.Context, rec *actor.Record) error

	// GetActor retrieves a canonical actor record.
	// Returns nil if the actor doesn't exist.
	GetActor(ctx context.Context, ref actor.Ref) (*actor.Record, error)

	// CreateActiveEncounter installs enc as the owner's active encounter
	// if and only if none exists. The create-if-absent happens at the
	// write path, so concurrent creators cannot both succeed. When the
	// owner already has an active encounter, created is false and
	// existing holds the current one.
	CreateActiveEncounter(ctx context.Context, enc *encounter.Encounter) (created bool, existing *encounter.Encounter, err error)

	// SaveActiveEncounter overwrites the owner's active encounter.
	SaveActiveEncounter(ctx context.Context, enc *encounter.Encounter) error

	// GetActiveEncounter retrieves the owner's active encounter.
	// Returns nil if the owner is not in combat.
	GetActiveEncounter(ctx context.Context, ownerID int) (*encounter.Encounter, error)

	// FinalizeEncounter archives an ended encounter under its ID and
	// clears the owner's active slot in the same transaction.
	FinalizeEncounter(ctx context.Context, enc *encounter.Encounter) error

	// GetEncounter retrieves an archived encounter by ID.
	// Returns nil if not found.
	GetEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)

	// ListActiveOwners returns the owner IDs of all active encounters,
	// for the vitality synchronization fan-out.
	ListActiveOwners(ctx context.Context) ([]int, error)

	// AppendStoryMessage appends one message to the owner's log.
	AppendStoryMessage(ctx context.Context, ownerID int, msg story.Message) error

	// ReadStoryWindow returns the most recent limit messages in
	// chronological order. A non-positive limit returns the full log.
	ReadStoryWindow(ctx context.Context, ownerID int, limit int) ([]story.Message, error)

	// ReplaceStory atomically replaces the owner's full log. Readers
	// never observe a partially rewritten list.
	ReplaceStory(ctx context.Context, ownerID int, messages []story.Message) error
}
