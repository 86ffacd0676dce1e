package vitality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/internal/services/events"
	"github.com/colborne/fable-engine/pkg/actor"
)

// Service is the sole writer of canonical actor vitality. Every write is
// clamped to [0, max] and then mirrored into the combatant snapshot of every
// active encounter the actor appears in, so narrators reading an encounter
// never see a stale value survive past the write.
type Service struct {
	storage     services.Storage
	combatLocks *services.OwnerLocks
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewService creates a vitality service. combatLocks must be the same lock
// table the encounter tracker uses, or snapshot writes would race roster
// changes. The broadcaster may be nil.
func NewService(storage services.Storage, combatLocks *services.OwnerLocks, broadcaster *events.Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		storage:     storage,
		combatLocks: combatLocks,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Get returns the canonical record for an actor.
func (s *Service) Get(ctx context.Context, ref actor.Ref) (*actor.Record, error) {
	rec, err := s.storage.GetActor(ctx, ref)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", actor.ErrNotFound, ref)
	}
	return rec, nil
}

// Set overwrites an actor's vitality with the given value, clamped to the
// record's [0, max] range, and fans the result out to active encounters.
func (s *Service) Set(ctx context.Context, ref actor.Ref, value int) (*actor.Record, error) {
	return s.write(ctx, ref, func(rec *actor.Record) int {
		return rec.Clamp(value)
	})
}

// Adjust applies a signed delta to an actor's vitality. The result is
// clamped, so overkill damage bottoms out at zero and overheal caps at max.
func (s *Service) Adjust(ctx context.Context, ref actor.Ref, delta int) (*actor.Record, error) {
	return s.write(ctx, ref, func(rec *actor.Record) int {
		return rec.Clamp(rec.Vitality + delta)
	})
}

func (s *Service) write(ctx context.Context, ref actor.Ref, apply func(*actor.Record) int) (*actor.Record, error) {
	rec, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	rec.Vitality = apply(rec)
	if err := s.storage.SaveActor(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save actor vitality: %w", err)
	}

	s.logger.Debug("Vitality updated",
		"actor", ref.String(),
		"vitality", rec.Vitality,
		"max_vitality", rec.MaxVitality,
	)

	s.syncEncounters(ctx, rec)
	return rec, nil
}

// syncEncounters mirrors a canonical vitality value into the snapshot of
// every active encounter the actor participates in. Failures here are logged
// and skipped; the canonical write already happened and a missed mirror is
// corrected by the next write.
func (s *Service) syncEncounters(ctx context.Context, rec *actor.Record) {
	owners, err := s.storage.ListActiveOwners(ctx)
	if err != nil {
		s.logger.Error("Failed to list active encounters for vitality sync", "actor", rec.Ref().String(), "error", err)
		return
	}

	for _, ownerID := range owners {
		s.syncOwner(ctx, ownerID, rec)
	}
}

func (s *Service) syncOwner(ctx context.Context, ownerID int, rec *actor.Record) {
	s.combatLocks.Lock(ownerID)
	defer s.combatLocks.Unlock(ownerID)

	enc, err := s.storage.GetActiveEncounter(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to load encounter for vitality sync", "owner_id", ownerID, "error", err)
		return
	}
	if enc == nil || !enc.IsActive() {
		return
	}
	if !enc.SetVitality(rec.Ref(), rec.Vitality) {
		return
	}

	if err := s.storage.SaveActiveEncounter(ctx, enc); err != nil {
		s.logger.Error("Failed to save encounter after vitality sync", "owner_id", ownerID, "error", err)
		return
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.PublishVitalityUpdated(ctx, ownerID, rec.Ref().String(), rec.Vitality, rec.MaxVitality); err != nil {
			s.logger.Warn("Failed to publish vitality event", "owner_id", ownerID, "error", err)
		}
	}
}
