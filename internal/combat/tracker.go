package combat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/internal/services/events"
	storysvc "github.com/colborne/fable-engine/internal/story"
	"github.com/colborne/fable-engine/internal/vitality"
	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

// Tracker manages encounter lifecycles. All mutations for one owner are
// serialized by the combat lock table, which is shared with the vitality
// service so snapshot synchronization cannot race roster changes.
type Tracker struct {
	storage     services.Storage
	locks       *services.OwnerLocks
	vitality    *vitality.Service
	stories     *storysvc.Service
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewTracker creates an encounter tracker. locks must be the combat lock
// table, not the story one. The broadcaster may be nil.
func NewTracker(storage services.Storage, locks *services.OwnerLocks, vitalitySvc *vitality.Service, storySvc *storysvc.Service, broadcaster *events.Broadcaster, logger *slog.Logger) *Tracker {
	return &Tracker{
		storage:     storage,
		locks:       locks,
		vitality:    vitalitySvc,
		stories:     storySvc,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Start begins an encounter for the owner. If one is already active it is
// returned with alreadyActive set instead of an error, so a narrator that
// re-issues a start command converges on current truth. Ally and enemy ids
// that fail to resolve are dropped; an empty resolved enemy team is fatal.
func (t *Tracker) Start(ctx context.Context, ownerID int, description string, allyIDs, enemyIDs []actor.Ref) (enc *encounter.Encounter, alreadyActive bool, err error) {
	ownerRec, err := t.vitality.Get(ctx, actor.Ref{Kind: actor.KindPC, ID: ownerID})
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve encounter owner: %w", err)
	}

	enc = encounter.New(ownerID, description, encounter.NewCombatant(ownerRec, "player"))

	for _, c := range t.resolve(ctx, allyIDs, "ally") {
		if addErr := enc.AddCombatant(c, encounter.TeamPlayer); addErr != nil {
			t.logger.Warn("Skipping ally", "actor", c.Actor.String(), "error", addErr)
		}
	}
	for _, c := range t.resolve(ctx, enemyIDs, "enemy") {
		if addErr := enc.AddCombatant(c, encounter.TeamEnemy); addErr != nil {
			t.logger.Warn("Skipping enemy", "actor", c.Actor.String(), "error", addErr)
		}
	}
	if len(enc.TeamEnemy) == 0 {
		return nil, false, encounter.ErrNoValidEnemies
	}

	t.locks.Lock(ownerID)
	defer t.locks.Unlock(ownerID)

	created, existing, err := t.storage.CreateActiveEncounter(ctx, enc)
	if err != nil {
		return nil, false, err
	}
	if !created {
		t.logger.Info("Start requested while already in combat",
			"owner_id", ownerID,
			"encounter_id", existing.ID.String(),
		)
		return existing, true, nil
	}

	t.logger.Info("Encounter started",
		"owner_id", ownerID,
		"encounter_id", enc.ID.String(),
		"enemies", len(enc.TeamEnemy),
	)

	if t.broadcaster != nil {
		if pubErr := t.broadcaster.PublishEncounterStarted(ctx, ownerID, enc.ID.String(), enc.Description); pubErr != nil {
			t.logger.Warn("Failed to publish encounter event", "owner_id", ownerID, "error", pubErr)
		}
	}
	return enc, false, nil
}

// resolve turns actor refs into combatant snapshots, dropping refs that do
// not resolve to a stored actor.
func (t *Tracker) resolve(ctx context.Context, refs []actor.Ref, role string) []encounter.Combatant {
	combatants := make([]encounter.Combatant, 0, len(refs))
	for _, ref := range refs {
		rec, err := t.vitality.Get(ctx, ref)
		if err != nil {
			t.logger.Warn("Dropping unresolvable combatant", "actor", ref.String(), "role", role, "error", err)
			continue
		}
		combatants = append(combatants, encounter.NewCombatant(rec, role))
	}
	return combatants
}

// GetActive returns the owner's active encounter, or ErrNoActiveEncounter.
func (t *Tracker) GetActive(ctx context.Context, ownerID int) (*encounter.Encounter, error) {
	enc, err := t.storage.GetActiveEncounter(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, encounter.ErrNoActiveEncounter
	}
	return enc, nil
}

// AddCombatant resolves an actor and appends it to the requested team.
func (t *Tracker) AddCombatant(ctx context.Context, ownerID int, ref actor.Ref, team encounter.Team) (*encounter.Encounter, error) {
	rec, err := t.vitality.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	role := "ally"
	if team == encounter.TeamEnemy {
		role = "enemy"
	}

	t.locks.Lock(ownerID)
	defer t.locks.Unlock(ownerID)

	enc, err := t.GetActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := enc.AddCombatant(encounter.NewCombatant(rec, role), team); err != nil {
		return nil, err
	}
	if err := t.storage.SaveActiveEncounter(ctx, enc); err != nil {
		return nil, err
	}

	t.publishUpdated(ctx, ownerID, enc, "combatant_added")
	return enc, nil
}

// RemoveCombatant removes an actor from whichever team holds it. The reason
// is informational free text (fled, captured, died) and is only logged.
func (t *Tracker) RemoveCombatant(ctx context.Context, ownerID int, ref actor.Ref, reason string) (*encounter.Encounter, error) {
	t.locks.Lock(ownerID)
	defer t.locks.Unlock(ownerID)

	enc, err := t.GetActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	removed, err := enc.RemoveCombatant(ref)
	if err != nil {
		return nil, err
	}
	if err := t.storage.SaveActiveEncounter(ctx, enc); err != nil {
		return nil, err
	}

	t.logger.Info("Combatant removed",
		"owner_id", ownerID,
		"actor", removed.Actor.String(),
		"reason", reason,
	)
	t.publishUpdated(ctx, ownerID, enc, "combatant_removed")
	return enc, nil
}

// SyncVitality writes an absolute vitality value for a combatant of the
// owner's active encounter. The canonical write and the snapshot update both
// go through the vitality service, so every other active encounter holding
// the same actor is refreshed too.
func (t *Tracker) SyncVitality(ctx context.Context, ownerID int, ref actor.Ref, newCurrent int) (*actor.Record, error) {
	if err := t.validateMember(ctx, ownerID, ref); err != nil {
		return nil, err
	}
	return t.vitality.Set(ctx, ref, newCurrent)
}

// SyncVitalityDelta applies a signed vitality change to a combatant of the
// owner's active encounter.
func (t *Tracker) SyncVitalityDelta(ctx context.Context, ownerID int, ref actor.Ref, delta int) (*actor.Record, error) {
	if err := t.validateMember(ctx, ownerID, ref); err != nil {
		return nil, err
	}
	return t.vitality.Adjust(ctx, ref, delta)
}

// validateMember checks under the combat lock that the actor is a combatant
// of the owner's active encounter. The lock is released before the vitality
// write, which re-acquires it per owner during fan-out; an encounter that
// ends in between simply stops mirroring, which is the same outcome as the
// write arriving a moment later.
func (t *Tracker) validateMember(ctx context.Context, ownerID int, ref actor.Ref) error {
	t.locks.Lock(ownerID)
	defer t.locks.Unlock(ownerID)

	enc, err := t.GetActive(ctx, ownerID)
	if err != nil {
		return err
	}
	if _, _, found := enc.Combatant(ref); !found {
		return fmt.Errorf("%w: %s", encounter.ErrCombatantNotFound, ref)
	}
	return nil
}

// End transitions the owner's active encounter to its terminal state, then
// compacts the encounter's tagged story messages into a single summary.
// Compaction is best-effort cleanup: its failure, or a zero match count,
// never un-ends the encounter.
func (t *Tracker) End(ctx context.Context, ownerID int, outcome, summary string) (*encounter.Encounter, int, error) {
	enc, err := t.end(ctx, ownerID, outcome, summary)
	if err != nil {
		return nil, 0, err
	}

	compacted := 0
	if t.stories != nil {
		replacement := story.NewMessage(story.RoleNarrator, summary, []string{enc.SummaryTag()})
		compacted, err = t.stories.CompactByTag(ctx, ownerID, enc.Tag(), replacement)
		if err != nil {
			t.logger.Error("Compaction failed after encounter end", "owner_id", ownerID, "encounter_id", enc.ID.String(), "error", err)
			compacted = 0
		}
	}

	t.logger.Info("Encounter ended",
		"owner_id", ownerID,
		"encounter_id", enc.ID.String(),
		"outcome", outcome,
		"messages_compacted", compacted,
	)

	if t.broadcaster != nil {
		if pubErr := t.broadcaster.PublishEncounterEnded(ctx, ownerID, enc.ID.String(), outcome); pubErr != nil {
			t.logger.Warn("Failed to publish encounter event", "owner_id", ownerID, "error", pubErr)
		}
	}
	return enc, compacted, nil
}

// end performs the state transition under the combat lock.
func (t *Tracker) end(ctx context.Context, ownerID int, outcome, summary string) (*encounter.Encounter, error) {
	t.locks.Lock(ownerID)
	defer t.locks.Unlock(ownerID)

	enc, err := t.GetActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := enc.End(outcome, summary); err != nil {
		return nil, err
	}
	if err := t.storage.FinalizeEncounter(ctx, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// GetArchived returns an ended encounter by its ID, or nil if unknown.
func (t *Tracker) GetArchived(ctx context.Context, id string) (*encounter.Encounter, error) {
	parsed, err := parseEncounterID(id)
	if err != nil {
		return nil, err
	}
	return t.storage.GetEncounter(ctx, parsed)
}

func parseEncounterID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid encounter id: %w", err)
	}
	return parsed, nil
}

func (t *Tracker) publishUpdated(ctx context.Context, ownerID int, enc *encounter.Encounter, reason string) {
	if t.broadcaster == nil {
		return
	}
	if err := t.broadcaster.PublishEncounterUpdated(ctx, ownerID, enc.ID.String(), reason); err != nil {
		t.logger.Warn("Failed to publish encounter event", "owner_id", ownerID, "error", err)
	}
}
