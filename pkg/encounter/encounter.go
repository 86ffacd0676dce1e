package encounter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/colborne/fable-engine/pkg/actor"
)

// Status is the lifecycle state of an encounter.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Team names the two sides of an encounter.
type Team string

const (
	TeamPlayer Team = "player" // the owner's side
	TeamEnemy  Team = "enemy"  // the opposing side
)

// ParseTeam converts a string to a Team.
func ParseTeam(s string) (Team, error) {
	switch s {
	case string(TeamPlayer):
		return TeamPlayer, nil
	case string(TeamEnemy):
		return TeamEnemy, nil
	default:
		return "", fmt.Errorf("invalid team: %q", s)
	}
}

var (
	// ErrNoActiveEncounter is returned by mutations addressed to an owner
	// with no active encounter, including mutations against an ended one.
	ErrNoActiveEncounter = errors.New("no active encounter")

	// ErrDuplicateCombatant is returned when an actor is already present
	// on either team. Duplicate joins are rejected, not merged.
	ErrDuplicateCombatant = errors.New("combatant already present in encounter")

	// ErrCombatantNotFound is returned when an actor is not on either team.
	ErrCombatantNotFound = errors.New("combatant not found in encounter")

	// ErrProtectedCombatant is returned when removing the owner's own
	// combatant, which exists for the life of the encounter.
	ErrProtectedCombatant = errors.New("owner combatant cannot be removed")

	// ErrNoValidEnemies is returned by start when no enemy id resolved.
	ErrNoValidEnemies = errors.New("no valid combatants on enemy team")
)

// Combatant is a snapshot of one actor's participation in an encounter.
// Name is captured at join time and does not follow renames. Vitality
// mirrors the canonical store as of the last synchronization.
type Combatant struct {
	Actor       actor.Ref `json:"actor"`
	Name        string    `json:"name"`
	Vitality    int       `json:"vitality"`
	MaxVitality int       `json:"max_vitality"`
	Role        string    `json:"role,omitempty"` // informational: "player", "ally", "enemy", ...
}

// IsDown reports whether the combatant's snapshot vitality is zero.
func (c Combatant) IsDown() bool {
	return c.Vitality <= 0
}

// NewCombatant builds a snapshot from a canonical actor record.
func NewCombatant(rec *actor.Record, role string) Combatant {
	return Combatant{
		Actor:       rec.Ref(),
		Name:        rec.Name,
		Vitality:    rec.Vitality,
		MaxVitality: rec.MaxVitality,
		Role:        role,
	}
}

// Encounter is one combat session, owned by exactly one player character.
// At most one encounter per owner is active at a time.
type Encounter struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     int         `json:"owner_id"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	TeamPlayer  []Combatant `json:"team_player"`
	TeamEnemy   []Combatant `json:"team_enemy"`
	Outcome     string      `json:"outcome,omitempty"` // victory, defeat, fled, negotiated, interrupted
	Summary     string      `json:"summary,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
}

// New creates an active encounter for the given owner. The owner's own
// combatant is appended to the player team first.
func New(ownerID int, description string, owner Combatant) *Encounter {
	return &Encounter{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Status:      StatusActive,
		Description: description,
		TeamPlayer:  []Combatant{owner},
		TeamEnemy:   make([]Combatant, 0),
		CreatedAt:   time.Now().UTC(),
	}
}

// Tag is the story log tag carried by every message narrated during this
// encounter, and the tag compacted away when the encounter ends.
func (e *Encounter) Tag() string {
	return "encounter:" + e.ID.String()
}

// SummaryTag tags the compaction summary message.
func (e *Encounter) SummaryTag() string {
	return e.Tag() + ":summary"
}

func (e *Encounter) IsActive() bool {
	return e.Status == StatusActive
}

// Combatant finds an actor's snapshot on either team. The returned pointer
// aliases the encounter's slices, so writes through it mutate the snapshot.
func (e *Encounter) Combatant(ref actor.Ref) (*Combatant, Team, bool) {
	for i := range e.TeamPlayer {
		if e.TeamPlayer[i].Actor == ref {
			return &e.TeamPlayer[i], TeamPlayer, true
		}
	}
	for i := range e.TeamEnemy {
		if e.TeamEnemy[i].Actor == ref {
			return &e.TeamEnemy[i], TeamEnemy, true
		}
	}
	return nil, "", false
}

// AddCombatant appends a snapshot to the requested team. Membership is
// exclusive across both teams.
func (e *Encounter) AddCombatant(c Combatant, team Team) error {
	if !e.IsActive() {
		return ErrNoActiveEncounter
	}
	if _, _, found := e.Combatant(c.Actor); found {
		return fmt.Errorf("%w: %s", ErrDuplicateCombatant, c.Actor)
	}
	switch team {
	case TeamPlayer:
		e.TeamPlayer = append(e.TeamPlayer, c)
	case TeamEnemy:
		e.TeamEnemy = append(e.TeamEnemy, c)
	default:
		return fmt.Errorf("invalid team: %q", team)
	}
	return nil
}

// RemoveCombatant removes an actor from whichever team holds it and returns
// the removed snapshot. The owner's own combatant is not removable.
func (e *Encounter) RemoveCombatant(ref actor.Ref) (Combatant, error) {
	if !e.IsActive() {
		return Combatant{}, ErrNoActiveEncounter
	}
	if ref.Kind == actor.KindPC && ref.ID == e.OwnerID {
		return Combatant{}, ErrProtectedCombatant
	}
	for i := range e.TeamPlayer {
		if e.TeamPlayer[i].Actor == ref {
			removed := e.TeamPlayer[i]
			e.TeamPlayer = append(e.TeamPlayer[:i], e.TeamPlayer[i+1:]...)
			return removed, nil
		}
	}
	for i := range e.TeamEnemy {
		if e.TeamEnemy[i].Actor == ref {
			removed := e.TeamEnemy[i]
			e.TeamEnemy = append(e.TeamEnemy[:i], e.TeamEnemy[i+1:]...)
			return removed, nil
		}
	}
	return Combatant{}, fmt.Errorf("%w: %s", ErrCombatantNotFound, ref)
}

// SetVitality overwrites the snapshot vitality for the given actor with an
// already-clamped canonical value. It reports whether a snapshot matched.
func (e *Encounter) SetVitality(ref actor.Ref, vitality int) bool {
	c, _, found := e.Combatant(ref)
	if !found {
		return false
	}
	c.Vitality = vitality
	return true
}

// End transitions the encounter to its terminal state. The transition
// happens exactly once; a second call fails with ErrNoActiveEncounter so
// the historical record is never mutated.
func (e *Encounter) End(outcome, summary string) error {
	if !e.IsActive() {
		return ErrNoActiveEncounter
	}
	now := time.Now().UTC()
	e.Status = StatusEnded
	e.Outcome = outcome
	e.Summary = summary
	e.EndedAt = &now
	return nil
}

// PromptSummary renders the encounter for narrator context: both teams with
// HP fractions, percentages, and DOWN markers.
func (e *Encounter) PromptSummary() string {
	var sb strings.Builder
	desc := e.Description
	if desc == "" {
		desc = "Battle in progress"
	}
	sb.WriteString("ACTIVE COMBAT: " + desc + "\n")

	writeTeam := func(header string, team []Combatant) {
		sb.WriteString("\n" + header + "\n")
		for _, c := range team {
			status := "DOWN"
			if !c.IsDown() {
				max := c.MaxVitality
				if max < 1 {
					max = 1
				}
				status = fmt.Sprintf("%d%% HP", c.Vitality*100/max)
			}
			role := ""
			if c.Role != "" {
				role = " [" + c.Role + "]"
			}
			sb.WriteString(fmt.Sprintf("- %s (%s)%s: %d/%d (%s)\n",
				c.Name, c.Actor.Kind, role, c.Vitality, c.MaxVitality, status))
		}
	}
	writeTeam("Your Team:", e.TeamPlayer)
	writeTeam("Enemy Team:", e.TeamEnemy)
	return sb.String()
}
