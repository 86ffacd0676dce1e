package actor

import (
	"errors"
	"fmt"
)

// Kind distinguishes player characters from non-player characters.
type Kind string

const (
	KindPC  Kind = "pc"
	KindNPC Kind = "npc"
)

// ErrNotFound is returned when an actor reference does not resolve.
var ErrNotFound = errors.New("actor not found")

// ParseKind converts a string to a Kind. It accepts the wire values
// "pc" and "npc" only.
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindPC):
		return KindPC, nil
	case string(KindNPC):
		return KindNPC, nil
	default:
		return "", fmt.Errorf("invalid actor kind: %q", s)
	}
}

// Ref identifies an actor owned by the vitality store.
type Ref struct {
	Kind Kind `json:"kind"`
	ID   int  `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Valid reports whether the reference has a known kind and a positive ID.
func (r Ref) Valid() bool {
	return (r.Kind == KindPC || r.Kind == KindNPC) && r.ID > 0
}

// Record is the canonical persisted representation of an actor. Vitality on
// the record is the source of truth; encounter snapshots mirror it.
type Record struct {
	Kind        Kind   `json:"kind"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Vitality    int    `json:"vitality"`
	MaxVitality int    `json:"max_vitality"`
}

func (rec *Record) Ref() Ref {
	return Ref{Kind: rec.Kind, ID: rec.ID}
}

// Clamp bounds a vitality value to the record's [0, max] range.
func (rec *Record) Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > rec.MaxVitality {
		return rec.MaxVitality
	}
	return v
}

// IsDown reports whether the actor is at zero vitality. Down is a
// presentation state; it does not remove the actor from anything.
func (rec *Record) IsDown() bool {
	return rec.Vitality <= 0
}

func (rec *Record) Validate() error {
	if !rec.Ref().Valid() {
		return fmt.Errorf("invalid actor reference: %s", rec.Ref())
	}
	if rec.Name == "" {
		return fmt.Errorf("actor name cannot be empty")
	}
	if rec.MaxVitality < 1 {
		return fmt.Errorf("max vitality must be at least 1, got %d", rec.MaxVitality)
	}
	if rec.Vitality < 0 || rec.Vitality > rec.MaxVitality {
		return fmt.Errorf("vitality %d out of range [0, %d]", rec.Vitality, rec.MaxVitality)
	}
	return nil
}
