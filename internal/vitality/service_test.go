package vitality

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
)

func newTestService(t *testing.T) (*Service, *services.MockStorage) {
	t.Helper()
	storage := services.NewMockStorage()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(storage, services.NewOwnerLocks(), nil, logger), storage
}

func seedActor(t *testing.T, storage *services.MockStorage, kind actor.Kind, id, vitality, max int) *actor.Record {
	t.Helper()
	rec := &actor.Record{Kind: kind, ID: id, Name: "Test", Vitality: vitality, MaxVitality: max}
	require.NoError(t, storage.SaveActor(context.Background(), rec))
	return rec
}

func TestGetUnknownActor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), actor.Ref{Kind: actor.KindNPC, ID: 404})
	require.Error(t, err)
	assert.ErrorIs(t, err, actor.ErrNotFound)
}

func TestSetClampsToRange(t *testing.T) {
	svc, storage := newTestService(t)
	seedActor(t, storage, actor.KindPC, 1, 10, 20)

	rec, err := svc.Set(context.Background(), actor.Ref{Kind: actor.KindPC, ID: 1}, 50)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Vitality)

	rec, err = svc.Set(context.Background(), actor.Ref{Kind: actor.KindPC, ID: 1}, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Vitality)
}

func TestAdjustOverkillBottomsOutAtZero(t *testing.T) {
	svc, storage := newTestService(t)
	seedActor(t, storage, actor.KindNPC, 10, 3, 12)

	rec, err := svc.Adjust(context.Background(), actor.Ref{Kind: actor.KindNPC, ID: 10}, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Vitality)
	assert.True(t, rec.IsDown())
}

func TestAdjustOverhealCapsAtMax(t *testing.T) {
	svc, storage := newTestService(t)
	seedActor(t, storage, actor.KindPC, 2, 18, 20)

	rec, err := svc.Adjust(context.Background(), actor.Ref{Kind: actor.KindPC, ID: 2}, +9)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Vitality)
}

func TestWriteFansOutToActiveEncounters(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	ownerRec := seedActor(t, storage, actor.KindPC, 1, 20, 20)
	banditRec := seedActor(t, storage, actor.KindNPC, 7, 12, 12)

	enc := encounter.New(1, "Roadside ambush", encounter.NewCombatant(ownerRec, "player"))
	require.NoError(t, enc.AddCombatant(encounter.NewCombatant(banditRec, "enemy"), encounter.TeamEnemy))
	created, _, err := storage.CreateActiveEncounter(ctx, enc)
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.Adjust(ctx, banditRec.Ref(), -12)
	require.NoError(t, err)

	// Canonical record and the encounter snapshot agree.
	rec, err := svc.Get(ctx, banditRec.Ref())
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Vitality)

	synced, err := storage.GetActiveEncounter(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, synced)
	c, _, found := synced.Combatant(banditRec.Ref())
	require.True(t, found)
	assert.Equal(t, 0, c.Vitality)
	assert.True(t, c.IsDown())

	// Down is a vitality state, not an encounter transition.
	assert.True(t, synced.IsActive())
}

func TestWriteSkipsEncountersWithoutTheActor(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	ownerRec := seedActor(t, storage, actor.KindPC, 1, 20, 20)
	otherRec := seedActor(t, storage, actor.KindPC, 2, 15, 15)
	strayRec := seedActor(t, storage, actor.KindNPC, 3, 8, 8)

	encA := encounter.New(1, "", encounter.NewCombatant(ownerRec, "player"))
	encB := encounter.New(2, "", encounter.NewCombatant(otherRec, "player"))
	_, _, err := storage.CreateActiveEncounter(ctx, encA)
	require.NoError(t, err)
	_, _, err = storage.CreateActiveEncounter(ctx, encB)
	require.NoError(t, err)

	_, err = svc.Adjust(ctx, strayRec.Ref(), -4)
	require.NoError(t, err)

	// Neither encounter contains the stray NPC, so neither changed.
	a, err := storage.GetActiveEncounter(ctx, 1)
	require.NoError(t, err)
	_, _, found := a.Combatant(strayRec.Ref())
	assert.False(t, found)
}
