package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	storage := NewRedisStorage(mr.Addr(), logger)

	return storage, mr
}

func TestRedisStorage_ActorRoundTrip(t *testing.T) {
	storage, mr := setupTestRedis(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()

	id, err := storage.NextActorID(ctx, actor.KindPC)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = storage.NextActorID(ctx, actor.KindPC)
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	// NPC sequence is independent of the PC sequence.
	id, err = storage.NextActorID(ctx, actor.KindNPC)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	rec := &actor.Record{
		Kind:        actor.KindPC,
		ID:          2,
		Name:        "Wren",
		Vitality:    14,
		MaxVitality: 20,
	}
	require.NoError(t, storage.SaveActor(ctx, rec))

	loaded, err := storage.GetActor(ctx, rec.Ref())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Wren", loaded.Name)
	assert.Equal(t, 14, loaded.Vitality)

	missing, err := storage.GetActor(ctx, actor.Ref{Kind: actor.KindNPC, ID: 99})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisStorage_CreateActiveEncounterOnce(t *testing.T) {
	storage, mr := setupTestRedis(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()

	owner := encounter.NewCombatant(&actor.Record{Kind: actor.KindPC, ID: 1, Name: "Wren", Vitality: 20, MaxVitality: 20}, "player")
	first := encounter.New(1, "Bandits on the road", owner)
	second := encounter.New(1, "A second ambush", owner)

	created, existing, err := storage.CreateActiveEncounter(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, existing)

	created, existing, err = storage.CreateActiveEncounter(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, existing)
	assert.Equal(t, first.ID, existing.ID)
	assert.Equal(t, "Bandits on the road", existing.Description)

	owners, err := storage.ListActiveOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, owners)
}

func TestRedisStorage_FinalizeEncounter(t *testing.T) {
	storage, mr := setupTestRedis(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()

	owner := encounter.NewCombatant(&actor.Record{Kind: actor.KindPC, ID: 5, Name: "Wren", Vitality: 20, MaxVitality: 20}, "player")
	enc := encounter.New(5, "Wolves at dusk", owner)

	created, _, err := storage.CreateActiveEncounter(ctx, enc)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, enc.End("victory", "The wolves scatter."))
	require.NoError(t, storage.FinalizeEncounter(ctx, enc))

	active, err := storage.GetActiveEncounter(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, active)

	owners, err := storage.ListActiveOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)

	archived, err := storage.GetEncounter(ctx, enc.ID)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, encounter.StatusEnded, archived.Status)
	assert.Equal(t, "victory", archived.Outcome)
}

func TestRedisStorage_StoryAppendAndWindow(t *testing.T) {
	storage, mr := setupTestRedis(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		msg := story.NewMessage(story.RoleNarrator, content, nil)
		require.NoError(t, storage.AppendStoryMessage(ctx, 3, msg))
	}

	window, err := storage.ReadStoryWindow(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "three", window[0].Content)
	assert.Equal(t, "four", window[1].Content)

	full, err := storage.ReadStoryWindow(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, full, 4)

	empty, err := storage.ReadStoryWindow(ctx, 42, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisStorage_ReplaceStory(t *testing.T) {
	storage, mr := setupTestRedis(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()

	for _, content := range []string{"A", "B", "C"} {
		require.NoError(t, storage.AppendStoryMessage(ctx, 9, story.NewMessage(story.RoleNarrator, content, nil)))
	}

	rewritten := []story.Message{
		story.NewMessage(story.RoleNarrator, "summary", nil),
		story.NewMessage(story.RoleNarrator, "C", nil),
	}
	require.NoError(t, storage.ReplaceStory(ctx, 9, rewritten))

	log, err := storage.ReadStoryWindow(ctx, 9, 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "summary", log[0].Content)
	assert.Equal(t, "C", log[1].Content)

	// Replacing with an empty log clears the list.
	require.NoError(t, storage.ReplaceStory(ctx, 9, nil))
	log, err = storage.ReadStoryWindow(ctx, 9, 0)
	require.NoError(t, err)
	assert.Empty(t, log)
}
