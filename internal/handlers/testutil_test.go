package handlers

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colborne/fable-engine/internal/combat"
	"github.com/colborne/fable-engine/internal/services"
	storysvc "github.com/colborne/fable-engine/internal/story"
	"github.com/colborne/fable-engine/internal/vitality"
	"github.com/colborne/fable-engine/pkg/actor"
)

// testStack wires the full service graph over mock storage, the same shape
// cmd/api builds in production minus Redis and the broadcaster.
type testStack struct {
	storage  *services.MockStorage
	vitality *vitality.Service
	stories  *storysvc.Service
	tracker  *combat.Tracker
	logger   *slog.Logger
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	storage := services.NewMockStorage()

	combatLocks := services.NewOwnerLocks()
	storyLocks := services.NewOwnerLocks()
	vitalitySvc := vitality.NewService(storage, combatLocks, nil, logger)
	storySvc := storysvc.NewService(storage, storyLocks, nil, logger)
	tracker := combat.NewTracker(storage, combatLocks, vitalitySvc, storySvc, nil, logger)

	return &testStack{
		storage:  storage,
		vitality: vitalitySvc,
		stories:  storySvc,
		tracker:  tracker,
		logger:   logger,
	}
}

func (s *testStack) seedActor(t *testing.T, kind actor.Kind, id int, name string, vit, max int) actor.Ref {
	t.Helper()
	rec := &actor.Record{Kind: kind, ID: id, Name: name, Vitality: vit, MaxVitality: max}
	require.NoError(t, s.storage.SaveActor(context.Background(), rec))
	return rec.Ref()
}
