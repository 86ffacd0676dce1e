package story

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/pkg/story"
)

func newTestService() (*Service, *services.MockStorage) {
	storage := services.NewMockStorage()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(storage, services.NewOwnerLocks(), nil, logger), storage
}

func TestAppendAndWindow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, content := range []string{"dawn breaks", "the road forks", "hoofbeats behind"} {
		err := svc.Append(ctx, 1, story.NewMessage(story.RoleNarrator, content, nil))
		require.NoError(t, err)
	}

	window, err := svc.Window(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "the road forks", window[0].Content)
	assert.Equal(t, "hoofbeats behind", window[1].Content)

	full, err := svc.Window(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, full, 3)
}

func TestCompactByTagRewritesLog(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	entries := []struct {
		content string
		tags    []string
	}{
		{"the inn at night", nil},
		{"steel is drawn", []string{"encounter:abc"}},
		{"a dog barks outside", nil},
		{"the bandit falls", []string{"encounter:abc"}},
	}
	for _, e := range entries {
		require.NoError(t, svc.Append(ctx, 2, story.NewMessage(story.RoleNarrator, e.content, e.tags)))
	}

	summary := story.NewMessage(story.RoleNarrator, "A short, ugly brawl.", []string{"encounter:abc:summary"})
	removed, err := svc.CompactByTag(ctx, 2, "encounter:abc", summary)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	log, err := svc.Window(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, "the inn at night", log[0].Content)
	assert.Equal(t, "A short, ugly brawl.", log[1].Content)
	assert.Equal(t, "a dog barks outside", log[2].Content)
}

func TestCompactByTagNoMatchesLeavesLogAlone(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Append(ctx, 3, story.NewMessage(story.RoleNarrator, "nothing happens", nil)))

	removed, err := svc.CompactByTag(ctx, 3, "encounter:ghost", story.NewMessage(story.RoleNarrator, "summary", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	log, err := svc.Window(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "nothing happens", log[0].Content)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			msg := story.NewMessage(story.RolePlayer, fmt.Sprintf("turn %d", n), nil)
			assert.NoError(t, svc.Append(ctx, 4, msg))
		}(i)
	}
	wg.Wait()

	log, err := svc.Window(ctx, 4, 0)
	require.NoError(t, err)
	assert.Len(t, log, 20)
}
