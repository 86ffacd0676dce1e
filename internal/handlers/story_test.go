package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colborne/fable-engine/pkg/story"
)

func TestStoryHandler_AppendAndWindow(t *testing.T) {
	stack := newTestStack(t)
	handler := NewStoryHandler(stack.stories, 50, stack.logger)

	for _, content := range []string{"dawn breaks", "the road forks", "hoofbeats behind"} {
		w := postJSON(t, handler, "/v1/story/1", AppendMessageRequest{
			Role:    story.RoleNarrator,
			Content: content,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := getPath(t, handler, "/v1/story/1?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StoryWindowResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "the road forks", resp.Messages[0].Content)
	assert.Equal(t, "hoofbeats behind", resp.Messages[1].Content)

	// limit=0 returns the full log.
	w = getPath(t, handler, "/v1/story/1?limit=0")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Messages, 3)
}

func TestStoryHandler_AppendValidation(t *testing.T) {
	stack := newTestStack(t)
	handler := NewStoryHandler(stack.stories, 50, stack.logger)

	w := postJSON(t, handler, "/v1/story/1", AppendMessageRequest{Role: "bard", Content: "a song"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, handler, "/v1/story/1", AppendMessageRequest{Role: story.RolePlayer})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = getPath(t, handler, "/v1/story/0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoryHandler_Compact(t *testing.T) {
	stack := newTestStack(t)
	handler := NewStoryHandler(stack.stories, 50, stack.logger)

	entries := []AppendMessageRequest{
		{Role: story.RoleNarrator, Content: "the inn at night"},
		{Role: story.RoleNarrator, Content: "steel is drawn", Tags: []string{"encounter:abc"}},
		{Role: story.RoleNarrator, Content: "a dog barks", Tags: nil},
		{Role: story.RoleNarrator, Content: "the bandit falls", Tags: []string{"encounter:abc"}},
	}
	for _, e := range entries {
		w := postJSON(t, handler, "/v1/story/2", e)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := postJSON(t, handler, "/v1/story/2/compact", CompactRequest{
		Tag:     "encounter:abc",
		Content: "A short, ugly brawl.",
		Tags:    []string{"encounter:abc:summary"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp CompactResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.MessagesCompacted)

	var windowResp StoryWindowResponse
	w = getPath(t, handler, "/v1/story/2")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&windowResp))
	require.Len(t, windowResp.Messages, 3)
	assert.Equal(t, "A short, ugly brawl.", windowResp.Messages[1].Content)

	// Compacting a tag nobody used reports zero and changes nothing.
	w = postJSON(t, handler, "/v1/story/2/compact", CompactRequest{Tag: "encounter:ghost", Content: "nothing"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 0, resp.MessagesCompacted)

	// Tag is required.
	w = postJSON(t, handler, "/v1/story/2/compact", CompactRequest{Content: "no tag"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
