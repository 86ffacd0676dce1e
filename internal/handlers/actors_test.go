package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colborne/fable-engine/pkg/actor"
)

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestActorsHandler_Create(t *testing.T) {
	stack := newTestStack(t)
	handler := NewActorsHandler(stack.storage, stack.vitality, stack.logger)

	w := postJSON(t, handler, "/v1/actors", CreateActorRequest{
		Kind:        "pc",
		Name:        "Wren",
		MaxVitality: 20,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rec actor.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, actor.KindPC, rec.Kind)
	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, 20, rec.Vitality) // defaults to max

	// IDs are allocated per kind.
	w = postJSON(t, handler, "/v1/actors", CreateActorRequest{Kind: "npc", Name: "Bandit", MaxVitality: 12})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, 1, rec.ID)
}

func TestActorsHandler_CreateValidation(t *testing.T) {
	stack := newTestStack(t)
	handler := NewActorsHandler(stack.storage, stack.vitality, stack.logger)

	w := postJSON(t, handler, "/v1/actors", CreateActorRequest{Kind: "dragon", Name: "Smolder", MaxVitality: 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, handler, "/v1/actors", CreateActorRequest{Kind: "npc", Name: "", MaxVitality: 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, handler, "/v1/actors", CreateActorRequest{Kind: "npc", Name: "Bandit", MaxVitality: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActorsHandler_Read(t *testing.T) {
	stack := newTestStack(t)
	handler := NewActorsHandler(stack.storage, stack.vitality, stack.logger)
	stack.seedActor(t, actor.KindNPC, 7, "Bandit", 9, 12)

	w := getPath(t, handler, "/v1/actors/npc/7")
	require.Equal(t, http.StatusOK, w.Code)

	var rec actor.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "Bandit", rec.Name)
	assert.Equal(t, 9, rec.Vitality)

	w = getPath(t, handler, "/v1/actors/npc/99")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = getPath(t, handler, "/v1/actors/dragon/7")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActorsHandler_Vitality(t *testing.T) {
	stack := newTestStack(t)
	handler := NewActorsHandler(stack.storage, stack.vitality, stack.logger)
	stack.seedActor(t, actor.KindPC, 1, "Wren", 15, 20)

	change := -25
	w := postJSON(t, handler, "/v1/actors/pc/1/vitality", VitalityRequest{Change: &change})
	require.Equal(t, http.StatusOK, w.Code)

	var rec actor.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, 0, rec.Vitality) // clamped, not negative

	set := 99
	w = postJSON(t, handler, "/v1/actors/pc/1/vitality", VitalityRequest{Set: &set})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, 20, rec.Vitality) // clamped to max

	// Exactly one of change/set.
	w = postJSON(t, handler, "/v1/actors/pc/1/vitality", VitalityRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(t, handler, "/v1/actors/pc/1/vitality", VitalityRequest{Change: &change, Set: &set})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
