package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/internal/vitality"
	"github.com/colborne/fable-engine/pkg/actor"
)

// ActorsHandler manages canonical actor records and the general-purpose
// vitality write path.
type ActorsHandler struct {
	storage  services.Storage
	vitality *vitality.Service
	logger   *slog.Logger
}

func NewActorsHandler(storage services.Storage, vitalitySvc *vitality.Service, logger *slog.Logger) *ActorsHandler {
	return &ActorsHandler{
		storage:  storage,
		vitality: vitalitySvc,
		logger:   logger,
	}
}

type CreateActorRequest struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Vitality    *int   `json:"vitality,omitempty"`
	MaxVitality int    `json:"max_vitality"`
}

// VitalityRequest carries exactly one of change (signed delta) or set
// (absolute value).
type VitalityRequest struct {
	Change *int `json:"change,omitempty"`
	Set    *int `json:"set,omitempty"`
}

// ServeHTTP routes actor requests.
// Routes:
// POST /v1/actors                       - Create actor
// GET  /v1/actors/{kind}/{id}           - Read actor
// POST /v1/actors/{kind}/{id}/vitality  - Apply a vitality change
func (h *ActorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/actors"), "/")
	if rest == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}
	ref, ok := h.parseRef(w, parts[0], parts[1])
	if !ok {
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.handleRead(w, r, ref)
	case len(parts) == 3 && parts[2] == "vitality" && r.Method == http.MethodPost:
		h.handleVitality(w, r, ref)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ActorsHandler) parseRef(w http.ResponseWriter, kindStr, idStr string) (actor.Ref, bool) {
	kind, err := actor.ParseKind(kindStr)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid actor kind. Expected pc or npc.")
		return actor.Ref{}, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id < 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid actor ID")
		return actor.Ref{}, false
	}
	return actor.Ref{Kind: kind, ID: id}, true
}

func (h *ActorsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	kind, err := actor.ParseKind(req.Kind)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid actor kind. Expected pc or npc.")
		return
	}

	id, err := h.storage.NextActorID(r.Context(), kind)
	if err != nil {
		h.logger.Error("Failed to allocate actor ID", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	rec := &actor.Record{
		Kind:        kind,
		ID:          id,
		Name:        req.Name,
		Vitality:    req.MaxVitality,
		MaxVitality: req.MaxVitality,
	}
	if req.Vitality != nil {
		rec.Vitality = *req.Vitality
	}
	if err := rec.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.storage.SaveActor(r.Context(), rec); err != nil {
		h.logger.Error("Failed to save actor", "actor", rec.Ref().String(), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Actor created", "actor", rec.Ref().String(), "name", rec.Name)
	writeJSON(w, h.logger, http.StatusCreated, rec)
}

func (h *ActorsHandler) handleRead(w http.ResponseWriter, r *http.Request, ref actor.Ref) {
	rec, err := h.vitality.Get(r.Context(), ref)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rec)
}

// handleVitality is the general-purpose vitality write path: damage and
// healing from sources that are not combat-aware land here, and the write
// still propagates into every active encounter holding the actor.
func (h *ActorsHandler) handleVitality(w http.ResponseWriter, r *http.Request, ref actor.Ref) {
	var req VitalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if (req.Change == nil) == (req.Set == nil) {
		writeError(w, h.logger, http.StatusBadRequest, "Exactly one of 'change' or 'set' is required")
		return
	}

	var rec *actor.Record
	var err error
	if req.Set != nil {
		rec, err = h.vitality.Set(r.Context(), ref, *req.Set)
	} else {
		rec, err = h.vitality.Adjust(r.Context(), ref, *req.Change)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rec)
}
