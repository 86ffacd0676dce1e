package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/colborne/fable-engine/internal/combat"
	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
)

// EncounterHandler exposes the encounter tracker.
type EncounterHandler struct {
	tracker *combat.Tracker
	logger  *slog.Logger
}

func NewEncounterHandler(tracker *combat.Tracker, logger *slog.Logger) *EncounterHandler {
	return &EncounterHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// ActorRefRequest is the wire form of an actor reference.
type ActorRefRequest struct {
	Kind string `json:"kind"`
	ID   int    `json:"id"`
}

func (a ActorRefRequest) ref() (actor.Ref, error) {
	kind, err := actor.ParseKind(a.Kind)
	if err != nil {
		return actor.Ref{}, err
	}
	return actor.Ref{Kind: kind, ID: a.ID}, nil
}

type StartEncounterRequest struct {
	OwnerID     int               `json:"owner_id"`
	Description string            `json:"description,omitempty"`
	Allies      []ActorRefRequest `json:"allies,omitempty"`
	Enemies     []ActorRefRequest `json:"enemies"`
}

// StartEncounterResponse flags idempotent re-starts so a narrator can tell
// "new fight" from "already fighting".
type StartEncounterResponse struct {
	Encounter     *encounter.Encounter `json:"encounter"`
	AlreadyActive bool                 `json:"already_active"`
}

type CombatantRequest struct {
	ActorRefRequest
	Team string `json:"team,omitempty"`
}

type RemoveCombatantRequest struct {
	ActorRefRequest
	Reason string `json:"reason,omitempty"`
}

type CombatantVitalityRequest struct {
	ActorRefRequest
	VitalityRequest
}

type EndEncounterRequest struct {
	Outcome string `json:"outcome"`
	Summary string `json:"summary"`
}

type EndEncounterResponse struct {
	Encounter         *encounter.Encounter `json:"encounter"`
	MessagesCompacted int                  `json:"messages_compacted"`
}

// ServeHTTP routes encounter requests.
// Routes:
// POST /v1/encounters                            - Start encounter
// GET  /v1/encounters/{owner}                    - Read active encounter
// GET  /v1/encounters/archive/{id}               - Read ended encounter
// POST /v1/encounters/{owner}/combatants         - Add combatant
// POST /v1/encounters/{owner}/combatants/remove  - Remove combatant
// POST /v1/encounters/{owner}/vitality           - Sync combatant vitality
// POST /v1/encounters/{owner}/end                - End encounter
func (h *EncounterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/encounters"), "/")
	if rest == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleStart(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	if parts[0] == "archive" {
		if len(parts) != 2 || r.Method != http.MethodGet {
			writeError(w, h.logger, http.StatusNotFound, "Not found")
			return
		}
		h.handleReadArchived(w, r, parts[1])
		return
	}

	ownerID, err := strconv.Atoi(parts[0])
	if err != nil || ownerID < 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid owner ID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleRead(w, r, ownerID)
	case len(parts) == 2 && parts[1] == "combatants" && r.Method == http.MethodPost:
		h.handleAddCombatant(w, r, ownerID)
	case len(parts) == 3 && parts[1] == "combatants" && parts[2] == "remove" && r.Method == http.MethodPost:
		h.handleRemoveCombatant(w, r, ownerID)
	case len(parts) == 2 && parts[1] == "vitality" && r.Method == http.MethodPost:
		h.handleSyncVitality(w, r, ownerID)
	case len(parts) == 2 && parts[1] == "end" && r.Method == http.MethodPost:
		h.handleEnd(w, r, ownerID)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *EncounterHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.OwnerID < 1 {
		writeError(w, h.logger, http.StatusBadRequest, "owner_id is required")
		return
	}
	if len(req.Enemies) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "At least one enemy is required")
		return
	}

	allies, err := toRefs(req.Allies)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	enemies, err := toRefs(req.Enemies)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	enc, alreadyActive, err := h.tracker.Start(r.Context(), req.OwnerID, req.Description, allies, enemies)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if alreadyActive {
		status = http.StatusOK
	}
	writeJSON(w, h.logger, status, StartEncounterResponse{
		Encounter:     enc,
		AlreadyActive: alreadyActive,
	})
}

func toRefs(reqs []ActorRefRequest) ([]actor.Ref, error) {
	refs := make([]actor.Ref, 0, len(reqs))
	for _, a := range reqs {
		ref, err := a.ref()
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (h *EncounterHandler) handleRead(w http.ResponseWriter, r *http.Request, ownerID int) {
	enc, err := h.tracker.GetActive(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, enc)
}

func (h *EncounterHandler) handleReadArchived(w http.ResponseWriter, r *http.Request, id string) {
	enc, err := h.tracker.GetArchived(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid encounter ID format")
		return
	}
	if enc == nil {
		writeError(w, h.logger, http.StatusNotFound, "Encounter not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, enc)
}

func (h *EncounterHandler) handleAddCombatant(w http.ResponseWriter, r *http.Request, ownerID int) {
	var req CombatantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	ref, err := req.ref()
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid actor kind. Expected pc or npc.")
		return
	}
	team, err := encounter.ParseTeam(req.Team)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid team. Expected player or enemy.")
		return
	}

	enc, err := h.tracker.AddCombatant(r.Context(), ownerID, ref, team)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, enc)
}

func (h *EncounterHandler) handleRemoveCombatant(w http.ResponseWriter, r *http.Request, ownerID int) {
	var req RemoveCombatantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	ref, err := req.ref()
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid actor kind. Expected pc or npc.")
		return
	}

	enc, err := h.tracker.RemoveCombatant(r.Context(), ownerID, ref, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, enc)
}

func (h *EncounterHandler) handleSyncVitality(w http.ResponseWriter, r *http.Request, ownerID int) {
	var req CombatantVitalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	ref, err := req.ref()
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid actor kind. Expected pc or npc.")
		return
	}
	if (req.Change == nil) == (req.Set == nil) {
		writeError(w, h.logger, http.StatusBadRequest, "Exactly one of 'change' or 'set' is required")
		return
	}

	var rec *actor.Record
	if req.Set != nil {
		rec, err = h.tracker.SyncVitality(r.Context(), ownerID, ref, *req.Set)
	} else {
		rec, err = h.tracker.SyncVitalityDelta(r.Context(), ownerID, ref, *req.Change)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rec)
}

func (h *EncounterHandler) handleEnd(w http.ResponseWriter, r *http.Request, ownerID int) {
	var req EndEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Outcome == "" {
		writeError(w, h.logger, http.StatusBadRequest, "outcome is required")
		return
	}

	enc, compacted, err := h.tracker.End(r.Context(), ownerID, req.Outcome, req.Summary)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, EndEncounterResponse{
		Encounter:         enc,
		MessagesCompacted: compacted,
	})
}
