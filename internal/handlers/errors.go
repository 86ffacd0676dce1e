package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeServiceError maps domain sentinel errors to HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the detail stays in the logs.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, encounter.ErrNoActiveEncounter):
		writeError(w, logger, http.StatusNotFound, "No active encounter")
	case errors.Is(err, actor.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "Actor not found")
	case errors.Is(err, encounter.ErrCombatantNotFound):
		writeError(w, logger, http.StatusNotFound, "Combatant not found in encounter")
	case errors.Is(err, encounter.ErrDuplicateCombatant):
		writeError(w, logger, http.StatusConflict, "Combatant already present in encounter")
	case errors.Is(err, encounter.ErrProtectedCombatant):
		writeError(w, logger, http.StatusConflict, "The encounter owner cannot be removed")
	case errors.Is(err, encounter.ErrNoValidEnemies):
		writeError(w, logger, http.StatusBadRequest, "No valid combatants on enemy team")
	default:
		logger.Error("Unhandled service error", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}
