package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	storysvc "github.com/colborne/fable-engine/internal/story"
	"github.com/colborne/fable-engine/pkg/story"
)

// StoryHandler exposes the tagged narrative log.
type StoryHandler struct {
	stories      *storysvc.Service
	defaultLimit int
	logger       *slog.Logger
}

func NewStoryHandler(stories *storysvc.Service, defaultLimit int, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		stories:      stories,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

type AppendMessageRequest struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type StoryWindowResponse struct {
	Messages []story.Message `json:"messages"`
}

type CompactRequest struct {
	Tag     string   `json:"tag"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type CompactResponse struct {
	MessagesCompacted int `json:"messages_compacted"`
}

// ServeHTTP routes story log requests.
// Routes:
// GET  /v1/story/{owner}          - Read recent messages (?limit=N)
// POST /v1/story/{owner}          - Append a message
// POST /v1/story/{owner}/compact  - Compact messages by tag
func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/story"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	ownerID, err := strconv.Atoi(parts[0])
	if err != nil || ownerID < 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid owner ID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleWindow(w, r, ownerID)
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.handleAppend(w, r, ownerID)
	case len(parts) == 2 && parts[1] == "compact" && r.Method == http.MethodPost:
		h.handleCompact(w, r, ownerID)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *StoryHandler) handleWindow(w http.ResponseWriter, r *http.Request, ownerID int) {
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.stories.Window(r.Context(), ownerID, limit)
	if err != nil {
		h.logger.Error("Failed to read story window", "owner_id", ownerID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, StoryWindowResponse{Messages: messages})
}

func (h *StoryHandler) handleAppend(w http.ResponseWriter, r *http.Request, ownerID int) {
	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Role != story.RoleNarrator && req.Role != story.RolePlayer {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid role. Expected narrator or player.")
		return
	}
	if req.Content == "" {
		writeError(w, h.logger, http.StatusBadRequest, "content is required")
		return
	}

	msg := story.NewMessage(req.Role, req.Content, req.Tags)
	if err := h.stories.Append(r.Context(), ownerID, msg); err != nil {
		h.logger.Error("Failed to append story message", "owner_id", ownerID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, msg)
}

func (h *StoryHandler) handleCompact(w http.ResponseWriter, r *http.Request, ownerID int) {
	var req CompactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Tag == "" {
		writeError(w, h.logger, http.StatusBadRequest, "tag is required")
		return
	}

	replacement := story.NewMessage(story.RoleNarrator, req.Content, req.Tags)
	compacted, err := h.stories.CompactByTag(r.Context(), ownerID, req.Tag, replacement)
	if err != nil {
		h.logger.Error("Failed to compact story log", "owner_id", ownerID, "tag", req.Tag, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, CompactResponse{MessagesCompacted: compacted})
}
