package story

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/internal/services/events"
	"github.com/colborne/fable-engine/pkg/story"
)

// Service owns the per-owner story logs. Appends and compactions for the
// same owner are serialized by a keyed lock; reads go straight to storage,
// which guarantees they never see a half-rewritten log.
type Service struct {
	storage     services.Storage
	locks       *services.OwnerLocks
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewService creates a story service. The broadcaster may be nil when no
// event stream is wired (tests, console tooling).
func NewService(storage services.Storage, locks *services.OwnerLocks, broadcaster *events.Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		storage:     storage,
		locks:       locks,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Append adds one message to the end of the owner's log.
func (s *Service) Append(ctx context.Context, ownerID int, msg story.Message) error {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	if err := s.storage.AppendStoryMessage(ctx, ownerID, msg); err != nil {
		return fmt.Errorf("failed to append story message: %w", err)
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.PublishStoryAppended(ctx, ownerID, msg.Role); err != nil {
			s.logger.Warn("Failed to publish story event", "owner_id", ownerID, "error", err)
		}
	}
	return nil
}

// Window returns the most recent limit messages in chronological order.
// A non-positive limit returns the full log.
func (s *Service) Window(ctx context.Context, ownerID int, limit int) ([]story.Message, error) {
	return s.storage.ReadStoryWindow(ctx, ownerID, limit)
}

// CompactByTag replaces every message carrying tag with a single replacement
// at the position of the earliest match, and returns the number of messages
// removed. A zero count means no message carried the tag; the log is left
// untouched and no replacement is inserted.
func (s *Service) CompactByTag(ctx context.Context, ownerID int, tag string, replacement story.Message) (int, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	log, err := s.storage.ReadStoryWindow(ctx, ownerID, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to read story log for compaction: %w", err)
	}

	compacted, removed := story.CompactByTag(log, tag, replacement)
	if removed == 0 {
		s.logger.Warn("Compaction matched no messages", "owner_id", ownerID, "tag", tag)
		return 0, nil
	}

	if err := s.storage.ReplaceStory(ctx, ownerID, compacted); err != nil {
		return 0, fmt.Errorf("failed to replace story log: %w", err)
	}

	s.logger.Info("Story log compacted",
		"owner_id", ownerID,
		"tag", tag,
		"messages_removed", removed,
	)

	if s.broadcaster != nil {
		if err := s.broadcaster.PublishStoryCompacted(ctx, ownerID, tag, removed); err != nil {
			s.logger.Warn("Failed to publish compaction event", "owner_id", ownerID, "error", err)
		}
	}
	return removed, nil
}
