package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

// RedisStorage implements the Storage interface using Redis for actors,
// encounters, and story logs.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

// GetClient exposes the underlying client for pub/sub consumers.
func (r *RedisStorage) GetClient() *redis.Client {
	return r.client
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Key layout

func actorKey(ref actor.Ref) string {
	return fmt.Sprintf("actor:%s:%d", ref.Kind, ref.ID)
}

func actorSeqKey(kind actor.Kind) string {
	return fmt.Sprintf("actor:seq:%s", kind)
}

func activeEncounterKey(ownerID int) string {
	return fmt.Sprintf("encounter:active:%d", ownerID)
}

func encounterKey(id uuid.UUID) string {
	return "encounter:" + id.String()
}

func storyKey(ownerID int) string {
	return fmt.Sprintf("story:%d", ownerID)
}

// activeOwnersKey indexes the owners of all active encounters so the
// vitality bridge can scan them without a keyspace SCAN.
const activeOwnersKey = "encounter:active_owners"

// Actor operations

func (r *RedisStorage) NextActorID(ctx context.Context, kind actor.Kind) (int, error) {
	id, err := r.client.Incr(ctx, actorSeqKey(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate actor id: %w", err)
	}
	return int(id), nil
}

func (r *RedisStorage) SaveActor(ctx context.Context, rec *actor.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error("Failed to marshal actor", "actor", rec.Ref().String(), "error", err)
		return fmt.Errorf("failed to marshal actor: %w", err)
	}

	if err := r.client.Set(ctx, actorKey(rec.Ref()), string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save actor", "actor", rec.Ref().String(), "error", err)
		return fmt.Errorf("failed to save actor: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetActor(ctx context.Context, ref actor.Ref) (*actor.Record, error) {
	data, err := r.client.Get(ctx, actorKey(ref)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load actor", "actor", ref.String(), "error", err)
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}

	var rec actor.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		r.logger.Error("Failed to unmarshal actor", "actor", ref.String(), "error", err)
		return nil, fmt.Errorf("failed to unmarshal actor: %w", err)
	}
	return &rec, nil
}

// Encounter operations

func (r *RedisStorage) CreateActiveEncounter(ctx context.Context, enc *encounter.Encounter) (bool, *encounter.Encounter, error) {
	data, err := json.Marshal(enc)
	if err != nil {
		return false, nil, fmt.Errorf("failed to marshal encounter: %w", err)
	}

	// SETNX enforces the one-active-encounter-per-owner invariant at the
	// write path; a losing racer observes created=false. The owner index is
	// updated in the same transaction so the vitality fan-out can never miss
	// a freshly created encounter. SADD on a lost race is a no-op: the owner
	// does have an active encounter, just not this one.
	created, err := r.setActiveIfAbsent(ctx, enc.OwnerID, string(data))
	if err != nil {
		r.logger.Error("Failed to create encounter", "owner_id", enc.OwnerID, "error", err)
		return false, nil, fmt.Errorf("failed to create encounter: %w", err)
	}

	if !created {
		existing, err := r.GetActiveEncounter(ctx, enc.OwnerID)
		if err != nil {
			return false, nil, err
		}
		if existing != nil {
			return false, existing, nil
		}
		// The racing encounter ended between SETNX and the read. Retry once.
		created, err = r.setActiveIfAbsent(ctx, enc.OwnerID, string(data))
		if err != nil || !created {
			return false, nil, fmt.Errorf("failed to create encounter for owner %d", enc.OwnerID)
		}
	}
	return true, nil, nil
}

func (r *RedisStorage) setActiveIfAbsent(ctx context.Context, ownerID int, data string) (bool, error) {
	var created *redis.BoolCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, activeEncounterKey(ownerID), data, 0)
		pipe.SAdd(ctx, activeOwnersKey, strconv.Itoa(ownerID))
		return nil
	})
	if err != nil {
		return false, err
	}
	return created.Val(), nil
}

func (r *RedisStorage) SaveActiveEncounter(ctx context.Context, enc *encounter.Encounter) error {
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("failed to marshal encounter: %w", err)
	}

	if err := r.client.Set(ctx, activeEncounterKey(enc.OwnerID), string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save encounter", "owner_id", enc.OwnerID, "error", err)
		return fmt.Errorf("failed to save encounter: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetActiveEncounter(ctx context.Context, ownerID int) (*encounter.Encounter, error) {
	data, err := r.client.Get(ctx, activeEncounterKey(ownerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Not in combat
		}
		r.logger.Error("Failed to load encounter", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to load encounter: %w", err)
	}

	var enc encounter.Encounter
	if err := json.Unmarshal([]byte(data), &enc); err != nil {
		r.logger.Error("Failed to unmarshal encounter", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal encounter: %w", err)
	}
	return &enc, nil
}

func (r *RedisStorage) FinalizeEncounter(ctx context.Context, enc *encounter.Encounter) error {
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("failed to marshal encounter: %w", err)
	}

	// Archive, clear the active slot, and drop the owner index together.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, encounterKey(enc.ID), string(data), 0)
		pipe.Del(ctx, activeEncounterKey(enc.OwnerID))
		pipe.SRem(ctx, activeOwnersKey, strconv.Itoa(enc.OwnerID))
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to finalize encounter", "owner_id", enc.OwnerID, "encounter_id", enc.ID.String(), "error", err)
		return fmt.Errorf("failed to finalize encounter: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	data, err := r.client.Get(ctx, encounterKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load archived encounter: %w", err)
	}

	var enc encounter.Encounter
	if err := json.Unmarshal([]byte(data), &enc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived encounter: %w", err)
	}
	return &enc, nil
}

func (r *RedisStorage) ListActiveOwners(ctx context.Context) ([]int, error) {
	members, err := r.client.SMembers(ctx, activeOwnersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active encounter owners: %w", err)
	}

	owners := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			r.logger.Warn("Skipping malformed active owner entry", "entry", m)
			continue
		}
		owners = append(owners, id)
	}
	return owners, nil
}

// Story log operations

func (r *RedisStorage) AppendStoryMessage(ctx context.Context, ownerID int, msg story.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal story message: %w", err)
	}

	if err := r.client.RPush(ctx, storyKey(ownerID), string(data)).Err(); err != nil {
		r.logger.Error("Failed to append story message", "owner_id", ownerID, "error", err)
		return fmt.Errorf("failed to append story message: %w", err)
	}
	return nil
}

func (r *RedisStorage) ReadStoryWindow(ctx context.Context, ownerID int, limit int) ([]story.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := r.client.LRange(ctx, storyKey(ownerID), start, -1).Result()
	if err != nil && err != redis.Nil {
		r.logger.Error("Failed to read story window", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to read story window: %w", err)
	}

	messages := make([]story.Message, 0, len(raw))
	for _, item := range raw {
		var msg story.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal story message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *RedisStorage) ReplaceStory(ctx context.Context, ownerID int, messages []story.Message) error {
	serialized := make([]interface{}, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal story message: %w", err)
		}
		serialized = append(serialized, string(data))
	}

	// DEL+RPUSH inside MULTI/EXEC so a concurrent LRANGE sees either the
	// old list or the new one, never a partial rewrite.
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, storyKey(ownerID))
		if len(serialized) > 0 {
			pipe.RPush(ctx, storyKey(ownerID), serialized...)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to replace story log", "owner_id", ownerID, "error", err)
		return fmt.Errorf("failed to replace story log: %w", err)
	}
	return nil
}
