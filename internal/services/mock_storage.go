package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

// MockStorage is an in-memory implementation of Storage for testing.
// All values are deep-copied on the way in and out so tests cannot alias
// stored state.
type MockStorage struct {
	mu        sync.Mutex
	seq       map[actor.Kind]int
	actors    map[actor.Ref]*actor.Record
	active    map[int]*encounter.Encounter
	archived  map[uuid.UUID]*encounter.Encounter
	stories   map[int][]story.Message
	pingError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		seq:      make(map[actor.Kind]int),
		actors:   make(map[actor.Ref]*actor.Record),
		active:   make(map[int]*encounter.Encounter),
		archived: make(map[uuid.UUID]*encounter.Encounter),
		stories:  make(map[int][]story.Message),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func cloneEncounter(enc *encounter.Encounter) *encounter.Encounter {
	data, _ := json.Marshal(enc)
	var out encounter.Encounter
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *MockStorage) NextActorID(ctx context.Context, kind actor.Kind) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[kind]++
	return m.seq[kind], nil
}

func (m *MockStorage) SaveActor(ctx context.Context, rec *actor.Record) error {
	if rec == nil {
		return errors.New("actor record cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.actors[rec.Ref()] = &cp
	return nil
}

func (m *MockStorage) GetActor(ctx context.Context, ref actor.Ref) (*actor.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.actors[ref]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MockStorage) CreateActiveEncounter(ctx context.Context, enc *encounter.Encounter) (bool, *encounter.Encounter, error) {
	if enc == nil {
		return false, nil, errors.New("encounter cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.active[enc.OwnerID]; ok {
		return false, cloneEncounter(existing), nil
	}
	m.active[enc.OwnerID] = cloneEncounter(enc)
	return true, nil, nil
}

func (m *MockStorage) SaveActiveEncounter(ctx context.Context, enc *encounter.Encounter) error {
	if enc == nil {
		return errors.New("encounter cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[enc.OwnerID] = cloneEncounter(enc)
	return nil
}

func (m *MockStorage) GetActiveEncounter(ctx context.Context, ownerID int) (*encounter.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enc, ok := m.active[ownerID]
	if !ok {
		return nil, nil
	}
	return cloneEncounter(enc), nil
}

func (m *MockStorage) FinalizeEncounter(ctx context.Context, enc *encounter.Encounter) error {
	if enc == nil {
		return errors.New("encounter cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived[enc.ID] = cloneEncounter(enc)
	delete(m.active, enc.OwnerID)
	return nil
}

func (m *MockStorage) GetEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enc, ok := m.archived[id]
	if !ok {
		return nil, nil
	}
	return cloneEncounter(enc), nil
}

func (m *MockStorage) ListActiveOwners(ctx context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owners := make([]int, 0, len(m.active))
	for id := range m.active {
		owners = append(owners, id)
	}
	return owners, nil
}

func (m *MockStorage) AppendStoryMessage(ctx context.Context, ownerID int, msg story.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[ownerID] = append(m.stories[ownerID], msg)
	return nil
}

func (m *MockStorage) ReadStoryWindow(ctx context.Context, ownerID int, limit int) ([]story.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.stories[ownerID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]story.Message, len(log))
	copy(out, log)
	return out, nil
}

func (m *MockStorage) ReplaceStory(ctx context.Context, ownerID int, messages []story.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replacement := make([]story.Message, len(messages))
	copy(replacement, messages)
	m.stories[ownerID] = replacement
	return nil
}
