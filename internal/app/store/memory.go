package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chatrelay/internal/app/message"
)

type memoryUser struct {
	username string
	avatar   string
	lastSeen time.Time
}

// Memory keeps everything in process memory. It backs development runs without a
// database and the package tests of its consumers.
type Memory struct {
	mu sync.RWMutex

	broadcasts []message.Record
	direct     map[message.ConversationKey][]message.Record
	users      map[string]memoryUser
	configs    map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		direct:  make(map[message.ConversationKey][]message.Record),
		users:   make(map[string]memoryUser),
		configs: make(map[string]string),
	}
}

func (m *Memory) FindRecentBroadcasts(_ context.Context, limit int) ([]message.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]message.Record, 0, len(m.broadcasts))
	for _, rec := range m.broadcasts {
		if rec.Kind == message.KindBroadcast {
			sorted = append(sorted, rec)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *Memory) SaveBroadcast(_ context.Context, rec message.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.broadcasts {
		if existing.ID == rec.ID {
			return nil
		}
	}
	m.broadcasts = append(m.broadcasts, rec)
	return nil
}

func (m *Memory) UpdateBroadcast(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.broadcasts {
		if m.broadcasts[i].ID == id {
			m.broadcasts[i].Text = text
			m.broadcasts[i].IsEdited = true
		}
	}
	return nil
}

func (m *Memory) DeleteBroadcast(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.broadcasts[:0]
	for _, rec := range m.broadcasts {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	m.broadcasts = kept
	return nil
}

func (m *Memory) SaveDirect(_ context.Context, key message.ConversationKey, rec message.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.direct[key] = append(m.direct[key], rec)
	return nil
}

func (m *Memory) UpsertUser(_ context.Context, username, avatar string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[strings.ToLower(username)] = memoryUser{username: username, avatar: avatar, lastSeen: lastSeen}
	return nil
}

func (m *Memory) LoadAvatars(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avatars := make(map[string]string, len(m.users))
	for _, u := range m.users {
		if u.avatar != "" {
			avatars[u.username] = u.avatar
		}
	}
	return avatars, nil
}

func (m *Memory) GetConfig(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.configs[key]
	return value, ok, nil
}

func (m *Memory) UpsertConfig(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[key] = value
	return nil
}

func (m *Memory) Close(context.Context) error {
	return nil
}

// Broadcasts returns every stored broadcast in insertion order.
func (m *Memory) Broadcasts() []message.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]message.Record(nil), m.broadcasts...)
}

// DirectThread returns the records stored under key in insertion order.
func (m *Memory) DirectThread(key message.ConversationKey) []message.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]message.Record(nil), m.direct[key]...)
}

// LastSeen returns the stored last-seen instant of username.
func (m *Memory) LastSeen(username string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[strings.ToLower(username)]
	return u.lastSeen, ok
}
