package chat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// BanInfo records who was banned from an address and why.
type BanInfo struct {
	Username  string    `json:"username"`
	Reason    string    `json:"reason,omitempty"`
	BannedBy  string    `json:"bannedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// ModerationSnapshot is the persisted form of the moderation state.
type ModerationSnapshot struct {
	Muted  []string           `json:"muted"`
	Banned map[string]BanInfo `json:"banned"`
}

// ModerationStore holds muted usernames and banned addresses.
type ModerationStore struct {
	mu sync.RWMutex

	// muted holds lowercased usernames.
	muted map[string]struct{}

	banned map[string]BanInfo
}

func NewModerationStore() *ModerationStore {
	return &ModerationStore{
		muted:  make(map[string]struct{}),
		banned: make(map[string]BanInfo),
	}
}

func (s *ModerationStore) IsBanned(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.banned[addr]
	return ok
}

func (s *ModerationStore) Ban(addr string, info BanInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.banned[addr] = info
}

// Unban reports whether addr was banned.
func (s *ModerationStore) Unban(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.banned[addr]
	delete(s.banned, addr)
	return ok
}

func (s *ModerationStore) IsMuted(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.muted[strings.ToLower(username)]
	return ok
}

// Mute reports whether the user was not muted before.
func (s *ModerationStore) Mute(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := s.muted[key]; ok {
		return false
	}
	s.muted[key] = struct{}{}
	return true
}

// Unmute reports whether the user was muted.
func (s *ModerationStore) Unmute(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := s.muted[key]; !ok {
		return false
	}
	delete(s.muted, key)
	return true
}

// Snapshot copies the current state with muted names sorted.
func (s *ModerationStore) Snapshot() ModerationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := ModerationSnapshot{
		Muted:  make([]string, 0, len(s.muted)),
		Banned: make(map[string]BanInfo, len(s.banned)),
	}
	for name := range s.muted {
		snap.Muted = append(snap.Muted, name)
	}
	sort.Strings(snap.Muted)
	for addr, info := range s.banned {
		snap.Banned[addr] = info
	}
	return snap
}

// Restore replaces the current state with snap.
func (s *ModerationStore) Restore(snap ModerationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.muted = make(map[string]struct{}, len(snap.Muted))
	for _, name := range snap.Muted {
		s.muted[strings.ToLower(name)] = struct{}{}
	}
	s.banned = make(map[string]BanInfo, len(snap.Banned))
	for addr, info := range snap.Banned {
		s.banned[addr] = info
	}
}
