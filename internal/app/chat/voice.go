package chat

import (
	"sort"
	"sync"
)

// VoiceMeta is the client-supplied part of a voice-presence entry.
type VoiceMeta struct {
	PeerID string `json:"peerId"`
	Muted  bool   `json:"muted"`
}

// VoiceUser is one entry of the vc-user-list-update payload.
type VoiceUser struct {
	Username string `json:"username"`
	ConnID   string `json:"connectionId"`
	VoiceMeta
}

// VoiceRegistry tracks which connections have joined voice.
type VoiceRegistry struct {
	mu      sync.RWMutex
	entries map[string]VoiceUser
}

func NewVoiceRegistry() *VoiceRegistry {
	return &VoiceRegistry{entries: make(map[string]VoiceUser)}
}

// Join adds or updates the entry of connID.
func (v *VoiceRegistry) Join(connID, username string, meta VoiceMeta) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.entries[connID] = VoiceUser{Username: username, ConnID: connID, VoiceMeta: meta}
}

// Leave reports whether connID had an entry.
func (v *VoiceRegistry) Leave(connID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, ok := v.entries[connID]
	delete(v.entries, connID)
	return ok
}

// Rename updates the username of connID's entry and reports whether one existed.
func (v *VoiceRegistry) Rename(connID, username string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.entries[connID]
	if ok {
		entry.Username = username
		v.entries[connID] = entry
	}
	return ok
}

// Snapshot returns every entry sorted by username, then connection ID.
func (v *VoiceRegistry) Snapshot() []VoiceUser {
	v.mu.RLock()
	users := make([]VoiceUser, 0, len(v.entries))
	for _, entry := range v.entries {
		users = append(users, entry)
	}
	v.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].ConnID < users[j].ConnID
	})
	return users
}
