package chat

import (
	"sort"
	"strings"
	"sync"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
)

// IdentityRegistry binds connections to display identities and keeps usernames unique
// among connected users, ignoring case.
type IdentityRegistry struct {
	mu sync.RWMutex

	// byConn maps connection IDs to identities.
	byConn map[string]user.Identity

	// byName maps lowercased usernames to connection IDs.
	byName map[string]string

	avatars       *AvatarCache
	defaultAvatar string
}

func NewIdentityRegistry(avatars *AvatarCache, defaultAvatar string) *IdentityRegistry {
	return &IdentityRegistry{
		byConn:        make(map[string]user.Identity),
		byName:        make(map[string]string),
		avatars:       avatars,
		defaultAvatar: defaultAvatar,
	}
}

// Register binds name to connID, replacing any identity connID already held.
// The avatar resolves to the requested one, then the cached one, then the placeholder.
func (r *IdentityRegistry) Register(connID, name, avatar string) (user.Identity, *errs.CustomError) {
	name = strings.TrimSpace(name)
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, ok := r.byName[key]; ok && holder != connID {
		return user.Identity{}, errs.NewError(errs.ErrNameTaken, name)
	}

	if prev, ok := r.byConn[connID]; ok {
		delete(r.byName, strings.ToLower(prev.Username))
	}

	resolved := avatar
	if resolved == "" {
		if cached, ok := r.avatars.Get(name); ok && cached != "" {
			resolved = cached
		} else {
			resolved = r.defaultAvatar
		}
	}
	r.avatars.Set(name, resolved)

	ident := user.Identity{ConnID: connID, Username: name, Avatar: resolved}
	r.byConn[connID] = ident
	r.byName[key] = connID

	return ident, nil
}

// Unregister removes the identity of connID. It is safe to call more than once.
func (r *IdentityRegistry) Unregister(connID string) (user.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.byConn[connID]
	if !ok {
		return user.Identity{}, false
	}

	delete(r.byConn, connID)
	if r.byName[strings.ToLower(ident.Username)] == connID {
		delete(r.byName, strings.ToLower(ident.Username))
	}

	return ident, true
}

// LookupByName returns the connection holding name, ignoring case.
func (r *IdentityRegistry) LookupByName(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return connID, ok
}

func (r *IdentityRegistry) Get(connID string) (user.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.byConn[connID]
	return ident, ok
}

// SetAvatar updates the avatar of an identified connection.
func (r *IdentityRegistry) SetAvatar(connID, avatar string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ident, ok := r.byConn[connID]; ok {
		ident.Avatar = avatar
		r.byConn[connID] = ident
		r.avatars.Set(ident.Username, avatar)
	}
}

// Online returns the connected users sorted by username.
func (r *IdentityRegistry) Online() []user.Presence {
	r.mu.RLock()
	online := make([]user.Presence, 0, len(r.byConn))
	for _, ident := range r.byConn {
		online = append(online, ident.Presence())
	}
	r.mu.RUnlock()

	sort.Slice(online, func(i, j int) bool {
		return strings.ToLower(online[i].Username) < strings.ToLower(online[j].Username)
	})
	return online
}
