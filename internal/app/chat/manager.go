package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/message"
	"chatrelay/internal/app/mirror"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

// Config keys read at bootstrap and written by administrator commands.
const (
	ConfigKeyMOTD       = "motd"
	ConfigKeyModeration = "moderation"
)

// Publisher mirrors events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// ObjectRemover deletes uploaded objects that are no longer referenced.
type ObjectRemover interface {
	Delete(ctx context.Context, key string) error
}

// Options tunes the Manager.
type Options struct {
	HistorySize   int
	AdminUsername string
	DefaultAvatar string
	DefaultMOTD   string

	// MOTDDelay postpones the motd event after connect. Zero sends it immediately.
	MOTDDelay time.Duration

	PersistQueueSize int
	PersistTimeout   time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Deps are the collaborators of the Manager. Store is required; Mirror and Objects may be nil.
type Deps struct {
	Transport Transport
	Store     store.Store
	Mirror    Publisher
	Objects   ObjectRemover
}

// connection is the per-connection state the Manager needs beyond the identity.
type connection struct {
	addr      string
	admin     bool
	motdTimer *time.Timer
}

// Manager is the server context: it owns every registry and routes all inbound events.
type Manager struct {
	transport Transport
	store     store.Store
	mirror    Publisher
	objects   ObjectRemover
	persister *Persister

	identities *IdentityRegistry
	avatars    *AvatarCache
	moderation *ModerationStore
	history    *HistoryBuffer
	voice      *VoiceRegistry

	opts Options

	// mu protects conns and motd.
	mu    sync.RWMutex
	conns map[string]*connection
	motd  string

	// dispatchMu makes a history mutation and its fan-out one step, so every client
	// sees broadcasts in history order.
	dispatchMu sync.Mutex

	logger zerolog.Logger
}

var _ EventHandler = (*Manager)(nil)

// NewManager constructs a Manager and starts its persistence worker.
func NewManager(deps Deps, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	avatars := NewAvatarCache()

	return &Manager{
		transport:  deps.Transport,
		store:      deps.Store,
		mirror:     deps.Mirror,
		objects:    deps.Objects,
		persister:  NewPersister(opts.PersistQueueSize, opts.PersistTimeout),
		identities: NewIdentityRegistry(avatars, opts.DefaultAvatar),
		avatars:    avatars,
		moderation: NewModerationStore(),
		history:    NewHistoryBuffer(opts.HistorySize),
		voice:      NewVoiceRegistry(),
		opts:       opts,
		conns:      make(map[string]*connection),
		motd:       opts.DefaultMOTD,
		logger:     logx.Component("Manager"),
	}
}

// Bootstrap loads history, MOTD, moderation state and avatars from the store.
// Each failure degrades to the empty default and is logged.
func (m *Manager) Bootstrap(ctx context.Context) {
	if recent, err := m.store.FindRecentBroadcasts(ctx, m.history.capacity); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load history, starting empty.")
	} else {
		for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
			recent[i], recent[j] = recent[j], recent[i]
		}
		m.history.Seed(recent)
	}

	if motd, found, err := m.store.GetConfig(ctx, ConfigKeyMOTD); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load MOTD, using default.")
	} else if found {
		m.setMOTD(motd)
	}

	if raw, found, err := m.store.GetConfig(ctx, ConfigKeyModeration); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load moderation state.")
	} else if found {
		var snap ModerationSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			m.logger.Warn().Err(err).Msg("Stored moderation state is malformed, ignoring.")
		} else {
			m.moderation.Restore(snap)
		}
	}

	if avatars, err := m.store.LoadAvatars(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load avatars.")
	} else {
		m.avatars.Seed(avatars)
	}

	m.logger.Info().
		Int("history", m.history.Len()).
		Int("muted", len(m.moderation.Snapshot().Muted)).
		Msg("Manager bootstrapped.")
}

// Shutdown stops pending MOTD timers and drains the persistence queue.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, conn := range m.conns {
		if conn.motdTimer != nil {
			conn.motdTimer.Stop()
		}
	}
	m.mu.Unlock()

	err := m.persister.Close(ctx)
	m.logger.Info().Msg("Manager shutdown complete.")
	return err
}

// MOTD returns the current message of the day.
func (m *Manager) MOTD() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.motd
}

func (m *Manager) setMOTD(text string) {
	m.mu.Lock()
	m.motd = text
	m.mu.Unlock()
}

// History returns the current history snapshot.
func (m *Manager) History() []message.Record {
	return m.history.Snapshot()
}

// Online returns the identified users.
func (m *Manager) Online() []user.Presence {
	return m.identities.Online()
}

// Connect admits a new connection from addr. attach, when non-nil, hands the connection
// to the transport inside the same critical section as the history snapshot, so the first
// event it sees is history and no broadcast is both in the snapshot and delivered live.
// Connections from banned addresses are terminated, attach is never called and Connect
// reports false.
func (m *Manager) Connect(connID, addr string, admin bool, attach func()) bool {
	conn := &connection{addr: addr, admin: admin}

	m.dispatchMu.Lock()
	if m.moderation.IsBanned(addr) {
		m.dispatchMu.Unlock()
		m.logger.Info().Str("conn_id", connID).Msg("Rejected connection from banned address.")
		m.transport.Terminate(connID)
		return false
	}

	m.mu.Lock()
	m.conns[connID] = conn
	m.mu.Unlock()

	if attach != nil {
		attach()
	}
	m.transport.PublishToOne(connID, EventHistory, m.history.Snapshot())
	m.transport.PublishToOne(connID, EventVoiceUsers, m.voice.Snapshot())
	m.dispatchMu.Unlock()

	if m.opts.MOTDDelay <= 0 {
		m.transport.PublishToOne(connID, EventMOTD, m.MOTD())
		return true
	}

	timer := time.AfterFunc(m.opts.MOTDDelay, func() {
		if m.connected(connID) {
			m.transport.PublishToOne(connID, EventMOTD, m.MOTD())
		}
	})

	m.mu.Lock()
	conn.motdTimer = timer
	m.mu.Unlock()

	return true
}

func (m *Manager) connected(connID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.conns[connID]
	return ok
}

func (m *Manager) connection(connID string) (connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[connID]
	if !ok {
		return connection{}, false
	}
	return *conn, true
}

// Disconnect releases every trace of connID. Unidentified connections leave silently.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	if conn, ok := m.conns[connID]; ok && conn.motdTimer != nil {
		conn.motdTimer.Stop()
	}
	delete(m.conns, connID)
	m.mu.Unlock()

	ident, identified := m.identities.Unregister(connID)
	if identified {
		now := m.opts.Now()

		m.broadcastRecord(message.NewSystem(ident.Username+" left the chat", now))
		m.transport.PublishToAll(EventUserStatusChange, StatusChange{Username: ident.Username, Online: false})
		m.mirrorEvent(mirror.EventPresenceLeave, ident.Presence())
		m.persistUser(ident, now)

		m.logger.Info().Str("conn_id", connID).Str("username", ident.Username).Msg("User left.")
	}

	if m.voice.Leave(connID) {
		m.broadcastVoice()
	}
}

// HandleEvent routes one inbound event.
func (m *Manager) HandleEvent(connID, event string, payload json.RawMessage) {
	if !m.connected(connID) {
		return
	}

	switch event {
	case EventSetUsername:
		m.handleSetUsername(connID, payload)
	case EventChatMessage:
		m.handleChatMessage(connID, payload)
	case EventPrivateMessage:
		m.handlePrivateMessage(connID, payload)
	case EventEditMessage:
		m.handleEditMessage(connID, payload)
	case EventDeleteMessage:
		m.handleDeleteMessage(connID, payload)
	case EventVoiceJoin:
		m.handleVoiceJoin(connID, payload)
	case EventVoiceLeave:
		if m.voice.Leave(connID) {
			m.broadcastVoice()
		}
	case EventTyping:
		m.handleTyping(connID, payload)
	default:
		m.logger.Debug().Str("conn_id", connID).Str("event", event).Msg("Ignoring unsupported event.")
	}
}

func (m *Manager) handleSetUsername(connID string, payload json.RawMessage) {
	req, err := user.ParseRequest(payload)
	if err != nil {
		m.notify(connID, errs.NewError(errs.ErrNameInvalid, user.MaxNameLength).Message)
		return
	}

	if cerr := m.checkName(connID, req.Username); cerr != nil {
		m.notify(connID, cerr.Message)
		return
	}

	if cerr := m.checkAvatar(req.Avatar); cerr != nil {
		m.notify(connID, cerr.Message)
		return
	}

	prev, renamed := m.identities.Get(connID)

	ident, cerr := m.identities.Register(connID, req.Username, req.Avatar)
	if cerr != nil {
		m.notify(connID, cerr.Message)
		return
	}

	m.transport.PublishToOne(connID, EventUsernameAccepted, ident.Presence())
	m.transport.PublishToOne(connID, EventOnlineUsers, m.identities.Online())

	now := m.opts.Now()

	switch {
	case renamed && prev.Username == ident.Username:
		// avatar refresh only
	case renamed:
		m.broadcastRecord(message.NewSystem(prev.Username+" is now known as "+ident.Username, now))
		m.transport.PublishToAll(EventUserStatusChange, StatusChange{Username: prev.Username, Online: false})
		m.transport.PublishToAll(EventUserStatusChange, StatusChange{Username: ident.Username, Online: true, Avatar: ident.Avatar})
		m.mirrorEvent(mirror.EventPresenceLeave, prev.Presence())
		m.mirrorEvent(mirror.EventPresenceJoin, ident.Presence())
		if m.voice.Rename(connID, ident.Username) {
			m.broadcastVoice()
		}
	default:
		m.broadcastRecord(message.NewSystem(ident.Username+" joined the chat", now))
		m.transport.PublishToAll(EventUserStatusChange, StatusChange{Username: ident.Username, Online: true, Avatar: ident.Avatar})
		m.mirrorEvent(mirror.EventPresenceJoin, ident.Presence())
	}

	m.persistUser(ident, now)

	m.logger.Info().Str("conn_id", connID).Str("username", ident.Username).Bool("renamed", renamed).Msg("User identified.")
}

// checkName rejects invalid and reserved names. The administrator name is reserved for
// connections that presented an admin token.
func (m *Manager) checkName(connID, name string) *errs.CustomError {
	if !user.ValidName(name) {
		return errs.NewError(errs.ErrNameInvalid, user.MaxNameLength)
	}

	if message.IsReservedSender(name) {
		return errs.NewError(errs.ErrNameReserved, name)
	}

	if m.opts.AdminUsername != "" && strings.EqualFold(name, m.opts.AdminUsername) {
		conn, _ := m.connection(connID)
		if !conn.admin {
			return errs.NewError(errs.ErrNameReserved, name)
		}
	}

	return nil
}

// sender returns the identity allowed to post from connID. Unidentified connections and
// muted users get false; mutes drop silently.
func (m *Manager) sender(connID string) (user.Identity, bool) {
	ident, ok := m.identities.Get(connID)
	if !ok {
		return user.Identity{}, false
	}

	if m.moderation.IsMuted(ident.Username) {
		m.logger.Debug().Str("username", ident.Username).Msg("Dropping message from muted user.")
		return user.Identity{}, false
	}

	return ident, true
}

// validateBody returns false after reporting the first problem with body to connID.
func (m *Manager) validateBody(connID string, body message.Body) bool {
	if len(body.Text) > MaxContentBytes {
		m.transport.PublishToOne(connID, EventError, errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
		return false
	}

	if body.Image != "" {
		if cerr := ValidateImageRef(body.Image); cerr != nil {
			m.transport.PublishToOne(connID, EventError, cerr)
			return false
		}
	}

	if cerr := m.checkAvatar(body.Avatar); cerr != nil {
		m.transport.PublishToOne(connID, EventError, cerr)
		return false
	}

	return !body.Empty()
}

// checkAvatar accepts an empty avatar, the default avatar, an upload key or an https URL.
func (m *Manager) checkAvatar(ref string) *errs.CustomError {
	if ref == "" || ref == m.opts.DefaultAvatar {
		return nil
	}
	return ValidateImageRef(ref)
}

// avatarFor resolves the avatar stamped on a record and remembers per-message overrides.
func (m *Manager) avatarFor(connID string, ident user.Identity, override string) string {
	if override == "" || override == ident.Avatar {
		return ident.Avatar
	}
	m.identities.SetAvatar(connID, override)
	return override
}

func (m *Manager) handleChatMessage(connID string, payload json.RawMessage) {
	ident, ok := m.sender(connID)
	if !ok {
		return
	}

	body, err := message.ParseBody(payload)
	if err != nil {
		m.logger.Debug().Err(err).Str("conn_id", connID).Msg("Malformed chat payload.")
		return
	}

	if !m.validateBody(connID, body) {
		return
	}

	if name, args, ok := parseCommand(body.Text); ok {
		if m.isAdmin(connID, ident) {
			m.executeCommand(connID, ident, name, args)
			return
		}
		if isCommand(name) {
			return
		}
	}

	avatar := m.avatarFor(connID, ident, body.Avatar)
	m.broadcastRecord(message.New(ident.Username, "", body, avatar, m.opts.Now()))
}

func (m *Manager) handlePrivateMessage(connID string, payload json.RawMessage) {
	ident, ok := m.sender(connID)
	if !ok {
		return
	}

	direct, err := message.ParseDirect(payload)
	if err != nil || direct.To == "" {
		m.logger.Debug().Err(err).Str("conn_id", connID).Msg("Malformed private payload.")
		return
	}

	if !m.validateBody(connID, direct.Body) {
		return
	}

	targetConn, found := m.identities.LookupByName(direct.To)
	target, identified := m.identities.Get(targetConn)
	if !found || !identified {
		m.logger.Debug().Str("from", ident.Username).Str("to", direct.To).Msg("Private message target offline, dropping.")
		return
	}

	avatar := m.avatarFor(connID, ident, direct.Avatar)
	rec := message.New(ident.Username, target.Username, direct.Body, avatar, m.opts.Now())

	m.transport.PublishToOne(targetConn, EventPrivateMessage, rec)
	if targetConn != connID {
		m.transport.PublishToOne(connID, EventPrivateMessage, rec)
	}

	key := message.NewConversationKey(ident.Username, target.Username)
	m.persister.Enqueue("save direct "+rec.ID, func(ctx context.Context) error {
		return m.store.SaveDirect(ctx, key, rec)
	})
}

func (m *Manager) handleEditMessage(connID string, payload json.RawMessage) {
	ident, ok := m.sender(connID)
	if !ok {
		return
	}

	var req EditRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return
	}
	if len(text) > MaxContentBytes {
		m.transport.PublishToOne(connID, EventError, errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
		return
	}

	m.dispatchMu.Lock()
	rec, edited := m.history.Edit(req.ID, ident.Username, text)
	if edited {
		m.transport.PublishToAll(EventMessageEdited, rec)
	}
	m.dispatchMu.Unlock()

	if !edited {
		return
	}

	m.persister.Enqueue("update broadcast "+rec.ID, func(ctx context.Context) error {
		return m.store.UpdateBroadcast(ctx, rec.ID, rec.Text)
	})
	m.mirrorEvent(mirror.EventMessageEdited, rec)
}

func (m *Manager) handleDeleteMessage(connID string, payload json.RawMessage) {
	ident, ok := m.identities.Get(connID)
	if !ok {
		return
	}

	var req DeleteRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		return
	}

	m.dispatchMu.Lock()
	rec, removed := m.history.Remove(req.ID, ident.Username)
	if removed {
		m.transport.PublishToAll(EventMessageDeleted, DeleteRequest{ID: rec.ID})
	}
	m.dispatchMu.Unlock()

	if !removed {
		return
	}

	m.persister.Enqueue("delete broadcast "+rec.ID, func(ctx context.Context) error {
		return m.store.DeleteBroadcast(ctx, rec.ID)
	})
	m.mirrorEvent(mirror.EventMessageDeleted, DeleteRequest{ID: rec.ID})

	if m.objects != nil && randx.IsValidFileKey(rec.Image, ImageKeyPrefix) {
		key := rec.Image
		m.persister.Enqueue("delete object "+key, func(ctx context.Context) error {
			return m.objects.Delete(ctx, key)
		})
	}
}

func (m *Manager) handleVoiceJoin(connID string, payload json.RawMessage) {
	ident, ok := m.identities.Get(connID)
	if !ok {
		return
	}

	var meta VoiceMeta
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &meta); err != nil {
			m.logger.Debug().Err(err).Str("conn_id", connID).Msg("Malformed voice payload.")
			return
		}
	}

	m.voice.Join(connID, ident.Username, meta)
	m.broadcastVoice()
}

func (m *Manager) handleTyping(connID string, payload json.RawMessage) {
	ident, ok := m.sender(connID)
	if !ok {
		return
	}

	var req TypingRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return
		}
	}

	notice := TypingNotice{Username: ident.Username, Active: req.Active}

	m.mu.RLock()
	targets := make([]string, 0, len(m.conns))
	for id := range m.conns {
		if id != connID {
			targets = append(targets, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range targets {
		m.transport.PublishToOne(id, EventTyping, notice)
	}
}

// broadcastRecord appends rec to history and fans it out as one step, then hands the
// durable write and the mirror publish to the persister.
func (m *Manager) broadcastRecord(rec message.Record) {
	m.dispatchMu.Lock()
	m.history.Push(rec)
	m.transport.PublishToAll(EventChatMessage, rec)
	m.dispatchMu.Unlock()

	if rec.Kind == message.KindBroadcast {
		m.persister.Enqueue("save broadcast "+rec.ID, func(ctx context.Context) error {
			return m.store.SaveBroadcast(ctx, rec)
		})
	}
	m.mirrorEvent(mirror.EventMessageCreated, rec)
}

func (m *Manager) broadcastVoice() {
	m.dispatchMu.Lock()
	m.transport.PublishToAll(EventVoiceUsers, m.voice.Snapshot())
	m.dispatchMu.Unlock()
}

// notify sends a System chat-message to connID only. It is never stored.
func (m *Manager) notify(connID, text string) {
	m.transport.PublishToOne(connID, EventChatMessage, message.NewSystem(text, m.opts.Now()))
}

func (m *Manager) mirrorEvent(eventType string, data any) {
	if m.mirror == nil {
		return
	}
	m.persister.Enqueue("mirror "+eventType, func(ctx context.Context) error {
		return m.mirror.Publish(ctx, eventType, data)
	})
}

func (m *Manager) persistUser(ident user.Identity, seen time.Time) {
	m.persister.Enqueue("upsert user "+ident.Username, func(ctx context.Context) error {
		return m.store.UpsertUser(ctx, ident.Username, ident.Avatar, seen)
	})
}

func (m *Manager) persistModeration() {
	data, err := json.Marshal(m.moderation.Snapshot())
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode moderation state.")
		return
	}

	m.persister.Enqueue("save moderation", func(ctx context.Context) error {
		return m.store.UpsertConfig(ctx, ConfigKeyModeration, string(data))
	})
}
