package chat

import (
	"context"
	"fmt"
	"strings"

	"chatrelay/internal/app/message"
	"chatrelay/internal/app/mirror"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
)

// Administrator commands, typed as chat text starting with "/".
const (
	CommandMOTD     = "motd"
	CommandAnnounce = "announce"
	CommandMute     = "mute"
	CommandUnmute   = "unmute"
	CommandBan      = "ban"
	CommandUnban    = "unban"
	CommandKick     = "kick"
)

type commandFunc func(m *Manager, connID string, admin user.Identity, args string)

var commands = map[string]commandFunc{
	CommandMOTD:     (*Manager).cmdMOTD,
	CommandAnnounce: (*Manager).cmdAnnounce,
	CommandMute:     (*Manager).cmdMute,
	CommandUnmute:   (*Manager).cmdUnmute,
	CommandBan:      (*Manager).cmdBan,
	CommandUnban:    (*Manager).cmdUnban,
	CommandKick:     (*Manager).cmdKick,
}

// parseCommand splits "/name args" into a lowercased name and trimmed args.
func parseCommand(text string) (name, args string, ok bool) {
	rest, found := strings.CutPrefix(text, "/")
	if !found {
		return "", "", false
	}

	name, args, _ = strings.Cut(rest, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}

	return name, strings.TrimSpace(args), true
}

func isCommand(name string) bool {
	_, ok := commands[name]
	return ok
}

// isAdmin requires both the administrator username and an admin-token connection.
func (m *Manager) isAdmin(connID string, ident user.Identity) bool {
	if m.opts.AdminUsername == "" || !strings.EqualFold(ident.Username, m.opts.AdminUsername) {
		return false
	}

	conn, ok := m.connection(connID)
	return ok && conn.admin
}

func (m *Manager) executeCommand(connID string, admin user.Identity, name, args string) {
	cmd, ok := commands[name]
	if !ok {
		m.notify(connID, errs.NewError(errs.ErrUnknownCommand, "/"+name).Message)
		return
	}

	m.logger.Info().Str("command", name).Str("admin", admin.Username).Msg("Executing admin command.")
	cmd(m, connID, admin, args)
}

// targetConn resolves an online user named in a command, notifying the admin otherwise.
func (m *Manager) targetConn(connID, name string) (string, user.Identity, bool) {
	if name == "" {
		m.notify(connID, "Please name a user.")
		return "", user.Identity{}, false
	}

	target, found := m.identities.LookupByName(name)
	ident, identified := m.identities.Get(target)
	if !found || !identified {
		m.notify(connID, errs.NewError(errs.ErrCommandTargetMissing, name).Message)
		return "", user.Identity{}, false
	}

	return target, ident, true
}

func (m *Manager) cmdMOTD(connID string, admin user.Identity, args string) {
	m.setMOTD(args)

	m.persister.Enqueue("save motd", func(ctx context.Context) error {
		return m.store.UpsertConfig(ctx, ConfigKeyMOTD, args)
	})

	now := m.opts.Now()
	m.broadcastRecord(message.NewSystem("Message of the day updated: "+args, now))
	m.transport.PublishToAll(EventMOTD, args)
	m.mirrorEvent(mirror.EventMOTDUpdated, MOTDUpdate{Text: args, UpdatedBy: admin.Username, UpdatedAt: now})
}

func (m *Manager) cmdAnnounce(connID string, _ user.Identity, args string) {
	if args == "" {
		m.notify(connID, "Usage: /announce <text>")
		return
	}

	m.broadcastRecord(message.NewAnnouncement(args, m.opts.Now()))
}

func (m *Manager) cmdMute(connID string, _ user.Identity, args string) {
	_, target, ok := m.targetConn(connID, args)
	if !ok {
		return
	}

	if !m.moderation.Mute(target.Username) {
		m.notify(connID, target.Username+" is already muted.")
		return
	}

	m.persistModeration()
	m.notify(connID, target.Username+" has been muted.")
}

func (m *Manager) cmdUnmute(connID string, _ user.Identity, args string) {
	if args == "" {
		m.notify(connID, "Please name a user.")
		return
	}

	if !m.moderation.Unmute(args) {
		m.notify(connID, args+" is not muted.")
		return
	}

	m.persistModeration()
	m.notify(connID, args+" has been unmuted.")
}

func (m *Manager) cmdBan(connID string, admin user.Identity, args string) {
	name, reason, _ := strings.Cut(args, " ")

	targetID, target, ok := m.targetConn(connID, name)
	if !ok {
		return
	}

	targetConn, _ := m.connection(targetID)
	adminConn, _ := m.connection(connID)
	if targetConn.addr == adminConn.addr {
		m.notify(connID, "Refusing to ban your own address.")
		return
	}

	// Under dispatchMu a concurrent Connect from the address is either refused or
	// already listed by connsFrom.
	m.dispatchMu.Lock()
	m.moderation.Ban(targetConn.addr, BanInfo{
		Username:  target.Username,
		Reason:    strings.TrimSpace(reason),
		BannedBy:  admin.Username,
		CreatedAt: m.opts.Now(),
	})
	for _, id := range m.connsFrom(targetConn.addr) {
		m.transport.Terminate(id)
	}
	m.dispatchMu.Unlock()

	m.persistModeration()

	m.broadcastRecord(message.NewSystem(target.Username+" has been banned.", m.opts.Now()))
	m.notify(connID, fmt.Sprintf("Banned %s (address %s).", target.Username, targetConn.addr))
}

func (m *Manager) cmdUnban(connID string, _ user.Identity, args string) {
	if args == "" {
		m.notify(connID, "Usage: /unban <address>")
		return
	}

	if !m.moderation.Unban(args) {
		m.notify(connID, "Address "+args+" is not banned.")
		return
	}

	m.persistModeration()
	m.notify(connID, "Address "+args+" unbanned.")
}

func (m *Manager) cmdKick(connID string, _ user.Identity, args string) {
	targetID, target, ok := m.targetConn(connID, args)
	if !ok {
		return
	}

	m.transport.Terminate(targetID)
	m.notify(connID, target.Username+" has been kicked.")
}

func (m *Manager) connsFrom(addr string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, conn := range m.conns {
		if conn.addr == addr {
			ids = append(ids, id)
		}
	}
	return ids
}
