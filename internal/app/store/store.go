/*
Package store is the durable side of the relay: broadcast history, direct-message
threads, user avatars and configuration values.

The chat core reaches it only through the Persister queue and at bootstrap, so every
backend is best-effort from the core's point of view. Open selects the backend from
the connection string scheme.
*/
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatrelay/internal/app/message"
)

// Store is the contract every durable backend implements.
type Store interface {
	// FindRecentBroadcasts returns up to limit broadcast records, newest first.
	FindRecentBroadcasts(ctx context.Context, limit int) ([]message.Record, error)

	SaveBroadcast(ctx context.Context, rec message.Record) error

	// UpdateBroadcast replaces the text of a record and marks it edited.
	UpdateBroadcast(ctx context.Context, id, text string) error

	DeleteBroadcast(ctx context.Context, id string) error

	// SaveDirect appends rec to the thread addressed by key, creating the thread if needed.
	SaveDirect(ctx context.Context, key message.ConversationKey, rec message.Record) error

	UpsertUser(ctx context.Context, username, avatar string, lastSeen time.Time) error

	// LoadAvatars returns username -> avatar for every user with a stored avatar.
	LoadAvatars(ctx context.Context) (map[string]string, error)

	GetConfig(ctx context.Context, key string) (value string, found bool, err error)

	UpsertConfig(ctx context.Context, key, value string) error

	Close(ctx context.Context) error
}

// Open connects to the backend named by dsn:
// postgres:// or postgresql:// -> PostgreSQL, mongodb:// or mongodb+srv:// -> MongoDB,
// empty or memory:// -> in-process memory.
func Open(ctx context.Context, dsn, mongoDatabase string) (Store, error) {
	scheme, _, _ := strings.Cut(dsn, "://")

	switch strings.ToLower(scheme) {
	case "", "memory":
		return NewMemory(), nil
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn)
	case "mongodb", "mongodb+srv":
		return NewMongo(ctx, dsn, mongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}
