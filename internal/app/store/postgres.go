package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"chatrelay/internal/app/message"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Postgres stores records in PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens the pool and applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// NewPool initializes a new PostgreSQL connection pool and executes database migrations.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully.")
	return nil
}

func (p *Postgres) FindRecentBroadcasts(ctx context.Context, limit int) ([]message.Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, sender, text, image, avatar, display_time, COALESCE(reply_to::text, ''), kind, is_edited, created_at
		FROM messages
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(message.KindBroadcast), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent broadcasts: %w", err)
	}
	defer rows.Close()

	var records []message.Record
	for rows.Next() {
		var (
			rec     message.Record
			replyTo string
			kind    string
		)
		if err := rows.Scan(&rec.ID, &rec.Sender, &rec.Text, &rec.Image, &rec.Avatar,
			&rec.Time, &replyTo, &kind, &rec.IsEdited, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		if replyTo != "" {
			rec.ReplyTo = json.RawMessage(replyTo)
		}
		rec.Kind = message.Kind(kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *Postgres) SaveBroadcast(ctx context.Context, rec message.Record) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO messages (id, sender, text, image, avatar, display_time, reply_to, kind, is_edited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Sender, rec.Text, rec.Image, rec.Avatar, rec.Time,
		nullableJSON(rec.ReplyTo), string(rec.Kind), rec.IsEdited, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert broadcast %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) UpdateBroadcast(ctx context.Context, id, text string) error {
	_, err := p.pool.Exec(ctx, `UPDATE messages SET text = $2, is_edited = TRUE WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("update broadcast %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) DeleteBroadcast(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete broadcast %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) SaveDirect(ctx context.Context, key message.ConversationKey, rec message.Record) error {
	threadID, err := p.resolveThread(ctx, key)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO direct_messages (id, thread_id, sender, recipient, text, image, avatar, display_time, reply_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, threadID, rec.Sender, rec.Recipient, rec.Text, rec.Image, rec.Avatar, rec.Time,
		nullableJSON(rec.ReplyTo), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert direct message %s: %w", rec.ID, err)
	}
	return nil
}

// resolveThread finds or creates the thread for key. A concurrent creator losing the
// insert race reads back the winner's row.
func (p *Postgres) resolveThread(ctx context.Context, key message.ConversationKey) (string, error) {
	const lookup = `SELECT id FROM direct_threads WHERE user_a = $1 AND user_b = $2`

	var id string
	err := p.pool.QueryRow(ctx, lookup, key.A, key.B).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("lookup thread %s: %w", key, err)
	}

	id = randx.ThreadID()
	_, err = p.pool.Exec(ctx, `INSERT INTO direct_threads (id, user_a, user_b) VALUES ($1, $2, $3)`, id, key.A, key.B)
	if err == nil {
		return id, nil
	}
	if !IsUniqueViolation(err) {
		return "", fmt.Errorf("create thread %s: %w", key, err)
	}

	if err := p.pool.QueryRow(ctx, lookup, key.A, key.B).Scan(&id); err != nil {
		return "", fmt.Errorf("reload thread %s: %w", key, err)
	}
	return id, nil
}

func (p *Postgres) UpsertUser(ctx context.Context, username, avatar string, lastSeen time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (username_key, username, avatar, last_seen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username_key) DO UPDATE
		SET username = EXCLUDED.username, avatar = EXCLUDED.avatar, last_seen = EXCLUDED.last_seen`,
		strings.ToLower(username), username, avatar, lastSeen)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", username, err)
	}
	return nil
}

func (p *Postgres) LoadAvatars(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT username, avatar FROM users WHERE avatar <> ''`)
	if err != nil {
		return nil, fmt.Errorf("query avatars: %w", err)
	}
	defer rows.Close()

	avatars := make(map[string]string)
	for rows.Next() {
		var username, avatar string
		if err := rows.Scan(&username, &avatar); err != nil {
			return nil, fmt.Errorf("scan avatar: %w", err)
		}
		avatars[username] = avatar
	}
	return avatars, rows.Err()
}

func (p *Postgres) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM configs WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) UpsertConfig(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO configs (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
