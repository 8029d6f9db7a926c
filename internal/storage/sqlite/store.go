// Package sqlite provides a SQLite-backed VAC registry.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

const schema = `CREATE TABLE IF NOT EXISTS vac_registry (
	guild_id    TEXT    NOT NULL,
	field       TEXT    NOT NULL,
	channel_ids TEXT    NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (guild_id, field)
)`

// Store persists registry fields as JSON arrays, one row per guild and field.
type Store struct {
	sqlDB *sql.DB
	locks guildLocks
}

var _ vac.Registry = (*Store)(nil)

// Open opens a SQLite registry and creates its schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Guilds returns every guild with at least one stored field.
func (s *Store) Guilds(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT guild_id FROM vac_registry ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	defer rows.Close()

	var guilds []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		guilds = append(guilds, id)
	}
	return guilds, rows.Err()
}

func (s *Store) Get(ctx context.Context, guildID string, field vac.Field) ([]string, bool, error) {
	return get(ctx, s.sqlDB, guildID, field)
}

func (s *Store) Set(ctx context.Context, guildID string, field vac.Field, ids []string) error {
	return s.Update(ctx, guildID, field, func([]string, bool) ([]string, bool) {
		return ids, true
	})
}

// Update serializes writers of the same guild in-process and runs the
// read-modify-write inside an immediate transaction.
func (s *Store) Update(ctx context.Context, guildID string, field vac.Field, fn vac.UpdateFunc) error {
	if !field.Valid() {
		return fmt.Errorf("unknown field %q", field)
	}

	unlock := s.locks.lock(guildID)
	defer unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, ok, err := get(ctx, tx, guildID, field)
	if err != nil {
		return err
	}
	next, changed := fn(current, ok)
	if !changed {
		return nil
	}

	encoded, err := json.Marshal(vac.Normalize(next))
	if err != nil {
		return fmt.Errorf("encode channel ids: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO vac_registry (guild_id, field, channel_ids, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (guild_id, field) DO UPDATE SET
		   channel_ids = excluded.channel_ids,
		   updated_at = excluded.updated_at`,
		guildID, string(field), string(encoded), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, guildID string, field vac.Field) ([]string, bool, error) {
	var encoded string
	err := q.QueryRowContext(ctx,
		`SELECT channel_ids FROM vac_registry WHERE guild_id = ? AND field = ?`,
		guildID, string(field),
	).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", field, err)
	}

	ids := []string{}
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", field, err)
	}
	return ids, true, nil
}

// guildLocks hands out one mutex per guild. An entry lives only while some
// writer holds or waits for it.
type guildLocks struct {
	mu    sync.Mutex
	locks map[string]*guildLock
}

type guildLock struct {
	sync.Mutex
	refs int
}

func (g *guildLocks) lock(guildID string) func() {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = make(map[string]*guildLock)
	}
	l, ok := g.locks[guildID]
	if !ok {
		l = &guildLock{}
		g.locks[guildID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		g.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(g.locks, guildID)
		}
		g.mu.Unlock()
	}
}

// size reports how many guilds currently have a lock entry.
func (g *guildLocks) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
