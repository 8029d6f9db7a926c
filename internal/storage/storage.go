// Package storage persists the per-guild VAC registry in the JSON datastore.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sonozaki-sz/guild-mng-bot/internal/datastore"
	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

// Storage implements vac.Registry on top of the JSON datastore. Each guild
// is one record keyed by its id. The datastore runs in shared mode, so the
// bot and the CLI may hold the same file open and every write is on disk
// before Update returns.
type Storage struct {
	ds *datastore.Store
}

// Record is the persisted form of one guild. A nil slice means the field
// was never written.
type Record struct {
	VacTriggerVcIDs []string `json:"vacTriggerVcIds"`
	VacChannelIDs   []string `json:"vacChannelIds"`
}

// Options configures the underlying datastore.
type Options struct {
	Path        string
	BackupCount int
	Logger      zerolog.Logger
}

var _ vac.Registry = (*Storage)(nil)

// New opens (or creates) the JSON store at opts.Path.
func New(opts Options) (*Storage, error) {
	cfg := datastore.DefaultConfig(opts.Path)
	cfg.Shared = true
	cfg.BackupCount = opts.BackupCount
	cfg.Logger = opts.Logger

	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return &Storage{ds: ds}, nil
}

// Close releases the datastore.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// Guilds returns the ids of every guild with a record.
func (s *Storage) Guilds(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ds.Keys()
}

func (s *Storage) Get(ctx context.Context, guildID string, field vac.Field) ([]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, exists, err := s.ds.Get(guildID)
	if err != nil || !exists {
		return nil, false, err
	}

	record, err := decodeRecord(raw)
	if err != nil {
		return nil, false, err
	}
	ids, err := record.field(field)
	if err != nil {
		return nil, false, err
	}
	return ids, ids != nil, nil
}

func (s *Storage) Set(ctx context.Context, guildID string, field vac.Field, ids []string) error {
	return s.Update(ctx, guildID, field, func([]string, bool) ([]string, bool) {
		return ids, true
	})
}

// Update runs fn inside the datastore's atomic read-modify-write of the
// guild record.
func (s *Storage) Update(ctx context.Context, guildID string, field vac.Field, fn vac.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !field.Valid() {
		return fmt.Errorf("unknown field %q", field)
	}

	return s.ds.Update(guildID, func(raw json.RawMessage, exists bool) (json.RawMessage, error) {
		record := &Record{}
		if exists {
			var err error
			if record, err = decodeRecord(raw); err != nil {
				return nil, err
			}
		}

		current, _ := record.field(field)
		next, changed := fn(current, current != nil)
		if !changed {
			if !exists {
				return nil, nil
			}
			return raw, nil
		}

		record.setField(field, vac.Normalize(next))
		out, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("error marshalling record: %w", err)
		}
		return out, nil
	})
}

func decodeRecord(raw json.RawMessage) (*Record, error) {
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}
	return &record, nil
}

func (r *Record) field(f vac.Field) ([]string, error) {
	switch f {
	case vac.TriggerChannels:
		return r.VacTriggerVcIDs, nil
	case vac.AutoCreatedChannels:
		return r.VacChannelIDs, nil
	}
	return nil, fmt.Errorf("unknown field %q", f)
}

func (r *Record) setField(f vac.Field, ids []string) {
	switch f {
	case vac.TriggerChannels:
		r.VacTriggerVcIDs = ids
	case vac.AutoCreatedChannels:
		r.VacChannelIDs = ids
	}
}
