package vac

import (
	"context"
	"slices"
)

// Field names one of the two per-guild channel id sets.
type Field string

const (
	// TriggerChannels holds the voice channels that spawn a room when joined.
	TriggerChannels Field = "vacTriggerVcIds"
	// AutoCreatedChannels holds the rooms this bot created and owns.
	AutoCreatedChannels Field = "vacChannelIds"
)

// Fields lists every registry field in a stable order.
var Fields = []Field{TriggerChannels, AutoCreatedChannels}

func (f Field) String() string { return string(f) }

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	return f == TriggerChannels || f == AutoCreatedChannels
}

// UpdateFunc receives the current ids of a field (ok reports whether the
// field has ever been written for the guild) and returns the new ids.
// Returning changed=false leaves the store untouched.
type UpdateFunc func(ids []string, ok bool) (next []string, changed bool)

// Registry is the durable per-guild store of channel id sets. Update must be
// atomic per guild: concurrent updates of the same guild never lose writes.
type Registry interface {
	Get(ctx context.Context, guildID string, field Field) (ids []string, ok bool, err error)
	Set(ctx context.Context, guildID string, field Field, ids []string) error
	Update(ctx context.Context, guildID string, field Field, fn UpdateFunc) error
}

// AppendID returns an UpdateFunc adding id to the end of the set.
func AppendID(id string) UpdateFunc {
	return func(ids []string, _ bool) ([]string, bool) {
		if slices.Contains(ids, id) {
			return ids, false
		}
		return append(slices.Clone(ids), id), true
	}
}

// RemoveID returns an UpdateFunc dropping id from the set. removed is set to
// true when the id was present.
func RemoveID(id string, removed *bool) UpdateFunc {
	return func(ids []string, ok bool) ([]string, bool) {
		i := slices.Index(ids, id)
		if !ok || i < 0 {
			return ids, false
		}
		if removed != nil {
			*removed = true
		}
		return slices.Delete(slices.Clone(ids), i, i+1), true
	}
}

// Normalize drops empty and duplicate ids while keeping the first occurrence
// order.
func Normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
