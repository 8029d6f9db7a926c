package vac

import (
	"context"
	"errors"
	"slices"
)

// ErrRoleConflict is returned when a channel would hold both roles.
var ErrRoleConflict = errors.New("channel is already registered as an auto-created room")

// GuildState is a snapshot of a guild's registry entry.
type GuildState struct {
	GuildID             string
	TriggerChannels     []string
	AutoCreatedChannels []string
	Configured          bool
}

// AddTrigger registers channelID as a trigger channel. Adding an existing
// trigger is a no-op and reports added=false.
func AddTrigger(ctx context.Context, reg Registry, guildID, channelID string) (added bool, err error) {
	if guildID == "" || channelID == "" {
		return false, errors.New("guild id and channel id are required")
	}

	rooms, _, err := reg.Get(ctx, guildID, AutoCreatedChannels)
	if err != nil {
		return false, registryErr("get", guildID, AutoCreatedChannels, err)
	}
	if slices.Contains(rooms, channelID) {
		return false, ErrRoleConflict
	}

	err = reg.Update(ctx, guildID, TriggerChannels, func(ids []string, ok bool) ([]string, bool) {
		next, changed := AppendID(channelID)(ids, ok)
		added = changed
		return next, changed
	})
	if err != nil {
		return false, registryErr("update", guildID, TriggerChannels, err)
	}
	return added, nil
}

// RemoveTrigger deregisters a trigger channel.
func RemoveTrigger(ctx context.Context, reg Registry, guildID, channelID string) (removed bool, err error) {
	if err := reg.Update(ctx, guildID, TriggerChannels, RemoveID(channelID, &removed)); err != nil {
		return false, registryErr("update", guildID, TriggerChannels, err)
	}
	return removed, nil
}

// LoadState reads both sets of a guild.
func LoadState(ctx context.Context, reg Registry, guildID string) (GuildState, error) {
	st := GuildState{GuildID: guildID}

	triggers, okT, err := reg.Get(ctx, guildID, TriggerChannels)
	if err != nil {
		return st, registryErr("get", guildID, TriggerChannels, err)
	}
	rooms, okR, err := reg.Get(ctx, guildID, AutoCreatedChannels)
	if err != nil {
		return st, registryErr("get", guildID, AutoCreatedChannels, err)
	}

	st.TriggerChannels = triggers
	st.AutoCreatedChannels = rooms
	st.Configured = okT || okR
	return st, nil
}
