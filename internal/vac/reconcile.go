package vac

import (
	"context"
	"errors"

	"github.com/sonozaki-sz/guild-mng-bot/pkg/util"
)

// Reconcile brings a guild's registry back in line with the live channel
// topology after a period in which notifications may have been missed:
// vanished triggers and rooms are deregistered and empty rooms are deleted.
// Rooms inside the grace period are never deleted here; their members may
// not have arrived yet.
func (s *Service) Reconcile(ctx context.Context, guildID string) error {
	var errs []error

	triggers, _, err := s.registry.Get(ctx, guildID, TriggerChannels)
	if err != nil {
		return registryErr("get", guildID, TriggerChannels, err)
	}
	for _, id := range triggers {
		exists, err := s.gateway.ChannelExists(ctx, guildID, id)
		if err != nil {
			errs = append(errs, remoteErr(OpLookup, guildID, id, err))
			continue
		}
		if !exists {
			if err := s.forget(ctx, guildID, TriggerChannels, id, KeyDeleteTriggerChannel); err != nil {
				errs = append(errs, err)
			}
		}
	}

	rooms, _, err := s.registry.Get(ctx, guildID, AutoCreatedChannels)
	if err != nil {
		return errors.Join(append(errs, registryErr("get", guildID, AutoCreatedChannels, err))...)
	}
	for _, id := range rooms {
		exists, err := s.gateway.ChannelExists(ctx, guildID, id)
		if err != nil {
			errs = append(errs, remoteErr(OpLookup, guildID, id, err))
			continue
		}
		if !exists {
			if err := s.forget(ctx, guildID, AutoCreatedChannels, id, KeyDeleteAutoCreatedChannel); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if s.isFresh(id) {
			continue
		}
		if err := s.removeRoomIfEmpty(ctx, guildID, id); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ReconcileAll reconciles guilds with at most workers running at once.
// Per-guild failures are logged and do not stop the others.
func (s *Service) ReconcileAll(ctx context.Context, guildIDs []string, workers int) error {
	return util.Parallel(ctx, guildIDs, workers, func(ctx context.Context, guildID string) error {
		if err := s.Reconcile(ctx, guildID); err != nil {
			s.sink.Error(NewNotice(KeyError, "guild", guildID, "error", err.Error()), err)
		}
		return ctx.Err()
	})
}
