package vac

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

// OnVoiceStateChanged runs the create decision and then the delete decision
// for one voice-state update. Create failures are reported to the member and
// logged; delete failures are only logged.
func (s *Service) OnVoiceStateChanged(ctx context.Context, ev VoiceStateChange) {
	if ev.PreviousChannelID == ev.CurrentChannelID {
		// mute, deafen, stream toggles and similar
		return
	}

	if err := s.createRoom(ctx, ev); err != nil {
		s.reportCreateFailure(ctx, ev, err)
	}

	if err := s.removeRoomIfEmpty(ctx, ev.GuildID, ev.PreviousChannelID); err != nil {
		s.sink.Error(NewNotice(KeyError, "guild", ev.GuildID, "error", err.Error()), err)
	}
}

// createRoom creates a room when the member just joined a trigger channel.
// The room is registered before the member is moved into it so a failed move
// never leaves an unowned channel behind.
func (s *Service) createRoom(ctx context.Context, ev VoiceStateChange) error {
	triggers, ok, err := s.registry.Get(ctx, ev.GuildID, TriggerChannels)
	if err != nil {
		return registryErr("get", ev.GuildID, TriggerChannels, err)
	}
	if !ok || ev.CurrentChannelID == "" || !slices.Contains(triggers, ev.CurrentChannelID) {
		return nil
	}

	name := s.RoomName(ev.MemberDisplayName, ev.MemberID)
	roomID, err := s.gateway.CreateVoiceChannel(ctx, ev.GuildID, ev.CurrentParentID, name, s.userLimit)
	if err != nil {
		return remoteErr(OpCreateChannel, ev.GuildID, "", err)
	}

	if err := s.registry.Update(ctx, ev.GuildID, AutoCreatedChannels, AppendID(roomID)); err != nil {
		return registryErr("update", ev.GuildID, AutoCreatedChannels, err)
	}

	if err := s.gateway.MoveMember(ctx, ev.GuildID, ev.MemberID, roomID); err != nil {
		return remoteErr(OpMoveMember, ev.GuildID, roomID, err)
	}

	s.sink.Info(NewNotice(KeyCreateChannel, "guild", ev.GuildID, "channel", roomID))
	return nil
}

func (s *Service) reportCreateFailure(ctx context.Context, ev VoiceStateChange, err error) {
	if ev.CurrentChannelID != "" {
		userNotice := NewNotice(KeyUserError, "error", errors.Cause(err).Error())
		if nerr := s.sink.Notify(ctx, ev.CurrentChannelID, userNotice); nerr != nil {
			s.sink.Warn(NewNotice(KeyError, "guild", ev.GuildID, "error", nerr.Error()), nerr)
		}
	}
	s.sink.Error(NewNotice(KeyError, "guild", ev.GuildID, "error", err.Error()), err)
}

// removeRoomIfEmpty deletes channelID when it is one of our rooms and nobody
// is left in it.
func (s *Service) removeRoomIfEmpty(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		return nil
	}

	rooms, ok, err := s.registry.Get(ctx, guildID, AutoCreatedChannels)
	if err != nil {
		return registryErr("get", guildID, AutoCreatedChannels, err)
	}
	if !ok || !slices.Contains(rooms, channelID) {
		return nil
	}

	// Read occupancy right before deleting; an earlier read may be stale.
	occupancy, err := s.gateway.ChannelOccupancy(ctx, guildID, channelID)
	switch {
	case errors.Is(err, ErrChannelNotFound):
		occupancy = 0
	case err != nil:
		return remoteErr(OpOccupancy, guildID, channelID, err)
	}
	if occupancy > 0 {
		return nil
	}

	return s.deleteRoom(ctx, guildID, channelID)
}

// deleteRoom removes the channel and deregisters it. Both steps are attempted
// even if the other fails.
func (s *Service) deleteRoom(ctx context.Context, guildID, channelID string) error {
	deleteErr := s.gateway.DeleteChannel(ctx, channelID)
	if errors.Is(deleteErr, ErrChannelNotFound) {
		deleteErr = nil
	}
	if deleteErr != nil {
		deleteErr = remoteErr(OpDeleteChannel, guildID, channelID, deleteErr)
	}

	var regErr error
	if err := s.registry.Update(ctx, guildID, AutoCreatedChannels, RemoveID(channelID, nil)); err != nil {
		regErr = registryErr("update", guildID, AutoCreatedChannels, err)
	}

	switch {
	case deleteErr == nil && regErr == nil:
		s.sink.Info(NewNotice(KeyDeleteChannel, "guild", guildID, "channel", channelID))
		return nil
	case deleteErr != nil && regErr == nil:
		s.sink.Warn(NewNotice(KeyDeleteMismatch, "guild", guildID, "channel", channelID, "state", "deregistered"), deleteErr)
		return deleteErr
	case deleteErr == nil:
		s.sink.Warn(NewNotice(KeyDeleteMismatch, "guild", guildID, "channel", channelID, "state", "deleted"), regErr)
		return regErr
	default:
		return deleteErr
	}
}
