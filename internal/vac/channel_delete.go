package vac

import "context"

// OnChannelDeleted drops a deleted voice channel from whichever set holds
// it. Both sets are checked. Failures are logged only.
func (s *Service) OnChannelDeleted(ctx context.Context, ev ChannelDeleted) {
	if ev.Kind != ChannelKindVoice {
		return
	}

	if err := s.forget(ctx, ev.GuildID, TriggerChannels, ev.ChannelID, KeyDeleteTriggerChannel); err != nil {
		s.sink.Error(NewNotice(KeyError, "guild", ev.GuildID, "error", err.Error()), err)
	}
	if err := s.forget(ctx, ev.GuildID, AutoCreatedChannels, ev.ChannelID, KeyDeleteAutoCreatedChannel); err != nil {
		s.sink.Error(NewNotice(KeyError, "guild", ev.GuildID, "error", err.Error()), err)
	}
}

// forget removes channelID from field and logs key when something was
// removed.
func (s *Service) forget(ctx context.Context, guildID string, field Field, channelID, key string) error {
	var removed bool
	if err := s.registry.Update(ctx, guildID, field, RemoveID(channelID, &removed)); err != nil {
		return registryErr("update", guildID, field, err)
	}
	if removed {
		s.sink.Info(NewNotice(key, "guild", guildID, "channel", channelID))
	}
	return nil
}
