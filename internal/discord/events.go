package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

// voiceStateChange converts a gateway voice update. Parent categories are
// resolved from the state cache; a channel that is no longer cached has no
// parent.
func voiceStateChange(st *discordgo.State, v *discordgo.VoiceStateUpdate) vac.VoiceStateChange {
	ev := vac.VoiceStateChange{
		GuildID:          v.GuildID,
		MemberID:         v.UserID,
		CurrentChannelID: v.ChannelID,
	}
	if v.BeforeUpdate != nil {
		ev.PreviousChannelID = v.BeforeUpdate.ChannelID
	}

	member := v.Member
	if member == nil && st != nil {
		member, _ = st.Member(v.GuildID, v.UserID)
	}
	ev.MemberDisplayName = displayName(member)

	ev.PreviousParentID = parentID(st, ev.PreviousChannelID)
	ev.CurrentParentID = parentID(st, ev.CurrentChannelID)
	return ev
}

// channelDeleted converts a gateway channel deletion.
func channelDeleted(c *discordgo.ChannelDelete) vac.ChannelDeleted {
	ev := vac.ChannelDeleted{Kind: vac.ChannelKindOther}
	if c == nil || c.Channel == nil {
		return ev
	}
	ev.GuildID = c.GuildID
	ev.ChannelID = c.ID
	if c.Type == discordgo.ChannelTypeGuildVoice {
		ev.Kind = vac.ChannelKindVoice
	}
	return ev
}

// displayName prefers the guild nickname, then the global name, then the
// username.
func displayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func parentID(st *discordgo.State, channelID string) string {
	if st == nil || channelID == "" {
		return ""
	}
	ch, err := st.Channel(channelID)
	if err != nil {
		return ""
	}
	return ch.ParentID
}
