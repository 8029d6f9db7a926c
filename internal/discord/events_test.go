package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

func TestVoiceStateChange(t *testing.T) {
	st := newTestState(t)

	ev := voiceStateChange(st, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{
			GuildID:   "g",
			UserID:    "u1",
			ChannelID: "trigger",
			Member: &discordgo.Member{
				Nick: "Ali",
				User: &discordgo.User{ID: "u1", Username: "alice"},
			},
		},
		BeforeUpdate: &discordgo.VoiceState{GuildID: "g", UserID: "u1", ChannelID: "room"},
	})

	assert.Equal(t, vac.VoiceStateChange{
		GuildID:           "g",
		MemberID:          "u1",
		MemberDisplayName: "Ali",
		PreviousChannelID: "room",
		CurrentChannelID:  "trigger",
		PreviousParentID:  "cat",
		CurrentParentID:   "cat",
	}, ev)
}

func TestVoiceStateChangeLeaving(t *testing.T) {
	ev := voiceStateChange(newTestState(t), &discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{GuildID: "g", UserID: "u1"},
		BeforeUpdate: &discordgo.VoiceState{GuildID: "g", UserID: "u1", ChannelID: "deleted"},
	})

	assert.Equal(t, "deleted", ev.PreviousChannelID)
	assert.Empty(t, ev.CurrentChannelID)
	assert.Empty(t, ev.PreviousParentID)
	assert.Empty(t, ev.MemberDisplayName)
}

func TestVoiceStateChangeFirstJoin(t *testing.T) {
	ev := voiceStateChange(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "g", UserID: "u1", ChannelID: "trigger"},
	})

	assert.Empty(t, ev.PreviousChannelID)
	assert.Equal(t, "trigger", ev.CurrentChannelID)
	assert.Empty(t, ev.CurrentParentID)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		member *discordgo.Member
		want   string
	}{
		{"nil", nil, ""},
		{"nick", &discordgo.Member{Nick: "n", User: &discordgo.User{GlobalName: "g", Username: "u"}}, "n"},
		{"global name", &discordgo.Member{User: &discordgo.User{GlobalName: "g", Username: "u"}}, "g"},
		{"username", &discordgo.Member{User: &discordgo.User{Username: "u"}}, "u"},
		{"no user", &discordgo.Member{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.member))
		})
	}
}

func TestChannelDeleted(t *testing.T) {
	voice := channelDeleted(&discordgo.ChannelDelete{Channel: &discordgo.Channel{
		ID: "c", GuildID: "g", Type: discordgo.ChannelTypeGuildVoice,
	}})
	assert.Equal(t, vac.ChannelDeleted{GuildID: "g", ChannelID: "c", Kind: vac.ChannelKindVoice}, voice)

	text := channelDeleted(&discordgo.ChannelDelete{Channel: &discordgo.Channel{
		ID: "c", GuildID: "g", Type: discordgo.ChannelTypeGuildText,
	}})
	assert.Equal(t, vac.ChannelKindOther, text.Kind)

	stage := channelDeleted(&discordgo.ChannelDelete{Channel: &discordgo.Channel{
		ID: "c", GuildID: "g", Type: discordgo.ChannelTypeGuildStageVoice,
	}})
	assert.Equal(t, vac.ChannelKindOther, stage.Kind)

	assert.Equal(t, vac.ChannelDeleted{}, channelDeleted(&discordgo.ChannelDelete{}))
}

func TestPermissionNames(t *testing.T) {
	assert.Nil(t, permissionNames(discordgo.PermissionAdministrator))
	assert.Nil(t, permissionNames(discordgo.PermissionViewChannel|discordgo.PermissionManageChannels|discordgo.PermissionVoiceMoveMembers))
	assert.Equal(t, []string{"ManageChannels", "MoveMembers"}, permissionNames(discordgo.PermissionViewChannel))
	assert.Equal(t, "ViewChannel, ManageChannels, MoveMembers", joinPermissions(permissionNames(0)))
}
