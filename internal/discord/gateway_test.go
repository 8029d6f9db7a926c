package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
	"github.com/sonozaki-sz/guild-mng-bot/pkg/retrylimit"
)

type fakeREST struct {
	create  func(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	del     func(channelID string) (*discordgo.Channel, error)
	move    func(guildID, userID string, channelID *string) error
	channel func(channelID string) (*discordgo.Channel, error)
	send    func(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
}

func (f *fakeREST) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return f.create(guildID, data)
}

func (f *fakeREST) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return f.del(channelID)
}

func (f *fakeREST) GuildMemberMove(guildID, userID string, channelID *string, _ ...discordgo.RequestOption) error {
	return f.move(guildID, userID, channelID)
}

func (f *fakeREST) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return f.channel(channelID)
}

func (f *fakeREST) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.send(channelID, embed)
}

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: http.StatusText(status)},
	}
}

func newTestState(t *testing.T) *discordgo.State {
	t.Helper()
	st := discordgo.NewState()
	require.NoError(t, st.GuildAdd(&discordgo.Guild{
		ID: "g",
		Channels: []*discordgo.Channel{
			{ID: "trigger", GuildID: "g", ParentID: "cat", Type: discordgo.ChannelTypeGuildVoice},
			{ID: "room", GuildID: "g", ParentID: "cat", Type: discordgo.ChannelTypeGuildVoice},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g", UserID: "u1", ChannelID: "room"},
			{GuildID: "g", UserID: "u2", ChannelID: "room"},
			{GuildID: "g", UserID: "u3", ChannelID: "trigger"},
		},
	}))
	return st
}

func newTestGateway(rest restClient, st *discordgo.State) *Gateway {
	return NewGateway(rest, st, GatewayOptions{
		Timeout: time.Second,
		Rate:    100,
		Retry: retrylimit.RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   time.Millisecond,
			MaxDelay:       time.Millisecond,
			RateLimitDelay: time.Millisecond,
			Multiplier:     1,
		},
		Logger: zerolog.Nop(),
	})
}

func TestCreateVoiceChannel(t *testing.T) {
	var got discordgo.GuildChannelCreateData
	rest := &fakeREST{create: func(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
		assert.Equal(t, "g", guildID)
		got = data
		return &discordgo.Channel{ID: "new"}, nil
	}}
	gw := newTestGateway(rest, newTestState(t))

	id, err := gw.CreateVoiceChannel(context.Background(), "g", "cat", "Alice's Room", 99)
	require.NoError(t, err)
	assert.Equal(t, "new", id)
	assert.Equal(t, discordgo.GuildChannelCreateData{
		Name:      "Alice's Room",
		Type:      discordgo.ChannelTypeGuildVoice,
		UserLimit: 99,
		ParentID:  "cat",
	}, got)
}

func TestCreateVoiceChannelIsNotRetried(t *testing.T) {
	calls := 0
	rest := &fakeREST{create: func(string, discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
		calls++
		return nil, restErr(http.StatusBadGateway, 0)
	}}
	gw := newTestGateway(rest, newTestState(t))

	_, err := gw.CreateVoiceChannel(context.Background(), "g", "", "room", 99)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, retrylimit.IsTransient(err))
}

func TestDeleteChannelRetriesServerErrors(t *testing.T) {
	calls := 0
	rest := &fakeREST{del: func(id string) (*discordgo.Channel, error) {
		calls++
		if calls < 3 {
			return nil, restErr(http.StatusInternalServerError, 0)
		}
		return &discordgo.Channel{ID: id}, nil
	}}
	gw := newTestGateway(rest, newTestState(t))

	require.NoError(t, gw.DeleteChannel(context.Background(), "room"))
	assert.Equal(t, 3, calls)
}

func TestDeleteChannelNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unknown channel code", restErr(http.StatusBadRequest, discordgo.ErrCodeUnknownChannel)},
		{"404", restErr(http.StatusNotFound, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			rest := &fakeREST{del: func(string) (*discordgo.Channel, error) {
				calls++
				return nil, tt.err
			}}
			gw := newTestGateway(rest, newTestState(t))

			err := gw.DeleteChannel(context.Background(), "room")
			assert.ErrorIs(t, err, vac.ErrChannelNotFound)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDeleteChannelForbiddenIsNotRetried(t *testing.T) {
	calls := 0
	rest := &fakeREST{del: func(string) (*discordgo.Channel, error) {
		calls++
		return nil, restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions)
	}}
	gw := newTestGateway(rest, newTestState(t))

	err := gw.DeleteChannel(context.Background(), "room")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vac.ErrChannelNotFound)
	assert.Equal(t, 1, calls)
}

func TestMoveMember(t *testing.T) {
	var target string
	rest := &fakeREST{move: func(guildID, userID string, channelID *string) error {
		assert.Equal(t, "g", guildID)
		assert.Equal(t, "u1", userID)
		target = *channelID
		return nil
	}}
	gw := newTestGateway(rest, newTestState(t))

	require.NoError(t, gw.MoveMember(context.Background(), "g", "u1", "room"))
	assert.Equal(t, "room", target)
}

func TestMoveMemberUnknownMemberIsNotChannelNotFound(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		channelGone bool
	}{
		{"unknown member", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember), false},
		{"bare 404", restErr(http.StatusNotFound, 0), false},
		{"unknown channel", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest := &fakeREST{move: func(string, string, *string) error { return tt.err }}
			gw := newTestGateway(rest, newTestState(t))

			err := gw.MoveMember(context.Background(), "g", "u1", "room")
			require.Error(t, err)
			assert.Equal(t, tt.channelGone, errors.Is(err, vac.ErrChannelNotFound))
		})
	}
}

func TestDeleteChannelOtherErrorCodeIsNotChannelNotFound(t *testing.T) {
	rest := &fakeREST{del: func(string) (*discordgo.Channel, error) {
		return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownGuild)
	}}
	gw := newTestGateway(rest, newTestState(t))

	err := gw.DeleteChannel(context.Background(), "room")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vac.ErrChannelNotFound)
}

func TestChannelOccupancy(t *testing.T) {
	rest := &fakeREST{channel: func(id string) (*discordgo.Channel, error) {
		if id == "uncached" {
			return &discordgo.Channel{ID: id, GuildID: "g"}, nil
		}
		return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
	}}
	gw := newTestGateway(rest, newTestState(t))
	ctx := context.Background()

	n, err := gw.ChannelOccupancy(ctx, "g", "room")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = gw.ChannelOccupancy(ctx, "g", "trigger")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = gw.ChannelOccupancy(ctx, "g", "uncached")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = gw.ChannelOccupancy(ctx, "g", "gone")
	assert.ErrorIs(t, err, vac.ErrChannelNotFound)

	_, err = gw.ChannelOccupancy(ctx, "other", "room")
	assert.ErrorIs(t, err, ErrGuildNotCached)
}

func TestChannelOccupancyFollowsVoiceUpdates(t *testing.T) {
	st := newTestState(t)
	gw := newTestGateway(&fakeREST{}, st)

	require.NoError(t, st.OnInterface(&discordgo.Session{StateEnabled: true}, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "g", UserID: "u1", ChannelID: ""},
	}))

	n, err := gw.ChannelOccupancy(context.Background(), "g", "room")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChannelExists(t *testing.T) {
	restCalls := 0
	rest := &fakeREST{channel: func(id string) (*discordgo.Channel, error) {
		restCalls++
		switch id {
		case "remote":
			return &discordgo.Channel{ID: id}, nil
		case "broken":
			return nil, restErr(http.StatusServiceUnavailable, 0)
		}
		return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
	}}
	gw := newTestGateway(rest, newTestState(t))
	ctx := context.Background()

	ok, err := gw.ChannelExists(ctx, "g", "trigger")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, restCalls)

	ok, err = gw.ChannelExists(ctx, "other", "trigger")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gw.ChannelExists(ctx, "g", "remote")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gw.ChannelExists(ctx, "g", "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	restCalls = 0
	_, err = gw.ChannelExists(ctx, "g", "broken")
	require.Error(t, err)
	assert.Equal(t, 3, restCalls)
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain, true))
	assert.NoError(t, classify(nil, true))

	var httpErr retrylimit.HTTPError
	require.ErrorAs(t, classify(restErr(http.StatusTooManyRequests, 0), true), &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode())
}
