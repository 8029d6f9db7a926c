package vac

import (
	"context"
	"errors"
)

// ErrChannelNotFound is returned by a Gateway when the channel no longer
// exists on the platform.
var ErrChannelNotFound = errors.New("channel not found")

// Gateway is the only path to the platform: it creates, deletes and moves
// into channels and answers topology queries. Implementations enforce their
// own timeouts and pacing.
type Gateway interface {
	// CreateVoiceChannel creates a voice channel under parentID (may be
	// empty) and returns its id.
	CreateVoiceChannel(ctx context.Context, guildID, parentID, name string, userLimit int) (string, error)
	// DeleteChannel returns ErrChannelNotFound if the channel is already gone.
	DeleteChannel(ctx context.Context, channelID string) error
	MoveMember(ctx context.Context, guildID, memberID, channelID string) error
	// ChannelOccupancy returns the live number of members connected to the
	// channel.
	ChannelOccupancy(ctx context.Context, guildID, channelID string) (int, error)
	ChannelExists(ctx context.Context, guildID, channelID string) (bool, error)
}
