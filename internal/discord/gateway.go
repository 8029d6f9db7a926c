package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
	"github.com/sonozaki-sz/guild-mng-bot/pkg/retrylimit"
)

// restClient is the subset of *discordgo.Session the bot calls over REST.
type restClient interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberMove(guildID string, userID string, channelID *string, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ restClient = (*discordgo.Session)(nil)

// ErrGuildNotCached is returned by topology queries for guilds the gateway
// has not delivered yet.
var ErrGuildNotCached = errors.New("guild not in state cache")

// GatewayOptions tunes the REST facade.
type GatewayOptions struct {
	Timeout time.Duration // per call, retries included
	Rate    float64       // initial requests per second
	Retry   retrylimit.RetryConfig
	Logger  zerolog.Logger
}

// Gateway implements vac.Gateway over a discordgo session. Topology queries
// are answered from the session state, which discordgo updates before
// dispatching the event that triggered them.
type Gateway struct {
	rest    restClient
	state   *discordgo.State
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
	timeout time.Duration
	log     zerolog.Logger
}

var _ vac.Gateway = (*Gateway)(nil)

// NewGateway creates a Gateway.
func NewGateway(rest restClient, state *discordgo.State, opts GatewayOptions) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retrylimit.DefaultRetryConfig()
	}
	g := &Gateway{
		rest:    rest,
		state:   state,
		limiter: retrylimit.NewAdaptiveLimiter(rate.Limit(opts.Rate), 1, rate.Limit(opts.Rate*4), 0.5, 0.5),
		retry:   opts.Retry,
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
	g.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		g.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying Discord call")
	}
	return g
}

// CreateVoiceChannel is attempted once: a retried create could leave a
// duplicate room behind.
func (g *Gateway) CreateVoiceChannel(ctx context.Context, guildID, parentID, name string, userLimit int) (string, error) {
	var id string
	err := g.call(ctx, false, false, func(opts ...discordgo.RequestOption) error {
		ch, err := g.rest.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:      name,
			Type:      discordgo.ChannelTypeGuildVoice,
			UserLimit: userLimit,
			ParentID:  parentID,
		}, opts...)
		if err != nil {
			return err
		}
		id = ch.ID
		return nil
	})
	return id, err
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	return g.call(ctx, true, true, func(opts ...discordgo.RequestOption) error {
		_, err := g.rest.ChannelDelete(channelID, opts...)
		return err
	})
}

func (g *Gateway) MoveMember(ctx context.Context, guildID, memberID, channelID string) error {
	return g.call(ctx, true, false, func(opts ...discordgo.RequestOption) error {
		return g.rest.GuildMemberMove(guildID, memberID, &channelID, opts...)
	})
}

// ChannelOccupancy counts the cached voice states pointing at channelID.
func (g *Gateway) ChannelOccupancy(ctx context.Context, guildID, channelID string) (int, error) {
	guild, err := g.state.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrGuildNotCached, guildID)
	}

	if _, err := g.state.Channel(channelID); err != nil {
		exists, err := g.lookupChannel(ctx, channelID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, vac.ErrChannelNotFound
		}
	}

	g.state.RLock()
	defer g.state.RUnlock()
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			n++
		}
	}
	return n, nil
}

// ChannelExists checks the state cache first and asks the API on a miss.
func (g *Gateway) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	if ch, err := g.state.Channel(channelID); err == nil {
		return ch.GuildID == "" || ch.GuildID == guildID, nil
	}
	return g.lookupChannel(ctx, channelID)
}

func (g *Gateway) lookupChannel(ctx context.Context, channelID string) (bool, error) {
	err := g.call(ctx, true, true, func(opts ...discordgo.RequestOption) error {
		_, err := g.rest.Channel(channelID, opts...)
		return err
	})
	if errors.Is(err, vac.ErrChannelNotFound) {
		return false, nil
	}
	return err == nil, err
}

// call runs fn under the per-call timeout and the shared limiter.
// channelPath marks requests whose URL names the channel itself, where a
// bare 404 can only mean the channel is gone.
func (g *Gateway) call(ctx context.Context, retry, channelPath bool, fn func(opts ...discordgo.RequestOption) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := g.retry
	if !retry {
		cfg.MaxAttempts = 1
	}
	return retrylimit.Do(ctx, g.limiter, cfg, func(ctx context.Context) error {
		return classify(fn(discordgo.WithContext(ctx)), channelPath)
	})
}

// restError exposes a discordgo REST failure's status code to retrylimit.
type restError struct {
	err *discordgo.RESTError
}

func (e *restError) Error() string { return e.err.Error() }
func (e *restError) Unwrap() error { return e.err }

func (e *restError) StatusCode() int {
	if e.err.Response == nil {
		return 0
	}
	return e.err.Response.StatusCode
}

// classify maps unknown-channel responses to vac.ErrChannelNotFound and
// wraps other REST failures so their status code is visible to retries.
func classify(err error, channelPath bool) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if isUnknownChannel(rest, channelPath) {
		return retrylimit.Permanent(fmt.Errorf("%w: %s", vac.ErrChannelNotFound, rest.Error()))
	}
	return &restError{err: rest}
}

// isUnknownChannel matches the Unknown Channel error code. A 404 without
// that code (Unknown Member on a move, for one) counts only for requests
// addressed to the channel itself.
func isUnknownChannel(err *discordgo.RESTError, channelPath bool) bool {
	if err.Message != nil && err.Message.Code != 0 {
		return err.Message.Code == discordgo.ErrCodeUnknownChannel
	}
	return channelPath && err.Response != nil && err.Response.StatusCode == http.StatusNotFound
}
