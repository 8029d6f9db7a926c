package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/sonozaki-sz/guild-mng-bot/internal/locale"
	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

const embedColorError = 0xED4245

type messageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sink renders notices with the configured locale, logs them and posts
// user-facing errors as embeds.
type Sink struct {
	sender messageSender
	tr     *locale.Translator
	log    zerolog.Logger
}

var _ vac.Sink = (*Sink)(nil)

func NewSink(sender messageSender, tr *locale.Translator, logger zerolog.Logger) *Sink {
	return &Sink{sender: sender, tr: tr, log: logger}
}

func (s *Sink) Info(n vac.Notice) {
	s.event(s.log.Info(), n).Msg(s.tr.T(n.Key, n.Params))
}

func (s *Sink) Warn(n vac.Notice, err error) {
	s.event(s.log.Warn().Err(err), n).Msg(s.tr.T(n.Key, n.Params))
}

func (s *Sink) Error(n vac.Notice, err error) {
	s.event(s.log.Error().Stack().Err(err), n).Msg(s.tr.T(n.Key, n.Params))
}

func (s *Sink) Notify(ctx context.Context, channelID string, n vac.Notice) error {
	_, err := s.sender.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Description: s.tr.T(n.Key, n.Params),
		Color:       embedColorError,
	}, discordgo.WithContext(ctx))
	return err
}

func (s *Sink) event(e *zerolog.Event, n vac.Notice) *zerolog.Event {
	e = e.Str("key", n.Key)
	for k, v := range n.Params {
		if k == "error" {
			continue
		}
		e = e.Str(k, v)
	}
	return e
}
