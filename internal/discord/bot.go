package discord

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/sonozaki-sz/guild-mng-bot/internal/config"
	"github.com/sonozaki-sz/guild-mng-bot/internal/locale"
	"github.com/sonozaki-sz/guild-mng-bot/internal/logging"
	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
	"github.com/sonozaki-sz/guild-mng-bot/pkg/jobmgr"
)

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	registry vac.Registry
	vac      *vac.Service
	jobs     *jobmgr.Manager
	tr       *locale.Translator
	log      zerolog.Logger
}

// StartBot starts the Discord bot and blocks until ctx is done
func StartBot(ctx context.Context, cfg *config.Config, registry vac.Registry) error {
	b := &Bot{
		cfg:      cfg,
		registry: registry,
		tr:       locale.New(cfg.Locale),
		log:      logging.Component("discord"),
	}
	if err := b.run(ctx); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

// run opens the session and serves events until ctx is done
func (b *Bot) run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	gateway := NewGateway(dg, dg.State, GatewayOptions{
		Timeout: b.cfg.GatewayTimeout,
		Rate:    b.cfg.GatewayRate,
		Logger:  logging.Component("gateway"),
	})
	b.start(ctx, gateway, NewSink(dg, b.tr, logging.Component("vac")))
	defer b.jobs.Shutdown()

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onChannelDelete)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	if b.cfg.VacReconcileInterval > 0 {
		if err := b.jobs.StartAsync("vac-reconcile", func(ctx context.Context) error {
			return b.runReconcileLoop(ctx, b.cfg.VacReconcileInterval)
		}); err != nil {
			return err
		}
	}

	<-ctx.Done()
	b.log.Info().Msg("Shutdown signal received. Cleaning up...")
	return nil
}

// start creates the job manager and the VAC service the handlers dispatch to
func (b *Bot) start(ctx context.Context, gateway vac.Gateway, sink vac.Sink) {
	b.jobs = jobmgr.NewManager(ctx, b.reportJob)
	b.vac = vac.NewService(b.registry, gateway, sink, vac.Options{
		RoomNameFormat: b.cfg.VacRoomName,
		UserLimit:      b.cfg.VacUserLimit,
		CreatedAt:      channelCreatedAt,
	})
}

// channelCreatedAt reads the creation time embedded in a channel snowflake
func channelCreatedAt(channelID string) (time.Time, bool) {
	t, err := discordgo.SnowflakeTimestamp(channelID)
	return t, err == nil
}

// configureIntents subscribes to guild topology and voice states only
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	b.dg.StateEnabled = true
	b.dg.State.TrackVoice = true
	b.dg.State.TrackChannels = true
}

// onReady leaves blacklisted guilds. Reconciliation waits for GuildCreate,
// when the guild's channels and voice states are cached.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.isGuildBlacklisted(g.ID) {
			b.leaveGuild(s, g.ID)
		}
	}
	b.log.Info().Int("guilds", len(r.Guilds)).
		Msg(b.tr.T("log/bot/ready", map[string]string{"user": r.User.Username}))
}

// onGuildCreate fires for every guild after Ready and on joins
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.isGuildBlacklisted(g.ID) {
		b.leaveGuild(s, g.ID)
		return
	}
	b.log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("Guild available")

	guildID := g.ID
	b.jobs.Go("reconcile:"+guildID, func(ctx context.Context) error {
		b.checkTriggerPermissions(ctx, guildID)
		b.reconcileGuilds(ctx, []string{guildID})
		return nil
	})
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.GuildID == "" || b.isGuildBlacklisted(v.GuildID) {
		return
	}
	ev := voiceStateChange(s.State, v)
	b.jobs.Go("voice-state:"+v.GuildID, func(ctx context.Context) error {
		b.vac.OnVoiceStateChanged(ctx, ev)
		return nil
	})
}

func (b *Bot) onChannelDelete(s *discordgo.Session, c *discordgo.ChannelDelete) {
	ev := channelDeleted(c)
	if ev.GuildID == "" || b.isGuildBlacklisted(ev.GuildID) {
		return
	}
	b.jobs.Go("channel-delete:"+ev.GuildID, func(ctx context.Context) error {
		b.vac.OnChannelDeleted(ctx, ev)
		return nil
	})
}

func (b *Bot) leaveGuild(s *discordgo.Session, guildID string) {
	b.log.Info().Str("guild", guildID).
		Msg(b.tr.T("log/bot/guildBlacklisted", map[string]string{"guild": guildID}))
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("Failed to leave guild")
	}
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

// reportJob logs failed and panicking handler tasks
func (b *Bot) reportJob(s jobmgr.Status) {
	switch s.State {
	case jobmgr.StateError:
		b.log.Error().Err(s.Err).Str("job", s.Job).Msg("Job failed")
	case jobmgr.StatePanic:
		b.log.Error().Err(s.Err).Str("job", s.Job).Bytes("stack", s.Stack).Msg("Job panicked")
	default:
		b.log.Debug().Str("job", s.Job).Str("state", string(s.State)).Msg("Job status")
	}
}
