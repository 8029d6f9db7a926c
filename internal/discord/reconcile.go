package discord

import (
	"context"
	"strconv"
	"time"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

// runReconcileLoop reconciles every cached guild each interval until ctx is
// done. GuildCreate covers startup and reconnects; the loop catches drift
// that neither event reports.
func (b *Bot) runReconcileLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.reconcileGuilds(ctx, b.cachedGuilds())
		}
	}
}

func (b *Bot) reconcileGuilds(ctx context.Context, guildIDs []string) {
	if len(guildIDs) == 0 {
		return
	}
	b.log.Info().Int("guilds", len(guildIDs)).
		Msg(b.tr.T("log/bot/vcAutoCreation/reconcileStart", map[string]string{"count": strconv.Itoa(len(guildIDs))}))
	if err := b.vac.ReconcileAll(ctx, guildIDs, b.cfg.VacReconcileWorkers); err != nil && ctx.Err() == nil {
		b.log.Error().Err(err).Msg("Reconcile interrupted")
	}
}

// cachedGuilds returns the non-blacklisted guilds present in the state cache.
func (b *Bot) cachedGuilds() []string {
	st := b.dg.State
	st.RLock()
	defer st.RUnlock()
	ids := make([]string, 0, len(st.Guilds))
	for _, g := range st.Guilds {
		if g.Unavailable || b.isGuildBlacklisted(g.ID) {
			continue
		}
		ids = append(ids, g.ID)
	}
	return ids
}

// checkTriggerPermissions warns about trigger channels where rooms cannot
// be created.
func (b *Bot) checkTriggerPermissions(ctx context.Context, guildID string) {
	state, err := vac.LoadState(ctx, b.registry, guildID)
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to load trigger channels")
		return
	}
	for _, id := range state.TriggerChannels {
		missing := missingPermissions(b.dg.State, id)
		if len(missing) == 0 {
			continue
		}
		params := map[string]string{"guild": guildID, "channel": id, "permissions": joinPermissions(missing)}
		b.log.Warn().Str("guild", guildID).Str("channel", id).Strs("missing", missing).
			Msg(b.tr.T("log/bot/vcAutoCreation/missingPermissions", params))
	}
}
