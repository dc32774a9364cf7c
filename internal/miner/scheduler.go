package miner

import (
	"context"
	"errors"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/model"
	"github.com/wrosek/twitch-drops-go/internal/utils"
)

// ErrNoSuitableStreams is returned by target selection when no priority
// game has a mineable campaign with a live stream.
var ErrNoSuitableStreams = errors.New("no suitable streams for any priority game")

// runScheduler is the single owner of the inventory and all mining state.
// It drains watch loop events and PubSub messages, and dispatches the
// periodic tasks on a 100ms master tick.
func (m *Miner) runScheduler(ctx context.Context) error {
	ticker := time.NewTicker(constants.MasterTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stopWatching()
			return ctx.Err()
		case ev := <-m.events:
			m.handleWatchEvent(ctx, ev)
		case msg := <-m.pubsubCh:
			m.handlePubSubMessage(ctx, msg)
		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

// tick runs each periodic task whose cadence has elapsed.
func (m *Miner) tick(ctx context.Context, now time.Time) {
	if now.Sub(m.lastBump) >= constants.LocalBumpInterval {
		m.lastBump = now
		m.bumpLocalSeconds()
	}

	if !m.isWatching() && now.Sub(m.lastAutostart) >= constants.AutostartInterval {
		m.lastAutostart = now
		m.autostart(ctx)
	}

	if m.isWatching() && now.Sub(m.lastPreempt) >= constants.BackgroundInterval {
		m.lastPreempt = now
		m.checkPreemption(ctx)
	}

	if now.Sub(m.lastRefresh) >= constants.BackgroundInterval {
		m.lastRefresh = now
		m.refreshInventory(ctx)
	}

	if now.Sub(m.lastCleanup) >= constants.BackgroundInterval {
		m.lastCleanup = now
		m.cleanupClaims(ctx)
	}
}

// bumpLocalSeconds adds one locally-accumulated second to the first
// unclaimed drop of every priority-game campaign, keeping countdowns
// smooth between server progress reports.
func (m *Miner) bumpLocalSeconds() {
	for _, game := range m.settings.PriorityGames {
		for _, c := range m.inventory.CampaignsForGame(game) {
			if d := c.FirstUnclaimedDrop(); d != nil {
				d.Bump()
			}
		}
	}
}

// autostart picks the best mineable target and starts a watch loop on it.
func (m *Miner) autostart(ctx context.Context) {
	m.failedAttempts.Expire()

	target, err := m.selectTarget(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSuitableStreams) {
			m.log.Debug("No suitable streams, retrying")
		} else {
			m.log.Warn("Target selection failed", "error", err)
		}
		return
	}

	m.startWatching(ctx, target)
}

// selectTarget walks the priority games in order and returns the first
// live stream of a game with a mineable campaign.
func (m *Miner) selectTarget(ctx context.Context) (model.WatchTarget, error) {
	for _, game := range m.settings.PriorityGames {
		if m.failedAttempts.OnCooldown(game) {
			continue
		}
		if !m.gameMineable(game) {
			continue
		}

		streams, err := m.gql.GetDirectoryStreams(ctx, utils.Slugify(game), 5)
		if err != nil {
			m.log.Debug("Directory query failed", "game", game, "error", err)
			continue
		}

		for _, s := range streams {
			if s.BroadcasterLogin == "" || s.BroadcasterID == "" || s.StreamID == "" {
				continue
			}
			return model.WatchTarget{
				ChannelID:    s.BroadcasterID,
				ChannelLogin: s.BroadcasterLogin,
				BroadcastID:  s.StreamID,
				GameName:     game,
			}, nil
		}
	}
	return model.WatchTarget{}, ErrNoSuitableStreams
}

// gameMineable reports whether any active campaign for the game still has
// something to mine. Campaigns whose drop details have not been fetched
// yet count as mineable; the background refresh fills them in.
func (m *Miner) gameMineable(game string) bool {
	for _, c := range m.inventory.CampaignsForGame(game) {
		if p, known := c.Progress(); known && p >= 1 {
			continue
		}
		if c.IsCompleted() {
			continue
		}
		return true
	}
	return false
}

// checkPreemption stops the current watch when a strictly higher-priority
// game has a mineable campaign and a live stream. Autostart picks up the
// higher-priority game within 2 seconds.
func (m *Miner) checkPreemption(ctx context.Context) {
	game := m.currentAttemptGame
	if m.miningStatus != nil {
		game = m.miningStatus.GameName
	}
	current := gameIndex(m.settings.PriorityGames, game)

	for i, candidate := range m.settings.PriorityGames {
		if i >= current {
			break
		}
		if m.failedAttempts.OnCooldown(candidate) {
			continue
		}
		if !m.gameMineable(candidate) {
			continue
		}

		streams, err := m.gql.GetDirectoryStreams(ctx, utils.Slugify(candidate), 1)
		if err != nil {
			m.log.Debug("Pre-emption directory query failed",
				"game", candidate, "error", err)
			continue
		}
		if len(streams) == 0 {
			continue
		}

		m.log.Info("Switching to higher priority game",
			"game", candidate, "was", game)
		m.stopWatching()
		return
	}
}

// refreshInventory pulls the campaign dashboard and the user's inventory,
// folds them into the in-memory model and fetches drop details for
// priority campaigns the dashboard knows no drops for.
func (m *Miner) refreshInventory(ctx context.Context) {
	campaigns, err := m.gql.GetDropsDashboard(ctx)
	if err != nil {
		m.log.Warn("Campaign dashboard fetch failed", "error", err)
		return
	}
	m.inventory.IngestAllCampaigns(campaigns)

	inProgress, eventDrops, err := m.gql.GetDropsInventory(ctx)
	if err != nil {
		m.log.Warn("Inventory fetch failed", "error", err)
		return
	}
	m.inventory.IngestInventory(inProgress, eventDrops)

	var missing []string
	for _, c := range m.inventory.PrioritizedCampaigns(m.settings.PriorityGames, m.settings.ExcludedGames) {
		if len(c.Drops) == 0 {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) > 0 {
		details, err := m.gql.GetDropCampaignDetailsBatch(ctx, missing, m.auth.Username())
		if err != nil {
			m.log.Debug("Campaign details fetch failed",
				"campaigns", len(missing), "error", err)
		} else {
			for id, drops := range details {
				m.inventory.MergeCampaignDetails(id, drops)
			}
		}
	}

	if m.isWatching() {
		m.log.Debug("Inventory refreshed",
			"campaigns", len(m.inventory.SubscribedCampaigns()))
	} else {
		m.log.Info("Inventory refreshed",
			"campaigns", len(m.inventory.SubscribedCampaigns()),
			"in_progress", len(inProgress))
	}
	m.updateSnapshot()
}

// cleanupClaims sweeps the inventory for drops the server confirms as
// claimable and claims each one, spaced 500ms apart. The same instance id
// can surface on both the dashboard and the inventory list, so instances
// already seen in this sweep are skipped.
func (m *Miner) cleanupClaims(ctx context.Context) {
	seen := make(map[string]struct{})
	for _, c := range m.inventory.SubscribedCampaigns() {
		for _, d := range c.Drops {
			if !d.CanClaim() {
				continue
			}
			instanceID := d.Self.DropInstanceID
			if _, dup := seen[instanceID]; dup {
				continue
			}
			seen[instanceID] = struct{}{}

			claimed, err := m.gql.ClaimDropRewards(ctx, instanceID)
			if err != nil {
				m.log.Warn("Cleanup claim failed",
					"drop", d.Name, "error", err)
				continue
			}
			if claimed {
				m.inventory.MarkDropClaimed(d.ID)
				m.log.Event(ctx, model.EventDropClaim, "Claimed "+d.Name,
					"drop", d.Name,
					"campaign", c.Name)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(m.claimSpacing):
			}
		}
	}
}
