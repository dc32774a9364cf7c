// Package watcher runs one watch loop per chosen channel. Each iteration
// refreshes the playback token, touches the HLS playlist, sends the
// minute-watched pulse, and probes drop progress, publishing the outcome
// on its event channel.
package watcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/gql"
	"github.com/wrosek/twitch-drops-go/internal/logger"
	"github.com/wrosek/twitch-drops-go/internal/model"
	"github.com/wrosek/twitch-drops-go/internal/twitch"
)

// platformOps is the subset of GQL operations the watch loop needs.
// *gql.Client satisfies it.
type platformOps interface {
	GetPlaybackAccessToken(ctx context.Context, channelLogin string) (*gql.PlaybackAccessToken, error)
	GetCurrentSessionContext(ctx context.Context, channelLogin, channelID string) (json.RawMessage, error)
	ClaimDropRewards(ctx context.Context, dropInstanceID string) (bool, error)
}

// WatchLoop is the per-channel mining state machine. It owns no shared
// state; everything it learns flows out through Events.
type WatchLoop struct {
	ops     platformOps
	pulser  twitch.Telemetry
	scraper twitch.Scraper
	log     *logger.Logger

	target model.WatchTarget
	events chan<- model.WatchEvent

	consecutiveFailures int
	hasMinedOnce        bool
	lastClaimedDrop     string

	// timing knobs, overridable in tests
	watchInterval     time.Duration
	hlsSettleDelay    time.Duration
	probeInitialDelay time.Duration
	probeRetryDelay   time.Duration
	claimSettleDelay  time.Duration
	tokenRetryDelays  []time.Duration
}

// NewWatchLoop creates a watch loop for one target. Events are published
// on events; the loop terminates when the context is cancelled or a
// terminal outcome (fatal error, campaign complete) occurs.
func NewWatchLoop(
	ops platformOps,
	pulser twitch.Telemetry,
	scraper twitch.Scraper,
	log *logger.Logger,
	target model.WatchTarget,
	events chan<- model.WatchEvent,
) *WatchLoop {
	return &WatchLoop{
		ops:     ops,
		pulser:  pulser,
		scraper: scraper,
		log:     log,
		target:  target,
		events:  events,

		watchInterval:     constants.WatchInterval,
		hlsSettleDelay:    500 * time.Millisecond,
		probeInitialDelay: 1500 * time.Millisecond,
		probeRetryDelay:   2 * time.Second,
		claimSettleDelay:  3 * time.Second,
		tokenRetryDelays:  []time.Duration{5 * time.Second, 10 * time.Second},
	}
}

// Run executes watch iterations until the context is cancelled or the
// loop reaches a terminal state. It always returns nil on clean stop so
// errgroup siblings keep running.
func (w *WatchLoop) Run(ctx context.Context) error {
	w.log.Info("Watch loop starting",
		"channel", w.target.ChannelLogin,
		"game", w.target.GameName)

	if w.target.TelemetryURL == "" {
		url, err := w.scraper.FetchTelemetryURL(ctx, w.target.ChannelLogin)
		if err != nil {
			url = twitch.FallbackTelemetryURL(w.target.ChannelLogin)
			w.log.Warn("Telemetry URL scrape failed, using fallback",
				"channel", w.target.ChannelLogin,
				"error", err)
		}
		w.target.TelemetryURL = url
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !w.refreshToken(ctx) {
			if !w.emit(ctx, model.WatchEvent{
				Type:     model.WatchTransientError,
				Reason:   "token refresh failed",
				GameName: w.target.GameName,
			}) {
				return nil
			}
			if !w.sleep(ctx, w.watchInterval) {
				return nil
			}
			continue
		}

		if err := w.pulser.TouchHLS(ctx, w.target); err != nil {
			w.log.Debug("HLS touch failed", "channel", w.target.ChannelLogin, "error", err)
		}
		if !w.sleep(ctx, w.hlsSettleDelay) {
			return nil
		}

		if err := w.pulser.SendPulse(ctx, w.target); err != nil {
			w.log.Debug("Pulse failed", "channel", w.target.ChannelLogin, "error", err)
		}

		found, terminal := w.probeCycle(ctx)
		if terminal {
			return nil
		}

		if found {
			w.hasMinedOnce = true
			w.consecutiveFailures = 0
		} else {
			if !w.hasMinedOnce {
				w.emit(ctx, model.WatchEvent{
					Type:     model.WatchFatalError,
					Reason:   "no active drop context",
					GameName: w.target.GameName,
				})
				return nil
			}
			w.consecutiveFailures++
			if w.consecutiveFailures >= 5 {
				if !w.emit(ctx, model.WatchEvent{
					Type:     model.WatchTransientError,
					Reason:   "drop context missing for extended period",
					GameName: w.target.GameName,
				}) {
					return nil
				}
			}
		}

		if !w.sleep(ctx, w.watchInterval) {
			return nil
		}
	}
}

// refreshToken fetches a fresh playback token, retrying with backoff.
// A token is usable only when both value and signature are present.
func (w *WatchLoop) refreshToken(ctx context.Context) bool {
	attempts := len(w.tokenRetryDelays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if !w.sleep(ctx, w.tokenRetryDelays[attempt-1]) {
				return false
			}
		}

		token, err := w.ops.GetPlaybackAccessToken(ctx, w.target.ChannelLogin)
		if err != nil {
			w.log.Debug("Playback token refresh failed",
				"channel", w.target.ChannelLogin,
				"attempt", attempt+1,
				"error", err)
			continue
		}
		if token.Value == "" || token.Signature == "" {
			w.log.Debug("Playback token incomplete",
				"channel", w.target.ChannelLogin,
				"attempt", attempt+1)
			continue
		}

		w.target.StreamToken = token.Value
		w.target.StreamSig = token.Signature
		return true
	}
	return false
}

// probeCycle runs the rapid-retry drop-progress probe. It returns
// (found, terminal): found means a valid probe landed this iteration,
// terminal means the loop must return.
func (w *WatchLoop) probeCycle(ctx context.Context) (bool, bool) {
	claimedThisCycle := false
	for attempt := 0; attempt < 5; attempt++ {
		delay := w.probeRetryDelay
		if attempt == 0 {
			delay = w.probeInitialDelay
		}
		if !w.sleep(ctx, delay) {
			return false, true
		}

		raw, err := w.ops.GetCurrentSessionContext(ctx, w.target.ChannelLogin, w.target.ChannelID)
		if err != nil {
			w.log.Debug("Drop progress probe failed",
				"channel", w.target.ChannelLogin,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		probe, ok := parseProbe(raw)
		if !ok {
			continue
		}

		if probe.IsClaimed {
			// recovery for a claim the loop never saw happen
			if w.hasMinedOnce && probe.DropName != w.lastClaimedDrop {
				if !w.emit(ctx, model.WatchEvent{
					Type:     model.WatchClaimed,
					DropName: probe.DropName,
					GameName: w.target.GameName,
				}) {
					return false, true
				}
				w.lastClaimedDrop = probe.DropName
			}
			return true, false
		}

		if probe.RequiredMinutes > 0 && probe.CurrentMinutes >= probe.RequiredMinutes {
			found, terminal, retry := w.claimReadyDrop(ctx, probe)
			if retry {
				if found {
					claimedThisCycle = true
				}
				continue
			}
			return found || claimedThisCycle, terminal
		}

		progress := 0.0
		if probe.RequiredMinutes > 0 {
			progress = float64(probe.CurrentMinutes) / float64(probe.RequiredMinutes) * 100
		}
		if !w.emit(ctx, model.WatchEvent{
			Type: model.WatchStatus,
			Status: model.MiningStatus{
				ChannelLogin:    w.target.ChannelLogin,
				GameName:        w.target.GameName,
				DropName:        probe.DropName,
				Progress:        progress,
				MinutesWatched:  probe.CurrentMinutes,
				MinutesRequired: probe.RequiredMinutes,
			},
		}) {
			return false, true
		}
		return true, false
	}
	return claimedThisCycle, false
}

// claimReadyDrop claims a drop whose watch time is complete, then probes
// once more to decide between continuing on the next drop and finishing
// the campaign. Returns (found, terminal, retry); retry means the caller
// should keep probing within the same iteration.
func (w *WatchLoop) claimReadyDrop(ctx context.Context, probe *probeResult) (bool, bool, bool) {
	if probe.DropInstanceID == "" {
		// a finished drop without an instance id means the account is not
		// linked for this campaign; nothing more can be mined here
		w.emit(ctx, model.WatchEvent{
			Type:     model.WatchCampaignComplete,
			GameName: w.target.GameName,
		})
		return true, true, false
	}

	claimed, err := w.ops.ClaimDropRewards(ctx, probe.DropInstanceID)
	if err != nil || !claimed {
		w.log.Warn("Drop claim failed",
			"channel", w.target.ChannelLogin,
			"drop", probe.DropName,
			"error", err)
		return false, false, true
	}

	if !w.emit(ctx, model.WatchEvent{
		Type:     model.WatchClaimed,
		DropName: probe.DropName,
		GameName: w.target.GameName,
	}) {
		return false, true, false
	}
	w.lastClaimedDrop = probe.DropName

	// give the server a moment to roll over to the next drop
	if !w.sleep(ctx, w.claimSettleDelay) {
		return false, true, false
	}

	raw, err := w.ops.GetCurrentSessionContext(ctx, w.target.ChannelLogin, w.target.ChannelID)
	if err == nil {
		if next, ok := parseProbe(raw); ok && !next.IsClaimed && next.RequiredMinutes > 0 {
			w.log.Info("Next drop available, continuing",
				"channel", w.target.ChannelLogin,
				"drop", next.DropName)
			return true, false, true
		}
	}

	w.emit(ctx, model.WatchEvent{
		Type:     model.WatchCampaignComplete,
		GameName: w.target.GameName,
	})
	return true, true, false
}

// emit publishes an event, giving up when the context is cancelled.
// Returns false when the loop should stop.
func (w *WatchLoop) emit(ctx context.Context, ev model.WatchEvent) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *WatchLoop) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
