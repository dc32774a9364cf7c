package miner

import (
	"context"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

// handleWatchEvent applies one watch loop event to the mining state.
// Runs on the scheduler goroutine only.
func (m *Miner) handleWatchEvent(ctx context.Context, ev model.WatchEvent) {
	switch ev.Type {
	case model.WatchStatus:
		s := ev.Status
		bar := ""
		if d := m.inventory.FindDropByName(s.DropName); d != nil {
			d.ReconcileServerMinutes(s.MinutesWatched)
			bar = d.ProgressBar()
		}
		m.miningStatus = &s
		m.hasLiveStream = true
		m.currentAttemptGame = ""
		m.transientErrors = 0
		m.log.Event(ctx, model.EventDropStatus, s.String(),
			"channel", s.ChannelLogin,
			"game", s.GameName,
			"drop", s.DropName,
			"progress", bar)
		m.updateSnapshot()

	case model.WatchTransientError:
		m.transientErrors++
		m.log.Warn("Transient mining error",
			"reason", ev.Reason,
			"count", m.transientErrors)
		if m.transientErrors >= constants.MaxTransientErrors {
			m.log.Error("Too many transient errors, stopping watch",
				"game", ev.GameName)
			m.transientErrors = 0
			m.stopWatching()
		}

	case model.WatchFatalError:
		game := m.currentAttemptGame
		if m.miningStatus != nil {
			game = m.miningStatus.GameName
		}
		if game == "" {
			game = ev.GameName
		}
		m.hasLiveStream = false
		if game != "" {
			m.failedAttempts.Record(game)
		}
		m.transientErrors = 0
		m.log.Warn("Fatal mining error, cooling down game",
			"game", game,
			"reason", ev.Reason)
		m.stopWatching()

	case model.WatchClaimed:
		if d := m.inventory.FindDropByName(ev.DropName); d != nil {
			m.inventory.MarkDropClaimed(d.ID)
		}
		m.logClaim(ctx, ev.DropName, ev.GameName)

	case model.WatchCampaignComplete:
		m.log.Event(ctx, model.EventCampaignComplete, "Campaign complete",
			"game", ev.GameName)
		m.stopWatching()
	}
}

func (m *Miner) logClaim(ctx context.Context, dropName, gameName string) {
	m.log.Event(ctx, model.EventDropClaim, "Claimed "+dropName,
		"drop", dropName,
		"game", gameName)
	m.updateSnapshot()
}

// HandlePubSubMessage implements the [pubsub.MessageHandler] interface.
// It forwards the message to the scheduler goroutine, which owns all
// mining state.
func (m *Miner) HandlePubSubMessage(ctx context.Context, msg *model.Message) {
	select {
	case m.pubsubCh <- msg:
	case <-ctx.Done():
	}
}

// handlePubSubMessage applies one PubSub message to the mining state.
// Runs on the scheduler goroutine only.
func (m *Miner) handlePubSubMessage(ctx context.Context, msg *model.Message) {
	if msg == nil {
		return
	}

	switch msg.Topic {
	case constants.TopicUserDropEvents:
		m.handleDropEvent(ctx, msg)
	case constants.TopicVideoPlayback:
		m.handlePlaybackEvent(ctx, msg)
	default:
		m.log.Debug("Unhandled PubSub topic",
			"topic", msg.Topic, "type", string(msg.Type))
	}

	// Allow GC to collect the raw JSON map now that all data is extracted.
	msg.RawMessage = nil
}

func (m *Miner) handleDropEvent(ctx context.Context, msg *model.Message) {
	switch msg.Type {
	case model.MsgTypeDropProgress:
		dropID := msg.DropID()
		if dropID == "" {
			return
		}
		if d := m.inventory.FindDropByID(dropID); d != nil {
			d.ReconcileServerMinutes(msg.CurrentProgressMin())
			m.log.Debug("Drop progress from PubSub",
				"drop", d.Name,
				"minutes", msg.CurrentProgressMin())
		}

	case model.MsgTypeDropClaim:
		instanceID := msg.DropInstanceID()
		if instanceID == "" {
			return
		}
		if d := m.inventory.FindDropByInstanceID(instanceID); d != nil && !d.Self.IsClaimed {
			m.inventory.MarkDropClaimed(d.ID)
			m.logClaim(ctx, d.Name, "")
		}

	default:
		m.log.Debug("Unhandled drop event type", "type", string(msg.Type))
	}
}

func (m *Miner) handlePlaybackEvent(ctx context.Context, msg *model.Message) {
	if msg.Type != model.MsgTypeStreamDown {
		return
	}
	if m.currentChannelID == "" || msg.TopicID != m.currentChannelID {
		return
	}

	m.log.Event(ctx, model.EventStreamerOffline, "Stream went offline",
		"channel_id", msg.TopicID)
	m.stopWatching()
}
