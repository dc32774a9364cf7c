package miner

import (
	"context"
	"testing"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

func dropMessage(msgType model.MessageType, data map[string]any) *model.Message {
	return &model.Message{
		Topic: constants.TopicUserDropEvents,
		Type:  msgType,
		Data:  data,
	}
}

func TestDropProgressMessageReconciles(t *testing.T) {
	m := newTestMiner(t, &fakePlatform{}, "Rust")
	drop := unclaimedDrop("d1", 10, 120)
	drop.ExtraMinutes = 2
	m.inventory.AllCampaigns = []*model.Campaign{testCampaign("c1", "Rust", drop)}

	m.handlePubSubMessage(context.Background(), dropMessage(model.MsgTypeDropProgress,
		map[string]any{"drop_id": "d1", "current_progress_min": float64(15)}))

	if drop.Self.CurrentMinutesWatched != 15 {
		t.Errorf("CurrentMinutesWatched = %d, want 15", drop.Self.CurrentMinutesWatched)
	}
	if drop.ExtraMinutes != 0 {
		t.Errorf("ExtraMinutes = %d, want reset after server caught up", drop.ExtraMinutes)
	}
}

func TestDropClaimMessageMarksClaimed(t *testing.T) {
	m := newTestMiner(t, &fakePlatform{}, "Rust")
	drop := claimableDrop("d1", "inst-1", 60)
	m.inventory.AllCampaigns = []*model.Campaign{testCampaign("c1", "Rust", drop)}

	m.handlePubSubMessage(context.Background(), dropMessage(model.MsgTypeDropClaim,
		map[string]any{"drop_instance_id": "inst-1"}))

	if !drop.Self.IsClaimed {
		t.Error("drop not marked claimed from PubSub claim event")
	}

	// replaying the same claim must be a no-op
	m.handlePubSubMessage(context.Background(), dropMessage(model.MsgTypeDropClaim,
		map[string]any{"drop_instance_id": "inst-1"}))
	if !drop.Self.IsClaimed {
		t.Error("claim flag lost on duplicate event")
	}
}

func TestStreamDownStopsCurrentWatch(t *testing.T) {
	m := newTestMiner(t, &fakePlatform{}, "Rust")
	_, cancel := context.WithCancel(context.Background())
	m.watchCancel = cancel
	m.currentChannelID = "77"

	// stream-down for a different channel is ignored
	m.handlePubSubMessage(context.Background(), &model.Message{
		Topic:   constants.TopicVideoPlayback,
		TopicID: "99",
		Type:    model.MsgTypeStreamDown,
	})
	if !m.isWatching() {
		t.Fatal("watch stopped by unrelated channel going offline")
	}

	m.handlePubSubMessage(context.Background(), &model.Message{
		Topic:   constants.TopicVideoPlayback,
		TopicID: "77",
		Type:    model.MsgTypeStreamDown,
	})
	if m.isWatching() {
		t.Error("watch still running after current channel went offline")
	}
}
