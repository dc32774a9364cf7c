package model

import "fmt"

// MiningStatus is the ephemeral snapshot of the current watch, replaced on
// every successful progress probe.
type MiningStatus struct {
	ChannelLogin    string
	GameName        string
	DropName        string
	Progress        float64
	MinutesWatched  int
	MinutesRequired int
}

// String renders the status as a single log-friendly line.
func (s MiningStatus) String() string {
	return fmt.Sprintf("%s on %s: %s %d/%d min (%.0f%%)",
		s.GameName, s.ChannelLogin, s.DropName,
		s.MinutesWatched, s.MinutesRequired, s.Progress)
}

// WatchEventType discriminates the events a watch loop publishes.
type WatchEventType string

// All watch event types. A WatchCampaignComplete or WatchFatalError is
// always the final event from a loop.
const (
	WatchStatus           WatchEventType = "STATUS"
	WatchTransientError   WatchEventType = "TRANSIENT_ERROR"
	WatchFatalError       WatchEventType = "FATAL_ERROR"
	WatchClaimed          WatchEventType = "CLAIMED"
	WatchCampaignComplete WatchEventType = "CAMPAIGN_COMPLETE"
)

// WatchEvent is a single message from a watch loop to the scheduler.
// Events from one loop are delivered in FIFO order.
type WatchEvent struct {
	Type     WatchEventType
	Status   MiningStatus // WatchStatus
	Reason   string       // WatchTransientError, WatchFatalError
	DropName string       // WatchClaimed
	GameName string       // WatchCampaignComplete
}

// WatchTarget identifies the channel a watch loop mines and carries the
// scraped telemetry endpoint plus the current playback token.
type WatchTarget struct {
	ChannelID    string
	ChannelLogin string
	BroadcastID  string
	GameName     string
	TelemetryURL string
	StreamToken  string
	StreamSig    string
}
