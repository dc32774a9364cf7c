package model

// Event represents a miner event type for notification filtering and logging.
type Event string

// All supported miner events.
const (
	EventDropClaim        Event = "DROP_CLAIM"
	EventDropStatus       Event = "DROP_STATUS"
	EventCampaignComplete Event = "CAMPAIGN_COMPLETE"
	EventMinerStarted     Event = "MINER_STARTED"
	EventMinerStopped     Event = "MINER_STOPPED"
	EventStreamerOnline   Event = "STREAMER_ONLINE"
	EventStreamerOffline  Event = "STREAMER_OFFLINE"
	EventTest             Event = "TEST"
)

// AllEvents returns a slice of all defined events.
func AllEvents() []Event {
	return []Event{
		EventDropClaim,
		EventDropStatus,
		EventCampaignComplete,
		EventMinerStarted,
		EventMinerStopped,
		EventStreamerOnline,
		EventStreamerOffline,
		EventTest,
	}
}

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent converts a string to an Event. Returns empty string if invalid.
func ParseEvent(s string) Event {
	for _, e := range AllEvents() {
		if string(e) == s {
			return e
		}
	}
	return ""
}
