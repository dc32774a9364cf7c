// Package constants defines all Twitch API endpoints, client identifiers,
// GQL operation hashes, user-agent strings, PubSub topic formats, and
// default timeout/interval values used throughout the miner.
package constants

import "time"

const (
	// TwitchURL is the base Twitch web URL.
	TwitchURL = "https://www.twitch.tv"
	// PubSubURL is the Twitch PubSub WebSocket endpoint.
	PubSubURL = "wss://pubsub-edge.twitch.tv/v1"
	// GQLURL is the Twitch GraphQL API endpoint.
	GQLURL = "https://gql.twitch.tv/gql"
	// UsherURL is the Twitch HLS playlist endpoint.
	UsherURL = "https://usher.ttvnw.net"
	// DeviceCodeURL is the Twitch OAuth2 device code endpoint.
	DeviceCodeURL = "https://id.twitch.tv/oauth2/device"
	// TokenURL is the Twitch OAuth2 token endpoint.
	TokenURL = "https://id.twitch.tv/oauth2/token"
	// ValidateURL is the Twitch OAuth2 token validation endpoint.
	ValidateURL = "https://id.twitch.tv/oauth2/validate"
)

// DeviceCodeScopes are the OAuth scopes requested during device code authorization.
const DeviceCodeScopes = "channel_read chat:read user_blocks_edit user_blocks_read user_follows_edit user_read"

const (
	// ClientIDAndroid is the Twitch client ID for the Android app.
	// GQL calls made with it are exempt from the web integrity check.
	ClientIDAndroid = "kd1unb4b3q4t58fwlpcbzcbnm76a8fp"
	// ClientIDBrowser is the Twitch client ID for browser clients.
	ClientIDBrowser = "kimne78kx3ncx6brgo4mv6wki5h1ko"
)

// UserAgents maps platform and browser/app to user-agent strings.
var UserAgents = map[string]map[string]string{
	"Windows": {
		"CHROME":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"FIREFOX": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:84.0) Gecko/20100101 Firefox/84.0",
	},
	"Linux": {
		"CHROME":  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.96 Safari/537.36",
		"FIREFOX": "Mozilla/5.0 (X11; Linux x86_64; rv:85.0) Gecko/20100101 Firefox/85.0",
	},
	"Android": {
		"App": "Dalvik/2.1.0 (Linux; U; Android 7.1.2; SM-G977N Build/LMY48Z) tv.twitch.android.app/14.3.2/1403020",
	},
}

// DefaultUserAgent is the user-agent string used for API requests.
const DefaultUserAgent = "Dalvik/2.1.0 (Linux; U; Android 7.1.2; SM-G977N Build/LMY48Z) tv.twitch.android.app/14.3.2/1403020"

const (
	// MaxTopicsPerConn is the maximum number of topics per PubSub WebSocket connection.
	MaxTopicsPerConn = 50
	// MaxPubSubConns is the maximum number of PubSub WebSocket connections.
	MaxPubSubConns = 8
)

const (
	// TopicUserDropEvents is the PubSub topic for per-user drop progress events.
	TopicUserDropEvents = "user-drop-events"
	// TopicVideoPlayback is the PubSub topic for stream playback events.
	TopicVideoPlayback = "video-playback-by-id"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	// Twitch usually responds within 2-5s; retrying sooner is more
	// effective than waiting a full 30s.
	DefaultHTTPTimeout = 15 * time.Second
	// DefaultMaxRetries is the default number of retries for GQL requests.
	DefaultMaxRetries = 3

	// WatchInterval is the cadence of the per-channel mining iteration.
	WatchInterval = 59 * time.Second
	// PubSubPingInterval is the interval between PubSub PING messages.
	PubSubPingInterval = 180 * time.Second
	// PubSubPongTimeout is the timeout waiting for a PONG response.
	PubSubPongTimeout = 10 * time.Second

	// MaxExtraMinutes caps locally-accumulated watch minutes between
	// server refreshes. Past the cap the 1-second bump is suppressed
	// until the server confirms progress.
	MaxExtraMinutes = 15

	// GameCooldown suppresses autostart against a game after a fatal
	// mining failure.
	GameCooldown = 300 * time.Second
	// AutostartInterval is the cadence of idle autostart attempts.
	AutostartInterval = 2 * time.Second
	// LocalBumpInterval is the cadence of the local extra-seconds bump.
	LocalBumpInterval = 1 * time.Second
	// BackgroundInterval is the cadence of refresh, cleanup-claim and
	// priority pre-emption checks.
	BackgroundInterval = 60 * time.Second
	// MasterTickInterval drives the scheduler's periodic task dispatch.
	MasterTickInterval = 100 * time.Millisecond

	// MaxTransientErrors promotes repeated transient watch errors to a
	// fatal stop for the current watch.
	MaxTransientErrors = 10
	// DefaultGracefulShutdownTimeout is the timeout for graceful HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 5 * time.Second
)

// GQLOperation represents a persisted GQL query with its operation name and SHA256 hash.
type GQLOperation struct {
	OperationName string
	SHA256Hash string
	Query string
}

// Persisted GQL operations. The hashes identify server-side query text and
// are part of the API contract; treat them as opaque.
var (
	GQLInventory = GQLOperation{
		OperationName: "Inventory",
		SHA256Hash:    "d86775d0ef16a63a33ad52e80eaff963b2d5b72fada7c991504a57496e1d8e4b",
	}
	GQLViewerDropsDashboard = GQLOperation{
		OperationName: "ViewerDropsDashboard",
		SHA256Hash:    "5a4da2ab3d5b47c9f9ce864e727b2cb346af1e3ea8b897fe8f704a97ff017619",
	}
	GQLDropCampaignDetails = GQLOperation{
		OperationName: "DropCampaignDetails",
		SHA256Hash:    "039277bf98f3130929262cc7c6efd9c141ca3749cb6dca442fc8ead9a53f77c1",
	}
	GQLDropCurrentSessionContext = GQLOperation{
		OperationName: "DropCurrentSessionContext",
		SHA256Hash:    "4d06b702d25d652afb9ef835d2a550031f1cf762b193523a92166f40ea3d142b",
	}
	GQLDropsPageClaimDropRewards = GQLOperation{
		OperationName: "DropsPage_ClaimDropRewards",
		SHA256Hash:    "a455deea71bdc9015b78eb49f4acfbce8baa7ccbedd28e549bb025bd0f751930",
	}
	GQLPlaybackAccessToken = GQLOperation{
		OperationName: "PlaybackAccessToken",
		SHA256Hash:    "ed230aa1e33e07eebb8928504583da78a5173989fadfb1ac94be06a04f3cdbe9",
	}
	GQLDirectoryPageGame = GQLOperation{
		OperationName: "DirectoryPage_Game",
		SHA256Hash:    "98a996c3c3ebb1ba4fd65d6671c6028d7ee8d615cb540b0731b3db2a911d3649",
	}
)

// AllGQLOperations returns a slice of all defined GQL operations for iteration.
func AllGQLOperations() []GQLOperation {
	return []GQLOperation{
		GQLInventory,
		GQLViewerDropsDashboard,
		GQLDropCampaignDetails,
		GQLDropCurrentSessionContext,
		GQLDropsPageClaimDropRewards,
		GQLPlaybackAccessToken,
		GQLDirectoryPageGame,
	}
}
