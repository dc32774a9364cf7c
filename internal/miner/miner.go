// Package miner implements the mining supervisor for a single Twitch
// account. It wires together authentication, the GQL client, the telemetry
// pulser, PubSub, notifications and the per-channel watch loop, and runs
// the scheduler that decides what to mine next.
package miner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wrosek/twitch-drops-go/internal/auth"
	"github.com/wrosek/twitch-drops-go/internal/config"
	"github.com/wrosek/twitch-drops-go/internal/gql"
	"github.com/wrosek/twitch-drops-go/internal/logger"
	"github.com/wrosek/twitch-drops-go/internal/model"
	"github.com/wrosek/twitch-drops-go/internal/notify"
	"github.com/wrosek/twitch-drops-go/internal/pubsub"
	"github.com/wrosek/twitch-drops-go/internal/twitch"
	"github.com/wrosek/twitch-drops-go/internal/watcher"
)

// platform is the subset of GQL operations the scheduler and its watch
// loops use. *gql.Client satisfies it.
type platform interface {
	GetDropsDashboard(ctx context.Context) ([]*model.Campaign, error)
	GetDropsInventory(ctx context.Context) ([]*model.Campaign, []model.EventDrop, error)
	GetDropCampaignDetailsBatch(ctx context.Context, campaignIDs []string, channelLogin string) (map[string][]*model.Drop, error)
	GetDirectoryStreams(ctx context.Context, slug string, limit int) ([]gql.DirectoryStream, error)
	ClaimDropRewards(ctx context.Context, dropInstanceID string) (bool, error)
	GetPlaybackAccessToken(ctx context.Context, channelLogin string) (*gql.PlaybackAccessToken, error)
	GetCurrentSessionContext(ctx context.Context, channelLogin, channelID string) (json.RawMessage, error)
}

// Miner orchestrates all mining activity for a single Twitch account.
// It implements the [pubsub.MessageHandler] interface so the PubSub pool
// can route messages directly to it.
//
// The inventory and all mining state are owned by the scheduler goroutine;
// other goroutines reach them only through channels or the Snapshot copy.
type Miner struct {
	cfg      *config.AccountConfig
	settings *config.Settings
	log      *logger.Logger
	onCode   auth.OnCodeFunc

	auth    *auth.Authenticator
	gql     platform
	scraper twitch.Scraper
	pulser  twitch.Telemetry
	pubsub  *pubsub.Pool
	notify  *notify.Dispatcher

	running atomic.Bool

	inventory      *model.Inventory
	failedAttempts *model.FailedGameAttempts

	// current watch, scheduler-owned
	watchCancel        context.CancelFunc
	events             chan model.WatchEvent
	miningStatus       *model.MiningStatus
	currentAttemptGame string
	currentChannelID   string
	hasLiveStream      bool
	transientErrors    int

	pubsubCh chan *model.Message

	// task cadence bookkeeping
	lastBump      time.Time
	lastAutostart time.Time
	lastPreempt   time.Time
	lastRefresh   time.Time
	lastCleanup   time.Time

	claimSpacing time.Duration

	snapshotMu sync.RWMutex
	snapshot   Snapshot
}

// Snapshot is a read-only view of the miner state for the analytics server.
type Snapshot struct {
	Account       string              `json:"account"`
	Mining        bool                `json:"mining"`
	Live          bool                `json:"live"`
	Status        *model.MiningStatus `json:"status,omitempty"`
	NextDrop      string              `json:"next_drop,omitempty"`
	NextGame      string              `json:"next_game,omitempty"`
	CampaignCount int                 `json:"campaign_count"`
	ClaimedDrops  int                 `json:"claimed_drops"`
	TotalDrops    int                 `json:"total_drops"`
	GamesOnHold   int                 `json:"games_on_hold"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewMiner creates a new Miner. onCode is invoked with the device code
// when an interactive login is required.
func NewMiner(cfg *config.AccountConfig, settings *config.Settings, log *logger.Logger, onCode auth.OnCodeFunc) *Miner {
	return &Miner{
		cfg:            cfg,
		settings:       settings,
		log:            log,
		onCode:         onCode,
		inventory:      &model.Inventory{},
		failedAttempts: model.NewFailedGameAttempts(),
		pubsubCh:       make(chan *model.Message, 64),
		claimSpacing:   500 * time.Millisecond,
	}
}

// IsRunning reports whether the miner is currently running its main loop.
func (m *Miner) IsRunning() bool {
	return m.running.Load()
}

// Username returns the account username for this miner.
func (m *Miner) Username() string {
	return m.cfg.Username
}

// Run is the main entry point. It performs the full lifecycle:
//  1. Login (restoring a persisted session when possible)
//  2. Build the GQL client, telemetry pulser and channel page scraper
//  3. Wire notifications into the logger
//  4. Subscribe to the user's drop-events PubSub topic
//  5. Initial campaign and inventory fetch
//  6. Run the PubSub pool and the scheduler until the context is cancelled
func (m *Miner) Run(ctx context.Context) error {
	defer m.running.Store(false)

	startTime := time.Now()
	m.log.Info("🚀 Starting miner", "account", m.cfg.Username)

	m.auth = auth.NewAuthenticator(m.settings.AuthPath, m.log, nil)
	m.auth.Init(ctx)
	if err := m.auth.Login(ctx, m.onCode); err != nil {
		return fmt.Errorf("login failed for %s: %w", m.cfg.Username, err)
	}
	m.log.Info("🔑 Logged in", "user", m.auth.Username())

	proxy := ""
	if m.settings.ProxyURL != nil {
		proxy = *m.settings.ProxyURL
	}
	gqlClient, err := gql.NewClient(m.auth, m.log, proxy)
	if err != nil {
		return fmt.Errorf("creating GQL client: %w", err)
	}
	m.gql = gqlClient
	m.scraper = twitch.NewClient(m.auth, gqlClient, m.log)
	m.pulser = twitch.NewPulser(gqlClient.HTTPClient(), m.auth, m.log)

	if m.settings.NotificationsEnabled {
		m.notify = notify.NewDispatcher(m.cfg.Notifications, m.log)
		if m.notify.HasNotifiers() {
			m.log.SetNotifyFunc(m.notify.NotifyFunc())
		}
	}

	m.pubsub = pubsub.NewPool(m.auth, m.log, m)
	userTopic := model.NewUserTopic(model.PubSubTopicUserDropEvents, m.auth.UserID())
	if err := m.pubsub.Subscribe(ctx, []*model.PubSubTopic{userTopic}); err != nil {
		return fmt.Errorf("subscribing to drop events: %w", err)
	}

	m.refreshInventory(ctx)
	now := time.Now()
	m.lastRefresh = now
	m.lastCleanup = now

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.pubsub.Run(ctx)
	})

	g.Go(func() error {
		return m.runScheduler(ctx)
	})

	m.running.Store(true)

	m.log.Event(ctx, model.EventMinerStarted, "Miner started",
		"account", m.cfg.Username,
		"priority_games", len(m.settings.PriorityGames),
		"campaigns", len(m.inventory.SubscribedCampaigns()),
		"pubsub_conns", m.pubsub.ConnectionCount(),
		"startup_duration", time.Since(startTime).Round(time.Millisecond),
	)

	err = g.Wait()
	m.pubsub.Close()

	m.log.Event(context.WithoutCancel(ctx), model.EventMinerStopped, "Miner stopped",
		"account", m.cfg.Username)

	return err
}

// isWatching reports whether a watch loop is currently running.
func (m *Miner) isWatching() bool {
	return m.watchCancel != nil
}

// startWatching launches a watch loop for the target and subscribes to the
// channel's playback topic so stream-down events reach the scheduler.
func (m *Miner) startWatching(ctx context.Context, target model.WatchTarget) {
	watchCtx, cancel := context.WithCancel(ctx)
	m.watchCancel = cancel
	m.currentAttemptGame = target.GameName
	m.currentChannelID = target.ChannelID
	m.events = make(chan model.WatchEvent, 16)

	loop := watcher.NewWatchLoop(m.gql, m.pulser, m.scraper, m.log, target, m.events)
	go func() {
		_ = loop.Run(watchCtx)
	}()

	if m.pubsub != nil {
		topic := model.NewChannelTopic(model.PubSubTopicVideoPlayback, target.ChannelID)
		if err := m.pubsub.Subscribe(ctx, []*model.PubSubTopic{topic}); err != nil {
			m.log.Warn("Failed to subscribe to playback topic",
				"channel", target.ChannelLogin, "error", err)
		}
	}

	m.log.Info("⛏️ Mining started",
		"game", target.GameName,
		"channel", target.ChannelLogin)
	m.updateSnapshot()
}

// stopWatching cancels the current watch loop and clears all per-watch
// state. The loop observes the cancellation at its next publish or sleep
// and returns on its own; no further events from it are consumed because
// the events channel reference is dropped here.
func (m *Miner) stopWatching() {
	if m.watchCancel == nil {
		return
	}
	m.watchCancel()
	m.watchCancel = nil
	m.events = nil

	if m.currentChannelID != "" && m.pubsub != nil {
		if err := m.pubsub.UnsubscribeChannel(m.currentChannelID); err != nil {
			m.log.Debug("Playback topic unsubscribe failed",
				"channel_id", m.currentChannelID, "error", err)
		}
	}
	m.currentChannelID = ""
	m.hasLiveStream = false
	m.miningStatus = nil
	m.currentAttemptGame = ""
	m.updateSnapshot()
}

// Snapshot returns a copy of the current miner state. Safe to call from
// any goroutine.
func (m *Miner) Snapshot() Snapshot {
	m.snapshotMu.RLock()
	defer m.snapshotMu.RUnlock()
	return m.snapshot
}

// updateSnapshot publishes the scheduler-owned state for outside readers.
func (m *Miner) updateSnapshot() {
	var claimed, total int
	for _, c := range m.inventory.SubscribedCampaigns() {
		for _, d := range c.Drops {
			total++
			if d.IsClaimed() {
				claimed++
			}
		}
	}

	var status *model.MiningStatus
	if m.miningStatus != nil {
		s := *m.miningStatus
		status = &s
	}

	var nextDrop, nextGame string
	if c, d := m.inventory.FirstUnclaimedDrop(m.settings.PriorityGames, m.settings.ExcludedGames); d != nil {
		nextDrop = d.Name
		nextGame = c.Game.String()
	}

	m.snapshotMu.Lock()
	m.snapshot = Snapshot{
		Account:       m.cfg.Username,
		Mining:        m.isWatching(),
		Live:          m.hasLiveStream,
		Status:        status,
		NextDrop:      nextDrop,
		NextGame:      nextGame,
		CampaignCount: len(m.inventory.SubscribedCampaigns()),
		ClaimedDrops:  claimed,
		TotalDrops:    total,
		GamesOnHold:   m.failedAttempts.Len(),
		UpdatedAt:     time.Now(),
	}
	m.snapshotMu.Unlock()
}

// gameIndex returns the priority rank of a game, or len(priority) when
// the game is not on the list.
func gameIndex(priority []string, game string) int {
	for i, g := range priority {
		if strings.EqualFold(g, game) {
			return i
		}
	}
	return len(priority)
}
