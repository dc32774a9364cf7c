// Command miner is the entry point for the Twitch drops miner. It loads
// the account configuration and runtime settings, runs the miner, and
// manages graceful shutdown via OS signals.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/wrosek/twitch-drops-go/internal/config"
	"github.com/wrosek/twitch-drops-go/internal/logger"
	"github.com/wrosek/twitch-drops-go/internal/miner"
	"github.com/wrosek/twitch-drops-go/internal/server"
)

const banner = `
╔══════════════════════════════════════════════════╗
║          Twitch Drops Miner — Go Edition         ║
╚══════════════════════════════════════════════════╝
`

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the account configuration file")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides config)")
	noColor := flag.Bool("no-color", false, "Disable colored output (overrides TTY detection)")
	flag.Parse()

	// optional .env with per-account secrets
	_ = godotenv.Load()

	cfg, err := config.LoadAccountConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.IsEnabled() {
		fmt.Fprintf(os.Stderr, "Account %s is disabled in config\n", cfg.Username)
		os.Exit(0)
	}

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}
	settings.FromAccountConfig(cfg)
	if err := settings.Save(cfg.SettingsPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to persist settings: %v\n", err)
		os.Exit(1)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if *logLevel != "" {
		level = logger.ParseLevel(*logLevel)
	} else if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = logger.ParseLevel(envLevel)
	}

	colored := !*noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	if cfg.Log.Colored != nil {
		colored = *cfg.Log.Colored && !*noColor
	}

	log, err := logger.Setup(logger.Config{
		Level:       level,
		FileLevel:   slog.LevelDebug,
		Colored:     colored,
		LogDir:      cfg.Log.Dir,
		AccountName: cfg.Username,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	if settings.LogoAnimationEnabled {
		fmt.Print(banner)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		time.AfterFunc(30*time.Second, func() {
			log.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	m := miner.NewMiner(cfg, settings, log, printDeviceCode)

	if cfg.Features.EnableAnalytics {
		addr := cfg.Features.AnalyticsAddr
		if addr == "" {
			addr = ":8080"
		}
		analyticsServer := server.NewAnalyticsServer(addr, log)
		analyticsServer.SetStatusFunc(func() server.MinerStatus {
			return minerStatus(m)
		})
		go func() {
			if err := analyticsServer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("Analytics server failed", "error", err)
			}
		}()
	}

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("Miner failed", "account", cfg.Username, "error", err)
		os.Exit(1)
	}

	log.Info("👋 Miner stopped. Goodbye!")
}

// printDeviceCode renders the device-code login prompt.
func printDeviceCode(userCode, verificationURI string) {
	fmt.Printf(`
┌──────────────────────────────────────────────────┐
│  Login required                                  │
│                                                  │
│  Open:  %-40s │
│  Code:  %-40s │
│                                                  │
│  Waiting for authorization...                    │
└──────────────────────────────────────────────────┘
`, verificationURI, userCode)
}

// minerStatus adapts the miner snapshot to the analytics API document.
func minerStatus(m *miner.Miner) server.MinerStatus {
	snap := m.Snapshot()
	status := server.MinerStatus{
		Account:       snap.Account,
		Running:       m.IsRunning(),
		Mining:        snap.Mining,
		Live:          snap.Live,
		NextDrop:      snap.NextDrop,
		NextGame:      snap.NextGame,
		CampaignCount: snap.CampaignCount,
		ClaimedDrops:  snap.ClaimedDrops,
		TotalDrops:    snap.TotalDrops,
		GamesOnHold:   snap.GamesOnHold,
		UpdatedAt:     snap.UpdatedAt,
	}
	if snap.Status != nil {
		status.Channel = snap.Status.ChannelLogin
		status.Game = snap.Status.GameName
		status.Drop = snap.Status.DropName
		status.Progress = snap.Status.Progress
		status.MinutesWatched = snap.Status.MinutesWatched
		status.MinutesRequired = snap.Status.MinutesRequired
	}
	return status
}
