package model

import (
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
)

// FailedGameAttempts tracks games that recently produced a fatal mining
// failure so autostart skips them for the cooldown window.
type FailedGameAttempts struct {
	attempts map[string]time.Time
}

// NewFailedGameAttempts returns an empty cooldown table.
func NewFailedGameAttempts() *FailedGameAttempts {
	return &FailedGameAttempts{attempts: make(map[string]time.Time)}
}

// Record puts a game on cooldown as of now.
func (f *FailedGameAttempts) Record(game string) {
	f.attempts[game] = time.Now()
}

// OnCooldown reports whether a game failed within the cooldown window.
func (f *FailedGameAttempts) OnCooldown(game string) bool {
	at, ok := f.attempts[game]
	return ok && time.Since(at) < constants.GameCooldown
}

// Expire prunes entries older than the cooldown window.
func (f *FailedGameAttempts) Expire() {
	for game, at := range f.attempts {
		if time.Since(at) >= constants.GameCooldown {
			delete(f.attempts, game)
		}
	}
}

// Len returns the number of games currently tracked.
func (f *FailedGameAttempts) Len() int {
	return len(f.attempts)
}
