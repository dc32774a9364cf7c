package model

import (
	"testing"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
)

func TestFailedGameAttempts(t *testing.T) {
	f := NewFailedGameAttempts()

	if f.OnCooldown("Valorant") {
		t.Error("fresh table reports cooldown")
	}

	f.Record("Valorant")
	if !f.OnCooldown("Valorant") {
		t.Error("recorded game not on cooldown")
	}
	if f.OnCooldown("Fortnite") {
		t.Error("unrelated game on cooldown")
	}

	// age the entry past the window
	f.attempts["Valorant"] = time.Now().Add(-constants.GameCooldown - time.Second)
	if f.OnCooldown("Valorant") {
		t.Error("expired entry still on cooldown")
	}

	f.Expire()
	if f.Len() != 0 {
		t.Errorf("Len = %d after expire, want 0", f.Len())
	}
}
