package model

import (
	"fmt"
	"time"
)

// CampaignSelf carries viewer-specific campaign state. IsAccountConnected
// is false when the campaign requires linking a game account the viewer
// has not linked.
type CampaignSelf struct {
	IsAccountConnected bool
}

// Campaign represents a time-bounded drop promotion for a single game.
type Campaign struct {
	ID      string
	Name    string
	Game    GameInfo
	Status  string
	StartAt time.Time
	EndAt   time.Time
	Drops   []*Drop
	Self    *CampaignSelf
}

// IsActive reports whether the campaign window contains now and the server
// status is ACTIVE.
func (c *Campaign) IsActive(now time.Time) bool {
	return c.Status == "ACTIVE" && !now.Before(c.StartAt) && !now.After(c.EndAt)
}

// IsCompleted reports whether the campaign has drops and every one is claimed.
func (c *Campaign) IsCompleted() bool {
	if len(c.Drops) == 0 {
		return false
	}
	for _, d := range c.Drops {
		if !d.IsClaimed() {
			return false
		}
	}
	return true
}

// AccountConnected reports whether the viewer's game account is linked.
// Campaigns without self-info are assumed connected.
func (c *Campaign) AccountConnected() bool {
	return c.Self == nil || c.Self.IsAccountConnected
}

// Progress returns the average per-drop progress with claimed drops
// counting as complete. The second return is false when progress is
// unknown: no drops fetched yet, or the account is not connected so the
// server withholds per-drop state.
func (c *Campaign) Progress() (float64, bool) {
	if len(c.Drops) == 0 || !c.AccountConnected() {
		return 0, false
	}
	var sum float64
	for _, d := range c.Drops {
		if d.IsClaimed() {
			sum += 1.0
			continue
		}
		sum += d.Progress()
	}
	return sum / float64(len(c.Drops)), true
}

// RemainingMinutes sums remaining minutes over unclaimed drops.
func (c *Campaign) RemainingMinutes() float64 {
	var total float64
	for _, d := range c.Drops {
		if !d.IsClaimed() {
			total += d.RemainingMinutes()
		}
	}
	return total
}

// FirstUnclaimedDrop returns the first drop not yet claimed, nil when all
// are claimed or no drops are known.
func (c *Campaign) FirstUnclaimedDrop() *Drop {
	for _, d := range c.Drops {
		if !d.IsClaimed() {
			return d
		}
	}
	return nil
}

// FindDrop returns the drop with the given id, nil when absent.
func (c *Campaign) FindDrop(dropID string) *Drop {
	for _, d := range c.Drops {
		if d.ID == dropID {
			return d
		}
	}
	return nil
}

// String returns a human-readable representation of the campaign.
func (c *Campaign) String() string {
	claimed := 0
	for _, d := range c.Drops {
		if d.IsClaimed() {
			claimed++
		}
	}
	return fmt.Sprintf("%s [%s] (%d/%d drops)", c.Name, c.Game.String(), claimed, len(c.Drops))
}
