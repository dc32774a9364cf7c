package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
)

// Benefit is a single reward item attached to a drop.
type Benefit struct {
	ID       string
	Name     string
	ImageURL string
}

// DropSelf carries the viewer-specific progress the server reports for a drop.
type DropSelf struct {
	CurrentMinutesWatched int
	IsClaimed             bool
	DropInstanceID        string
}

// Drop is a single time-gated reward within a campaign.
//
// ExtraMinutes and ExtraSeconds are local-only accumulators layered on top
// of the server-reported whole minutes. The server reports progress with
// 1-2 minutes of latency; the local counters keep countdowns smooth between
// refreshes and are reset whenever the server catches up.
type Drop struct {
	ID              string
	Name            string
	RequiredMinutes int
	StartAt         time.Time
	EndAt           time.Time
	Benefits        []Benefit
	Self            *DropSelf

	ExtraMinutes int
	ExtraSeconds int
}

// CurrentMinutes returns the effective watched minutes including the local
// accumulators.
func (d *Drop) CurrentMinutes() float64 {
	server := 0
	if d.Self != nil {
		server = d.Self.CurrentMinutesWatched
	}
	return float64(server) + float64(d.ExtraMinutes) + float64(d.ExtraSeconds)/60.0
}

// RemainingMinutes returns minutes left until the drop threshold, never negative.
func (d *Drop) RemainingMinutes() float64 {
	remaining := float64(d.RequiredMinutes) - d.CurrentMinutes()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Progress returns completion in [0, 1]. Drops with no minute requirement
// are complete by definition.
func (d *Drop) Progress() float64 {
	if d.RequiredMinutes == 0 {
		return 1.0
	}
	p := d.CurrentMinutes() / float64(d.RequiredMinutes)
	if p > 1.0 {
		return 1.0
	}
	return p
}

// IsClaimed reports whether the drop is claimed, either explicitly by the
// server or implicitly by having reached the full requirement.
func (d *Drop) IsClaimed() bool {
	if d.Self != nil && d.Self.IsClaimed {
		return true
	}
	return d.RequiredMinutes > 0 && d.CurrentMinutes() >= float64(d.RequiredMinutes)
}

// CanClaim reports whether the drop has a server-confirmed full requirement
// and a claimable instance id.
func (d *Drop) CanClaim() bool {
	if d.Self == nil || d.Self.IsClaimed || d.Self.DropInstanceID == "" {
		return false
	}
	return d.RequiredMinutes > 0 && d.Self.CurrentMinutesWatched >= d.RequiredMinutes
}

// Bump adds one locally-accumulated second. Bumping is suppressed for
// claimed drops and once ExtraMinutes hits the drift cap, so a disagreeing
// server wins within one refresh window.
func (d *Drop) Bump() {
	if d.IsClaimed() {
		return
	}
	if d.ExtraMinutes >= constants.MaxExtraMinutes {
		return
	}
	d.ExtraSeconds++
	if d.ExtraSeconds >= 60 {
		d.ExtraSeconds = 0
		d.ExtraMinutes++
	}
}

// ReconcileServerMinutes folds a server progress report into the drop.
// The local accumulators are reset only when the server has caught up with
// the locally-projected value, so CurrentMinutes never moves backwards on
// a stale report.
func (d *Drop) ReconcileServerMinutes(minutes int) {
	reset := float64(minutes) >= d.CurrentMinutes()
	if d.Self == nil {
		d.Self = &DropSelf{}
	}
	d.Self.CurrentMinutesWatched = minutes
	if reset {
		d.ExtraMinutes = 0
		d.ExtraSeconds = 0
	}
}

// MarkClaimed marks the drop claimed, creating minimal self-info when the
// server never reported any. Idempotent; never decreases watched minutes.
func (d *Drop) MarkClaimed() {
	if d.Self == nil {
		d.Self = &DropSelf{CurrentMinutesWatched: d.RequiredMinutes}
	}
	d.Self.IsClaimed = true
}

// CopyExtrasFrom carries the local accumulators forward from a prior
// snapshot of the same drop.
func (d *Drop) CopyExtrasFrom(prev *Drop) {
	d.ExtraMinutes = prev.ExtraMinutes
	d.ExtraSeconds = prev.ExtraSeconds
}

// String returns the drop name with a progress summary.
func (d *Drop) String() string {
	return fmt.Sprintf("%s (%d/%d min)", d.Name, int(d.CurrentMinutes()), d.RequiredMinutes)
}

// ProgressBar renders a 10-segment textual progress bar for log output.
func (d *Drop) ProgressBar() string {
	filled := int(d.Progress() * 10)
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("#", filled),
		strings.Repeat("-", 10-filled),
		int(d.Progress()*100))
}
