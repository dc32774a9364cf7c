package model

import (
	"testing"

	"github.com/wrosek/twitch-drops-go/internal/constants"
)

func TestDropCurrentMinutes(t *testing.T) {
	d := &Drop{
		RequiredMinutes: 60,
		Self:            &DropSelf{CurrentMinutesWatched: 45},
		ExtraMinutes:    2,
		ExtraSeconds:    30,
	}
	if got, want := d.CurrentMinutes(), 47.5; got != want {
		t.Errorf("CurrentMinutes = %v, want %v", got, want)
	}
	if got, want := d.RemainingMinutes(), 12.5; got != want {
		t.Errorf("RemainingMinutes = %v, want %v", got, want)
	}
}

func TestDropZeroRequiredIsComplete(t *testing.T) {
	d := &Drop{RequiredMinutes: 0}
	if got := d.Progress(); got != 1.0 {
		t.Errorf("Progress = %v, want 1.0", got)
	}
	if got := d.RemainingMinutes(); got != 0 {
		t.Errorf("RemainingMinutes = %v, want 0", got)
	}
}

func TestDropBumpMonotonicAndClamped(t *testing.T) {
	d := &Drop{
		RequiredMinutes: 10000,
		Self:            &DropSelf{CurrentMinutesWatched: 10},
	}

	prev := d.CurrentMinutes()
	for i := 0; i < 3600; i++ {
		d.Bump()
		cur := d.CurrentMinutes()
		if cur < prev {
			t.Fatalf("CurrentMinutes decreased from %v to %v at tick %d", prev, cur, i)
		}
		if d.ExtraSeconds < 0 || d.ExtraSeconds >= 60 {
			t.Fatalf("ExtraSeconds out of range: %d", d.ExtraSeconds)
		}
		if d.ExtraMinutes > constants.MaxExtraMinutes {
			t.Fatalf("ExtraMinutes exceeded cap: %d", d.ExtraMinutes)
		}
		prev = cur
	}

	// an hour of ticks lands exactly on the drift cap
	if d.ExtraMinutes != constants.MaxExtraMinutes {
		t.Errorf("ExtraMinutes = %d, want %d", d.ExtraMinutes, constants.MaxExtraMinutes)
	}

	// further bumps are suppressed until the server confirms
	d.Bump()
	if d.ExtraMinutes != constants.MaxExtraMinutes || d.ExtraSeconds != 0 {
		t.Errorf("bump past cap changed counters: min=%d sec=%d", d.ExtraMinutes, d.ExtraSeconds)
	}
}

func TestDropBumpSkipsClaimed(t *testing.T) {
	d := &Drop{RequiredMinutes: 60, Self: &DropSelf{IsClaimed: true}}
	d.Bump()
	if d.ExtraSeconds != 0 {
		t.Errorf("claimed drop was bumped: %d", d.ExtraSeconds)
	}
}

func TestDropReconcileServerMinutes(t *testing.T) {
	d := &Drop{
		RequiredMinutes: 60,
		Self:            &DropSelf{CurrentMinutesWatched: 47},
		ExtraSeconds:    30,
	}

	// server behind local projection: minutes adopted, extras kept
	d.ReconcileServerMinutes(45)
	if d.Self.CurrentMinutesWatched != 45 {
		t.Errorf("CurrentMinutesWatched = %d, want 45", d.Self.CurrentMinutesWatched)
	}
	if d.ExtraSeconds != 30 {
		t.Errorf("extras reset on stale server report: %d", d.ExtraSeconds)
	}

	// server caught up: extras reset
	d.ReconcileServerMinutes(50)
	if d.Self.CurrentMinutesWatched != 50 {
		t.Errorf("CurrentMinutesWatched = %d, want 50", d.Self.CurrentMinutesWatched)
	}
	if d.ExtraMinutes != 0 || d.ExtraSeconds != 0 {
		t.Errorf("extras not reset: min=%d sec=%d", d.ExtraMinutes, d.ExtraSeconds)
	}
}

func TestDropReconcileWithoutSelf(t *testing.T) {
	d := &Drop{RequiredMinutes: 60}
	d.ReconcileServerMinutes(12)
	if d.Self == nil || d.Self.CurrentMinutesWatched != 12 {
		t.Fatalf("self not created from server report: %+v", d.Self)
	}
}

func TestDropIsClaimed(t *testing.T) {
	tests := []struct {
		name string
		drop Drop
		want bool
	}{
		{"explicit", Drop{RequiredMinutes: 60, Self: &DropSelf{IsClaimed: true}}, true},
		{"full progress", Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 60}}, true},
		{"in progress", Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 30}}, false},
		{"zero required no self", Drop{RequiredMinutes: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.drop.IsClaimed(); got != tt.want {
				t.Errorf("IsClaimed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDropCanClaim(t *testing.T) {
	tests := []struct {
		name string
		drop Drop
		want bool
	}{
		{"ready", Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 60, DropInstanceID: "i1"}}, true},
		{"no instance id", Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 60}}, false},
		{"already claimed", Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 60, IsClaimed: true, DropInstanceID: "i1"}}, false},
		{"local extras only", Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 50, DropInstanceID: "i1"}, ExtraMinutes: 10}, false},
		{"no self", Drop{RequiredMinutes: 60}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.drop.CanClaim(); got != tt.want {
				t.Errorf("CanClaim = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDropMarkClaimedIdempotent(t *testing.T) {
	d := &Drop{RequiredMinutes: 60, Self: &DropSelf{CurrentMinutesWatched: 62}}
	d.MarkClaimed()
	d.MarkClaimed()
	if !d.Self.IsClaimed {
		t.Error("drop not claimed")
	}
	if d.Self.CurrentMinutesWatched != 62 {
		t.Errorf("watched minutes changed: %d", d.Self.CurrentMinutesWatched)
	}

	bare := &Drop{RequiredMinutes: 30}
	bare.MarkClaimed()
	if bare.Self == nil || !bare.Self.IsClaimed || bare.Self.CurrentMinutesWatched != 30 {
		t.Errorf("minimal self not synthesized: %+v", bare.Self)
	}
}
