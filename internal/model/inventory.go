package model

import (
	"math"
	"sort"
	"strings"
	"time"
)

// EventDrop is a claimed game-event reward reported alongside the inventory.
// Completed campaigns drop out of the in-progress list; event drops are the
// only evidence they finished, so placeholder claimed drops are synthesized
// from them.
type EventDrop struct {
	ID         string
	Name       string
	TotalCount int
}

// Inventory is the in-memory campaign catalog. AllCampaigns mirrors the
// full dashboard (no per-drop progress until details are merged in);
// Campaigns mirrors the user's in-progress inventory list.
//
// Single-owner: only the scheduler task mutates it.
type Inventory struct {
	AllCampaigns []*Campaign
	Campaigns    []*Campaign
}

// IngestAllCampaigns replaces the dashboard list. Local extra counters are
// carried forward by drop id from the previous snapshot so a refresh never
// discards locally-accumulated seconds.
func (inv *Inventory) IngestAllCampaigns(campaigns []*Campaign) {
	prev := make(map[string]*Campaign, len(inv.AllCampaigns))
	for _, c := range inv.AllCampaigns {
		prev[c.ID] = c
	}

	for _, c := range campaigns {
		old, ok := prev[c.ID]
		if !ok {
			continue
		}
		for _, d := range c.Drops {
			if oldDrop := old.FindDrop(d.ID); oldDrop != nil {
				d.CopyExtrasFrom(oldDrop)
			}
		}
	}

	inv.AllCampaigns = campaigns
}

// IngestInventory replaces the in-progress list and folds its drops into the
// matching dashboard entries. Local extra counters are carried forward from
// the dashboard entry, or from the previous in-progress entry for campaigns
// the dashboard does not list. For subscribed campaigns the dashboard knows
// no drops for, placeholder claimed drops are synthesized from matching
// event drops so completed campaigns still report a correct N/N count.
func (inv *Inventory) IngestInventory(campaigns []*Campaign, eventDrops []EventDrop) {
	prev := make(map[string]*Campaign, len(inv.Campaigns))
	for _, c := range inv.Campaigns {
		prev[c.ID] = c
	}
	inv.Campaigns = campaigns

	for _, c := range campaigns {
		if len(c.Drops) == 0 {
			continue
		}
		dash := inv.findAllCampaign(c.ID)
		for _, d := range c.Drops {
			if old := priorDrop(dash, prev[c.ID], d.ID); old != nil {
				d.CopyExtrasFrom(old)
			}
		}
		if dash != nil {
			dash.Drops = c.Drops
			dash.Self = c.Self
		}
	}

	for _, dash := range inv.AllCampaigns {
		if len(dash.Drops) > 0 {
			continue
		}
		if inProgress := inv.findCampaign(dash.ID); inProgress != nil && len(inProgress.Drops) > 0 {
			continue
		}
		dash.Drops = synthesizeEventDrops(dash.Game, eventDrops)
	}
}

// MergeCampaignDetails installs fetched drop details on a dashboard campaign
// that had none, preserving extras for drops that were already known through
// the inventory list.
func (inv *Inventory) MergeCampaignDetails(campaignID string, drops []*Drop) {
	dash := inv.findAllCampaign(campaignID)
	if dash == nil || len(dash.Drops) > 0 || len(drops) == 0 {
		return
	}
	if inProgress := inv.findCampaign(campaignID); inProgress != nil && len(inProgress.Drops) > 0 {
		for _, d := range inProgress.Drops {
			if fetched := findDrop(drops, d.ID); fetched != nil {
				fetched.CopyExtrasFrom(d)
				if fetched.Self == nil {
					fetched.Self = d.Self
				}
			}
		}
	}
	dash.Drops = drops
}

// ActiveCampaigns returns campaigns inside their window, excluding games on
// the excluded list.
func (inv *Inventory) ActiveCampaigns(excludedGames []string) []*Campaign {
	excluded := make(map[string]struct{}, len(excludedGames))
	for _, g := range excludedGames {
		excluded[strings.ToLower(g)] = struct{}{}
	}

	now := time.Now()
	var active []*Campaign
	for _, c := range inv.subscribed() {
		if !c.IsActive(now) {
			continue
		}
		if _, skip := excluded[strings.ToLower(c.Game.String())]; skip {
			continue
		}
		active = append(active, c)
	}
	return active
}

// PrioritizedCampaigns returns active campaigns ordered by the priority
// list; games off the list sort after priority games, soonest-ending first.
func (inv *Inventory) PrioritizedCampaigns(priorityGames, excludedGames []string) []*Campaign {
	rank := make(map[string]int, len(priorityGames))
	for i, g := range priorityGames {
		rank[strings.ToLower(g)] = i
	}

	active := inv.ActiveCampaigns(excludedGames)
	sort.SliceStable(active, func(i, j int) bool {
		ri, iOK := rank[strings.ToLower(active[i].Game.String())]
		rj, jOK := rank[strings.ToLower(active[j].Game.String())]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return active[i].EndAt.Before(active[j].EndAt)
		}
	})
	return active
}

// SubscribedCampaigns returns both collections de-duplicated by id, with
// the dashboard entry winning on conflict.
func (inv *Inventory) SubscribedCampaigns() []*Campaign {
	return inv.subscribed()
}

// FirstUnclaimedDrop returns the unclaimed drop with the fewest remaining
// minutes across prioritized campaigns, together with its campaign.
// Comparison uses a total order with NaN ranked last.
func (inv *Inventory) FirstUnclaimedDrop(priorityGames, excludedGames []string) (*Campaign, *Drop) {
	var (
		bestCampaign *Campaign
		bestDrop     *Drop
		bestVal      = math.Inf(1)
	)
	for _, c := range inv.PrioritizedCampaigns(priorityGames, excludedGames) {
		for _, d := range c.Drops {
			if d.IsClaimed() {
				continue
			}
			v := d.RemainingMinutes()
			if math.IsNaN(v) {
				continue
			}
			if v < bestVal {
				bestVal = v
				bestCampaign = c
				bestDrop = d
			}
		}
	}
	return bestCampaign, bestDrop
}

// CampaignsForGame returns the active campaigns for a game display name.
func (inv *Inventory) CampaignsForGame(game string) []*Campaign {
	now := time.Now()
	var out []*Campaign
	for _, c := range inv.subscribed() {
		if strings.EqualFold(c.Game.String(), game) && c.IsActive(now) {
			out = append(out, c)
		}
	}
	return out
}

// MarkDropClaimed marks the drop claimed in both collections. Idempotent.
func (inv *Inventory) MarkDropClaimed(dropID string) {
	for _, list := range [][]*Campaign{inv.AllCampaigns, inv.Campaigns} {
		for _, c := range list {
			if d := c.FindDrop(dropID); d != nil {
				d.MarkClaimed()
			}
		}
	}
}

// FindDropByID locates a drop by id across both collections.
func (inv *Inventory) FindDropByID(dropID string) *Drop {
	for _, list := range [][]*Campaign{inv.AllCampaigns, inv.Campaigns} {
		for _, c := range list {
			if d := c.FindDrop(dropID); d != nil {
				return d
			}
		}
	}
	return nil
}

// FindDropByInstanceID locates a drop by its claimable instance id.
func (inv *Inventory) FindDropByInstanceID(instanceID string) *Drop {
	for _, list := range [][]*Campaign{inv.AllCampaigns, inv.Campaigns} {
		for _, c := range list {
			for _, d := range c.Drops {
				if d.Self != nil && d.Self.DropInstanceID == instanceID {
					return d
				}
			}
		}
	}
	return nil
}

// FindDropByName locates a drop by display name across both collections.
func (inv *Inventory) FindDropByName(name string) *Drop {
	for _, list := range [][]*Campaign{inv.AllCampaigns, inv.Campaigns} {
		for _, c := range list {
			for _, d := range c.Drops {
				if d.Name == name {
					return d
				}
			}
		}
	}
	return nil
}

func (inv *Inventory) findAllCampaign(id string) *Campaign {
	for _, c := range inv.AllCampaigns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (inv *Inventory) findCampaign(id string) *Campaign {
	for _, c := range inv.Campaigns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (inv *Inventory) subscribed() []*Campaign {
	seen := make(map[string]struct{}, len(inv.AllCampaigns))
	out := make([]*Campaign, 0, len(inv.AllCampaigns)+len(inv.Campaigns))
	for _, c := range inv.AllCampaigns {
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range inv.Campaigns {
		if _, ok := seen[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// priorDrop returns the previous snapshot of a drop, preferring the
// dashboard entry over the prior in-progress entry.
func priorDrop(dash, prevInProgress *Campaign, dropID string) *Drop {
	if dash != nil {
		if d := dash.FindDrop(dropID); d != nil {
			return d
		}
	}
	if prevInProgress != nil {
		return prevInProgress.FindDrop(dropID)
	}
	return nil
}

func findDrop(drops []*Drop, id string) *Drop {
	for _, d := range drops {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// synthesizeEventDrops builds placeholder claimed drops from event drops
// whose names match the game, one per totalCount unit. "Rocket League"
// rewards are commonly labeled "RL".
func synthesizeEventDrops(game GameInfo, eventDrops []EventDrop) []*Drop {
	var out []*Drop
	for _, ed := range eventDrops {
		if !eventDropMatchesGame(ed.Name, game.String()) {
			continue
		}
		count := ed.TotalCount
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			out = append(out, &Drop{
				ID:              ed.ID,
				Name:            ed.Name,
				RequiredMinutes: 0,
				Self: &DropSelf{
					IsClaimed:      true,
					DropInstanceID: ed.ID,
				},
			})
		}
	}
	return out
}

func eventDropMatchesGame(dropName, gameName string) bool {
	name := strings.ToLower(dropName)
	if strings.Contains(name, strings.ToLower(gameName)) {
		return true
	}
	if strings.EqualFold(gameName, "Rocket League") {
		return strings.Contains(dropName, "RL")
	}
	return false
}
