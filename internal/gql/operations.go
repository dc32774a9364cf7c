package gql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

// PlaybackAccessToken holds the signature and token needed for HLS access.
type PlaybackAccessToken struct {
	Signature string `json:"signature"`
	Value     string `json:"value"`
}

// DirectoryStream holds one live channel returned by DirectoryPage_Game.
type DirectoryStream struct {
	StreamID         string
	BroadcasterID    string
	BroadcasterLogin string
	DisplayName      string
	ViewersCount     int
}

// campaignNode is the wire shape shared by the dashboard and inventory
// campaign lists.
type campaignNode struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	StartAt string `json:"startAt"`
	EndAt   string `json:"endAt"`
	Game    *struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		Slug        string `json:"slug"`
	} `json:"game"`
	Self *struct {
		IsAccountConnected bool `json:"isAccountConnected"`
	} `json:"self"`
	TimeBasedDrops []dropNode `json:"timeBasedDrops"`
}

type dropNode struct {
	ID                            string `json:"id"`
	Name                          string `json:"name"`
	StartAt                       string `json:"startAt"`
	EndAt                         string `json:"endAt"`
	RequiredMinutesWatched        int    `json:"requiredMinutesWatched"`
	BenefitEdges                  []struct {
		Benefit struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			ImageURL string `json:"imageAssetURL"`
		} `json:"benefit"`
	} `json:"benefitEdges"`
	Self *struct {
		CurrentMinutesWatched int    `json:"currentMinutesWatched"`
		IsClaimed             bool   `json:"isClaimed"`
		DropInstanceID        string `json:"dropInstanceID"`
	} `json:"self"`
}

func (n *campaignNode) toModel() *model.Campaign {
	c := &model.Campaign{
		ID:      n.ID,
		Name:    n.Name,
		Status:  n.Status,
		StartAt: parseTime(n.StartAt),
		EndAt:   parseTime(n.EndAt),
	}
	if n.Game != nil {
		c.Game = model.GameInfo{
			ID:          n.Game.ID,
			Name:        n.Game.Name,
			DisplayName: n.Game.DisplayName,
			Slug:        n.Game.Slug,
		}
	}
	if n.Self != nil {
		c.Self = &model.CampaignSelf{IsAccountConnected: n.Self.IsAccountConnected}
	}
	for _, dn := range n.TimeBasedDrops {
		c.Drops = append(c.Drops, dn.toModel())
	}
	return c
}

func (n *dropNode) toModel() *model.Drop {
	d := &model.Drop{
		ID:              n.ID,
		Name:            n.Name,
		RequiredMinutes: n.RequiredMinutesWatched,
		StartAt:         parseTime(n.StartAt),
		EndAt:           parseTime(n.EndAt),
	}
	for _, be := range n.BenefitEdges {
		d.Benefits = append(d.Benefits, model.Benefit{
			ID:       be.Benefit.ID,
			Name:     be.Benefit.Name,
			ImageURL: be.Benefit.ImageURL,
		})
	}
	if n.Self != nil {
		d.Self = &model.DropSelf{
			CurrentMinutesWatched: n.Self.CurrentMinutesWatched,
			IsClaimed:             n.Self.IsClaimed,
			DropInstanceID:        n.Self.DropInstanceID,
		}
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// GetDropsDashboard fetches the full dashboard of visible drop campaigns.
// Dashboard entries carry no per-drop progress.
func (c *Client) GetDropsDashboard(ctx context.Context) ([]*model.Campaign, error) {
	vars := map[string]any{"fetchRewardCampaigns": true}
	data, err := c.PostGQL(ctx, constants.GQLViewerDropsDashboard, vars)
	if err != nil {
		return nil, fmt.Errorf("ViewerDropsDashboard: %w", err)
	}

	var resp struct {
		CurrentUser *struct {
			DropCampaigns []campaignNode `json:"dropCampaigns"`
		} `json:"currentUser"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing ViewerDropsDashboard response: %w", err)
	}
	if resp.CurrentUser == nil {
		return nil, fmt.Errorf("ViewerDropsDashboard: currentUser is null")
	}

	campaigns := make([]*model.Campaign, 0, len(resp.CurrentUser.DropCampaigns))
	for i := range resp.CurrentUser.DropCampaigns {
		campaigns = append(campaigns, resp.CurrentUser.DropCampaigns[i].toModel())
	}
	return campaigns, nil
}

// GetDropsInventory fetches the user's in-progress campaigns together with
// the claimed game-event drops.
func (c *Client) GetDropsInventory(ctx context.Context) ([]*model.Campaign, []model.EventDrop, error) {
	vars := map[string]any{"fetchRewardCampaigns": true}
	data, err := c.PostGQL(ctx, constants.GQLInventory, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("Inventory: %w", err)
	}

	var resp struct {
		CurrentUser *struct {
			Inventory struct {
				DropCampaignsInProgress []campaignNode `json:"dropCampaignsInProgress"`
				GameEventDrops          []struct {
					ID         string `json:"id"`
					Name       string `json:"name"`
					TotalCount int    `json:"totalCount"`
				} `json:"gameEventDrops"`
			} `json:"inventory"`
		} `json:"currentUser"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("parsing Inventory response: %w", err)
	}
	if resp.CurrentUser == nil {
		return nil, nil, fmt.Errorf("Inventory: currentUser is null")
	}

	campaigns := make([]*model.Campaign, 0, len(resp.CurrentUser.Inventory.DropCampaignsInProgress))
	for i := range resp.CurrentUser.Inventory.DropCampaignsInProgress {
		campaigns = append(campaigns, resp.CurrentUser.Inventory.DropCampaignsInProgress[i].toModel())
	}

	eventDrops := make([]model.EventDrop, 0, len(resp.CurrentUser.Inventory.GameEventDrops))
	for _, ed := range resp.CurrentUser.Inventory.GameEventDrops {
		eventDrops = append(eventDrops, model.EventDrop{
			ID:         ed.ID,
			Name:       ed.Name,
			TotalCount: ed.TotalCount,
		})
	}

	return campaigns, eventDrops, nil
}

// GetDropCampaignDetails fetches the drops of one campaign. channelLogin is
// optional context; pass empty when no live channel is known.
func (c *Client) GetDropCampaignDetails(ctx context.Context, campaignID, channelLogin string) ([]*model.Drop, error) {
	vars := map[string]any{
		"dropID":       campaignID,
		"channelLogin": channelLogin,
	}
	data, err := c.PostGQL(ctx, constants.GQLDropCampaignDetails, vars)
	if err != nil {
		return nil, fmt.Errorf("DropCampaignDetails for %s: %w", campaignID, err)
	}

	var resp struct {
		User *struct {
			DropCampaign *struct {
				TimeBasedDrops []dropNode `json:"timeBasedDrops"`
			} `json:"dropCampaign"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing DropCampaignDetails response: %w", err)
	}
	if resp.User == nil || resp.User.DropCampaign == nil {
		return nil, fmt.Errorf("DropCampaignDetails: campaign %s not found", campaignID)
	}

	drops := make([]*model.Drop, 0, len(resp.User.DropCampaign.TimeBasedDrops))
	for i := range resp.User.DropCampaign.TimeBasedDrops {
		drops = append(drops, resp.User.DropCampaign.TimeBasedDrops[i].toModel())
	}
	return drops, nil
}

// GetDropCampaignDetailsBatch fetches details for many campaigns in chunks
// of 20 per HTTP request, pausing briefly between chunks. Returns a map of
// campaign id to drops; campaigns that failed to parse are absent.
func (c *Client) GetDropCampaignDetailsBatch(ctx context.Context, campaignIDs []string, channelLogin string) (map[string][]*model.Drop, error) {
	const chunkSize = 20

	result := make(map[string][]*model.Drop, len(campaignIDs))

	for start := 0; start < len(campaignIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(campaignIDs) {
			end = len(campaignIDs)
		}
		chunk := campaignIDs[start:end]

		ops := make([]constants.GQLOperation, len(chunk))
		varsList := make([]map[string]any, len(chunk))
		for i, id := range chunk {
			ops[i] = constants.GQLDropCampaignDetails
			varsList[i] = map[string]any{
				"dropID":       id,
				"channelLogin": channelLogin,
			}
		}

		responses, err := c.PostGQLBatch(ctx, ops, varsList)
		if err != nil {
			return result, fmt.Errorf("DropCampaignDetails batch: %w", err)
		}

		for i, data := range responses {
			var resp struct {
				User *struct {
					DropCampaign *struct {
						TimeBasedDrops []dropNode `json:"timeBasedDrops"`
					} `json:"dropCampaign"`
				} `json:"user"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				c.log.Debug("Skipping unparseable campaign details",
					"campaign_id", chunk[i], "error", err)
				continue
			}
			if resp.User == nil || resp.User.DropCampaign == nil {
				continue
			}
			drops := make([]*model.Drop, 0, len(resp.User.DropCampaign.TimeBasedDrops))
			for j := range resp.User.DropCampaign.TimeBasedDrops {
				drops = append(drops, resp.User.DropCampaign.TimeBasedDrops[j].toModel())
			}
			result[chunk[i]] = drops
		}

		if end < len(campaignIDs) {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}

	return result, nil
}

// GetCurrentSessionContext runs the live drop-progress probe for a channel.
// The raw data is returned unparsed: the response arrives in one of several
// shapes and the watch loop owns that parsing boundary.
func (c *Client) GetCurrentSessionContext(ctx context.Context, channelLogin, channelID string) (json.RawMessage, error) {
	vars := map[string]any{
		"channelLogin": channelLogin,
		"channelID":    channelID,
	}
	data, err := c.PostGQL(ctx, constants.GQLDropCurrentSessionContext, vars)
	if err != nil {
		return nil, fmt.Errorf("DropCurrentSessionContext for %s: %w", channelLogin, err)
	}
	return data, nil
}

// ClaimDropRewards claims one drop instance. Returns true when the drop is
// now claimed, including the case where it was already claimed.
func (c *Client) ClaimDropRewards(ctx context.Context, dropInstanceID string) (bool, error) {
	vars := map[string]any{
		"input": map[string]any{
			"dropInstanceID": dropInstanceID,
		},
	}
	data, err := c.PostGQL(ctx, constants.GQLDropsPageClaimDropRewards, vars)
	if err != nil {
		return false, fmt.Errorf("DropsPage_ClaimDropRewards: %w", err)
	}

	var resp struct {
		ClaimDropRewards *struct {
			Status string `json:"status"`
		} `json:"claimDropRewards"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("parsing ClaimDropRewards response: %w", err)
	}
	if resp.ClaimDropRewards == nil {
		return false, fmt.Errorf("ClaimDropRewards: empty response")
	}

	switch resp.ClaimDropRewards.Status {
	case "ELIGIBLE_FOR_ALL", "DROP_INSTANCE_ALREADY_CLAIMED":
		return true, nil
	default:
		return false, fmt.Errorf("ClaimDropRewards returned status %s", resp.ClaimDropRewards.Status)
	}
}

// GetPlaybackAccessToken fetches the stream token and signature used for
// the HLS touch.
func (c *Client) GetPlaybackAccessToken(ctx context.Context, channelLogin string) (*PlaybackAccessToken, error) {
	vars := map[string]any{
		"login":      channelLogin,
		"isLive":     true,
		"isVod":      false,
		"vodID":      "",
		"playerType": "site",
	}
	data, err := c.PostGQL(ctx, constants.GQLPlaybackAccessToken, vars)
	if err != nil {
		return nil, fmt.Errorf("PlaybackAccessToken for %s: %w", channelLogin, err)
	}

	var resp struct {
		StreamPlaybackAccessToken *PlaybackAccessToken `json:"streamPlaybackAccessToken"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing PlaybackAccessToken response: %w", err)
	}
	if resp.StreamPlaybackAccessToken == nil {
		return nil, fmt.Errorf("PlaybackAccessToken: no token for %s (offline?)", channelLogin)
	}

	return resp.StreamPlaybackAccessToken, nil
}

// GetDirectoryStreams fetches up to limit live channels for a game slug,
// most viewers first.
func (c *Client) GetDirectoryStreams(ctx context.Context, slug string, limit int) ([]DirectoryStream, error) {
	vars := map[string]any{
		"imageWidth": 50,
		"slug":       slug,
		"options": map[string]any{
			"sort":                   "VIEWER_COUNT",
			"recommendationsContext": map[string]any{"platform": "web"},
			"freeformTags":           nil,
			"tags":                   []string{},
		},
		"sortTypeIsRecency": false,
		"limit":             limit,
	}
	data, err := c.PostGQL(ctx, constants.GQLDirectoryPageGame, vars)
	if err != nil {
		return nil, fmt.Errorf("DirectoryPage_Game for %s: %w", slug, err)
	}

	var resp struct {
		Game *struct {
			Streams struct {
				Edges []struct {
					Node struct {
						ID          string `json:"id"`
						Broadcaster *struct {
							ID          string `json:"id"`
							Login       string `json:"login"`
							DisplayName string `json:"displayName"`
						} `json:"broadcaster"`
						ViewersCount int `json:"viewersCount"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"streams"`
		} `json:"game"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing DirectoryPage_Game response: %w", err)
	}
	if resp.Game == nil {
		return nil, fmt.Errorf("DirectoryPage_Game: game %s not found", slug)
	}

	streams := make([]DirectoryStream, 0, len(resp.Game.Streams.Edges))
	for _, edge := range resp.Game.Streams.Edges {
		if edge.Node.Broadcaster == nil {
			continue
		}
		streams = append(streams, DirectoryStream{
			StreamID:         edge.Node.ID,
			BroadcasterID:    edge.Node.Broadcaster.ID,
			BroadcasterLogin: edge.Node.Broadcaster.Login,
			DisplayName:      edge.Node.Broadcaster.DisplayName,
			ViewersCount:     edge.Node.ViewersCount,
		})
	}
	return streams, nil
}
