package gql

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Operations is the interface for all GQL query/mutation methods.
// *Client satisfies this interface.
type Operations interface {
	PostGQL(ctx context.Context, op constants.GQLOperation, vars map[string]any) (json.RawMessage, error)
	PostGQLBatch(ctx context.Context, ops []constants.GQLOperation, varsList []map[string]any) ([]json.RawMessage, error)
	HTTPClient() *http.Client

	GetDropsDashboard(ctx context.Context) ([]*model.Campaign, error)
	GetDropsInventory(ctx context.Context) ([]*model.Campaign, []model.EventDrop, error)
	GetDropCampaignDetails(ctx context.Context, campaignID, channelLogin string) ([]*model.Drop, error)
	GetDropCampaignDetailsBatch(ctx context.Context, campaignIDs []string, channelLogin string) (map[string][]*model.Drop, error)
	GetCurrentSessionContext(ctx context.Context, channelLogin, channelID string) (json.RawMessage, error)
	ClaimDropRewards(ctx context.Context, dropInstanceID string) (bool, error)
	GetPlaybackAccessToken(ctx context.Context, channelLogin string) (*PlaybackAccessToken, error)
	GetDirectoryStreams(ctx context.Context, slug string, limit int) ([]DirectoryStream, error)
}

var _ Operations = (*Client)(nil)
