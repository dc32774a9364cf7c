package gql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func gqlServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		// single requests only; batch tests live in client_test.go
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		body, ok := responses[req.OperationName]
		if !ok {
			t.Errorf("unexpected operation %q", req.OperationName)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, body)
	}))
}

func TestGetDropsDashboard(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"ViewerDropsDashboard": `{"data":{"currentUser":{"dropCampaigns":[
			{"id":"camp-1","name":"Launch Party","status":"ACTIVE",
			 "startAt":"2026-08-01T00:00:00Z","endAt":"2026-09-01T00:00:00Z",
			 "game":{"id":"g1","name":"Rust","displayName":"Rust","slug":"rust"},
			 "self":{"isAccountConnected":true},
			 "timeBasedDrops":[
			   {"id":"drop-1","name":"Helmet","requiredMinutesWatched":120,
			    "benefitEdges":[{"benefit":{"id":"b1","name":"Helmet","imageAssetURL":"https://img/1.png"}}]}
			 ]}
		]}}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	campaigns, err := c.GetDropsDashboard(context.Background())
	if err != nil {
		t.Fatalf("GetDropsDashboard: %v", err)
	}
	if len(campaigns) != 1 {
		t.Fatalf("campaigns = %d", len(campaigns))
	}
	camp := campaigns[0]
	if camp.ID != "camp-1" || camp.Game.Name != "Rust" || !camp.AccountConnected() {
		t.Errorf("campaign = %+v", camp)
	}
	if len(camp.Drops) != 1 || camp.Drops[0].RequiredMinutes != 120 {
		t.Errorf("drops = %+v", camp.Drops)
	}
	if camp.Drops[0].Self != nil {
		t.Error("dashboard drop should carry no progress")
	}
	if got := camp.Drops[0].Benefits[0].Name; got != "Helmet" {
		t.Errorf("benefit = %q", got)
	}
}

func TestGetDropsInventory(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"Inventory": `{"data":{"currentUser":{"inventory":{
			"dropCampaignsInProgress":[
			  {"id":"camp-1","name":"Launch Party","status":"ACTIVE",
			   "game":{"id":"g1","name":"Rust","displayName":"Rust","slug":"rust"},
			   "timeBasedDrops":[
			     {"id":"drop-1","name":"Helmet","requiredMinutesWatched":120,
			      "self":{"currentMinutesWatched":45,"isClaimed":false,"dropInstanceID":"inst-1"}}
			   ]}
			],
			"gameEventDrops":[{"id":"ev-1","name":"Rocket League Golden Lantern","totalCount":2}]
		}}}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	campaigns, eventDrops, err := c.GetDropsInventory(context.Background())
	if err != nil {
		t.Fatalf("GetDropsInventory: %v", err)
	}
	if len(campaigns) != 1 || len(campaigns[0].Drops) != 1 {
		t.Fatalf("campaigns = %+v", campaigns)
	}
	drop := campaigns[0].Drops[0]
	if drop.Self == nil || drop.Self.CurrentMinutesWatched != 45 || drop.Self.DropInstanceID != "inst-1" {
		t.Errorf("drop self = %+v", drop.Self)
	}
	if len(eventDrops) != 1 || eventDrops[0].TotalCount != 2 {
		t.Errorf("eventDrops = %+v", eventDrops)
	}
}

func TestGetDropCampaignDetails(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"DropCampaignDetails": `{"data":{"user":{"dropCampaign":{
			"timeBasedDrops":[{"id":"drop-1","name":"Helmet","requiredMinutesWatched":120}]
		}}}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	drops, err := c.GetDropCampaignDetails(context.Background(), "camp-1", "")
	if err != nil {
		t.Fatalf("GetDropCampaignDetails: %v", err)
	}
	if len(drops) != 1 || drops[0].ID != "drop-1" {
		t.Errorf("drops = %+v", drops)
	}
}

func TestClaimDropRewards(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		want    bool
		wantErr bool
	}{
		{"eligible", "ELIGIBLE_FOR_ALL", true, false},
		{"already claimed", "DROP_INSTANCE_ALREADY_CLAIMED", true, false},
		{"ineligible", "USER_NOT_ELIGIBLE", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gqlServer(t, map[string]string{
				"DropsPage_ClaimDropRewards": fmt.Sprintf(
					`{"data":{"claimDropRewards":{"status":"%s"}}}`, tt.status),
			})
			defer srv.Close()

			c := testClient(t, srv)
			claimed, err := c.ClaimDropRewards(context.Background(), "inst-1")
			if claimed != tt.want {
				t.Errorf("claimed = %v, want %v", claimed, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetPlaybackAccessToken(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"PlaybackAccessToken": `{"data":{"streamPlaybackAccessToken":{"value":"{\"channel\":\"x\"}","signature":"sig123"}}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	token, err := c.GetPlaybackAccessToken(context.Background(), "streamer")
	if err != nil {
		t.Fatalf("GetPlaybackAccessToken: %v", err)
	}
	if token.Signature != "sig123" || token.Value == "" {
		t.Errorf("token = %+v", token)
	}
}

func TestGetPlaybackAccessTokenOffline(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"PlaybackAccessToken": `{"data":{"streamPlaybackAccessToken":null}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	if _, err := c.GetPlaybackAccessToken(context.Background(), "streamer"); err == nil {
		t.Error("expected error for null token")
	}
}

func TestGetDirectoryStreams(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"DirectoryPage_Game": `{"data":{"game":{"streams":{"edges":[
			{"node":{"id":"bc-1","broadcaster":{"id":"ch-1","login":"alpha","displayName":"Alpha"},"viewersCount":900}},
			{"node":{"id":"bc-2","broadcaster":{"id":"ch-2","login":"beta","displayName":"Beta"},"viewersCount":400}},
			{"node":{"id":"bc-3","viewersCount":100}}
		]}}}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	streams, err := c.GetDirectoryStreams(context.Background(), "rust", 30)
	if err != nil {
		t.Fatalf("GetDirectoryStreams: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("streams = %d, want 2 (nil broadcaster skipped)", len(streams))
	}
	if streams[0].BroadcasterLogin != "alpha" || streams[0].StreamID != "bc-1" || streams[0].ViewersCount != 900 {
		t.Errorf("streams[0] = %+v", streams[0])
	}
}

func TestGetCurrentSessionContextReturnsRawData(t *testing.T) {
	srv := gqlServer(t, map[string]string{
		"DropCurrentSessionContext": `{"data":{"currentUser":{"dropCurrentSession":{"currentMinutesWatched":12}}}}`,
	})
	defer srv.Close()

	c := testClient(t, srv)
	raw, err := c.GetCurrentSessionContext(context.Background(), "streamer", "ch-1")
	if err != nil {
		t.Fatalf("GetCurrentSessionContext: %v", err)
	}
	want := `{"currentUser":{"dropCurrentSession":{"currentMinutesWatched":12}}}`
	if string(raw) != want {
		t.Errorf("raw = %s", raw)
	}
}
