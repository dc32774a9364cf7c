package watcher

import (
	"encoding/json"

	"github.com/wrosek/twitch-drops-go/internal/jsonutil"
)

// probeResult is the normalized view of a drop-progress probe. The API
// returns the session context in several shapes depending on client
// generation; parseProbe folds them all into this struct.
type probeResult struct {
	DropID          string
	DropInstanceID  string
	DropName        string
	CurrentMinutes  int
	RequiredMinutes int
	IsClaimed       bool
}

// parseProbe extracts the current drop session from a raw GQL response.
// Accepted envelopes, newest first:
//
//	currentUser.dropCurrentSession
//	currentSession
//	user.dropCurrentSessionContext
//
// Inside the envelope both the flat mobile shape and the nested web
// shape (drop{} / self{}) are tolerated. A probe is valid only when it
// carries a positive required-minutes or some drop identifier.
func parseProbe(raw json.RawMessage) (*probeResult, bool) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, false
	}

	session := findSession(root)
	if session == nil {
		return nil, false
	}

	drop := jsonutil.MapFromMap(session, "drop")
	self := jsonutil.MapFromMap(session, "self")
	if drop == nil {
		drop = session
	}
	if self == nil {
		self = session
	}

	res := &probeResult{
		CurrentMinutes:  pickInt(self, session, "currentMinutesWatched"),
		RequiredMinutes: pickInt(drop, session, "requiredMinutesWatched"),
		IsClaimed:       jsonutil.BoolFromMap(self, "isClaimed") || jsonutil.BoolFromMap(session, "isClaimed"),
		DropInstanceID:  pickString(self, session, "dropInstanceID"),
	}

	res.DropID = jsonutil.StringFromMap(drop, "id")
	if res.DropID == "" {
		res.DropID = jsonutil.StringFromMap(session, "dropID")
	}
	if res.DropID == "" {
		res.DropID = jsonutil.StringFromMap(session, "dropId")
	}

	res.DropName = probeDropName(drop, session, self)

	if res.RequiredMinutes <= 0 && res.DropID == "" && res.DropInstanceID == "" {
		return nil, false
	}
	return res, true
}

func findSession(root map[string]any) map[string]any {
	if cu := jsonutil.MapFromMap(root, "currentUser"); cu != nil {
		if s := jsonutil.MapFromMap(cu, "dropCurrentSession"); s != nil {
			return s
		}
	}
	if s := jsonutil.MapFromMap(root, "currentSession"); s != nil {
		return s
	}
	if u := jsonutil.MapFromMap(root, "user"); u != nil {
		if s := jsonutil.MapFromMap(u, "dropCurrentSessionContext"); s != nil {
			return s
		}
	}
	return nil
}

// probeDropName resolves the drop name through the fallback chain:
// drop.name, context dropName, self.dropName, first benefit name, and
// finally the literal "Active Drop".
func probeDropName(drop, session, self map[string]any) string {
	if name := jsonutil.StringFromMap(drop, "name"); name != "" {
		return name
	}
	if name := jsonutil.StringFromMap(session, "dropName"); name != "" {
		return name
	}
	if name := jsonutil.StringFromMap(self, "dropName"); name != "" {
		return name
	}
	if edges, ok := drop["benefitEdges"].([]any); ok {
		for _, e := range edges {
			edge, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if benefit := jsonutil.MapFromMap(edge, "benefit"); benefit != nil {
				if name := jsonutil.StringFromMap(benefit, "name"); name != "" {
					return name
				}
			}
		}
	}
	return "Active Drop"
}

func pickInt(primary, fallback map[string]any, key string) int {
	if _, ok := primary[key]; ok {
		return jsonutil.IntFromMap(primary, key)
	}
	return jsonutil.IntFromMap(fallback, key)
}

func pickString(primary, fallback map[string]any, key string) string {
	if s := jsonutil.StringFromMap(primary, key); s != "" {
		return s
	}
	return jsonutil.StringFromMap(fallback, key)
}
