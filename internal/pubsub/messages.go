// Package pubsub implements the Twitch PubSub WebSocket protocol. A pool
// spreads topics over several connections, keeps them alive with
// ping/pong, and reconnects dropped connections with exponential backoff.
package pubsub

import "encoding/json"

// Wire-level frame types. PING, LISTEN and UNLISTEN travel client to
// server; the rest come back.
const (
	opPing      = "PING"
	opPong      = "PONG"
	opListen    = "LISTEN"
	opUnlisten  = "UNLISTEN"
	opMessage   = "MESSAGE"
	opResponse  = "RESPONSE"
	opReconnect = "RECONNECT"
)

// frame is an outbound client frame. Nonce correlates LISTEN/UNLISTEN
// frames with their RESPONSE acknowledgement.
type frame struct {
	Type  string     `json:"type"`
	Nonce string     `json:"nonce,omitempty"`
	Data  *frameData `json:"data,omitempty"`
}

type frameData struct {
	Topics    []string `json:"topics"`
	AuthToken string   `json:"auth_token"`
}

func listenFrame(nonce string, topics []string, token string) frame {
	return frame{
		Type:  opListen,
		Nonce: nonce,
		Data:  &frameData{Topics: topics, AuthToken: token},
	}
}

func unlistenFrame(nonce string, topics []string, token string) frame {
	return frame{
		Type:  opUnlisten,
		Nonce: nonce,
		Data:  &frameData{Topics: topics, AuthToken: token},
	}
}

func pingFrame() frame {
	return frame{Type: opPing}
}

// serverFrame is an inbound frame. Data is only present on MESSAGE frames
// and Error only on RESPONSE frames.
type serverFrame struct {
	Type  string          `json:"type"`
	Nonce string          `json:"nonce,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// messagePayload is the body of a MESSAGE frame. Message is a second
// layer of JSON encoded as a string.
type messagePayload struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}
