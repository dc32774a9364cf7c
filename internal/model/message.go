package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType represents the type of a PubSub message for routing.
type MessageType string

// Message types for PubSub events.
const (
	// Drop messages on the user-drop-events topic.
	MsgTypeDropProgress MessageType = "drop-progress"
	MsgTypeDropClaim    MessageType = "drop-claim"

	// Stream messages on the video-playback-by-id topic.
	MsgTypeStreamUp   MessageType = "stream-up"
	MsgTypeStreamDown MessageType = "stream-down"
	MsgTypeViewCount  MessageType = "viewcount"
)

// Message represents a parsed PubSub message.
type Message struct {
	Topic      string         `json:"topic"`
	TopicID    string         `json:"topic_id"`
	RawMessage map[string]any `json:"message"`
	Type       MessageType    `json:"type"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Identifier string         `json:"identifier"`
}

// ParseMessage creates a Message from raw PubSub data.
func ParseMessage(topicFull string, rawMessageJSON []byte) (*Message, error) {
	topic, topicID := splitTopic(topicFull)

	var msgBody map[string]any
	if err := json.Unmarshal(rawMessageJSON, &msgBody); err != nil {
		return nil, fmt.Errorf("failed to parse message body: %w", err)
	}

	msgType := ""
	if t, ok := msgBody["type"].(string); ok {
		msgType = t
	}

	var data map[string]any
	if d, ok := msgBody["data"].(map[string]any); ok {
		data = d
	}

	msg := &Message{
		Topic:      topic,
		TopicID:    topicID,
		RawMessage: msgBody,
		Type:       MessageType(msgType),
		Data:       data,
	}

	msg.Timestamp = msg.resolveTimestamp()
	msg.Identifier = fmt.Sprintf("%s.%s.%s", msg.Type, msg.Topic, msg.TopicID)

	return msg, nil
}

// DropID returns the drop id of a drop-progress message.
func (m *Message) DropID() string {
	if m.Data == nil {
		return ""
	}
	if id, ok := m.Data["drop_id"].(string); ok {
		return id
	}
	return ""
}

// CurrentProgressMin returns the progress minutes of a drop-progress message.
func (m *Message) CurrentProgressMin() int {
	if m.Data == nil {
		return 0
	}
	if v, ok := m.Data["current_progress_min"].(float64); ok {
		return int(v)
	}
	return 0
}

// DropInstanceID returns the instance id of a drop-claim message.
func (m *Message) DropInstanceID() string {
	if m.Data == nil {
		return ""
	}
	if id, ok := m.Data["drop_instance_id"].(string); ok {
		return id
	}
	return ""
}

func (m *Message) resolveTimestamp() time.Time {
	if m.Data != nil {
		if ts, ok := m.Data["timestamp"].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				return t
			}
		}
	}
	if st, ok := m.RawMessage["server_time"].(float64); ok {
		return time.Unix(int64(st), 0).UTC()
	}
	return time.Now().UTC()
}

// String returns a string representation of the message.
func (m *Message) String() string {
	return fmt.Sprintf("Message(type=%s, topic=%s, id=%s)", m.Type, m.Topic, m.TopicID)
}

func splitTopic(topicFull string) (string, string) {
	for i := len(topicFull) - 1; i >= 0; i-- {
		if topicFull[i] == '.' {
			return topicFull[:i], topicFull[i+1:]
		}
	}
	return topicFull, ""
}
