package model

import "testing"

func TestParseMessageDropProgress(t *testing.T) {
	raw := []byte(`{"type":"drop-progress","data":{"drop_id":"d1","current_progress_min":45,"required_progress_min":60}}`)
	msg, err := ParseMessage("user-drop-events.12345", raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != MsgTypeDropProgress {
		t.Errorf("Type = %s, want drop-progress", msg.Type)
	}
	if msg.Topic != "user-drop-events" || msg.TopicID != "12345" {
		t.Errorf("topic split = %s/%s", msg.Topic, msg.TopicID)
	}
	if msg.DropID() != "d1" {
		t.Errorf("DropID = %q, want d1", msg.DropID())
	}
	if msg.CurrentProgressMin() != 45 {
		t.Errorf("CurrentProgressMin = %d, want 45", msg.CurrentProgressMin())
	}
}

func TestParseMessageDropClaim(t *testing.T) {
	raw := []byte(`{"type":"drop-claim","data":{"drop_instance_id":"i1"}}`)
	msg, err := ParseMessage("user-drop-events.12345", raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != MsgTypeDropClaim {
		t.Errorf("Type = %s, want drop-claim", msg.Type)
	}
	if msg.DropInstanceID() != "i1" {
		t.Errorf("DropInstanceID = %q, want i1", msg.DropInstanceID())
	}
}

func TestParseMessageStreamEvents(t *testing.T) {
	raw := []byte(`{"type":"stream-up","server_time":1700000000,"play_delay":0}`)
	msg, err := ParseMessage("video-playback-by-id.999", raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != MsgTypeStreamUp {
		t.Errorf("Type = %s, want stream-up", msg.Type)
	}
	if msg.TopicID != "999" {
		t.Errorf("TopicID = %s, want 999", msg.TopicID)
	}
	if msg.Timestamp.Unix() != 1700000000 {
		t.Errorf("Timestamp = %v", msg.Timestamp)
	}
}

func TestParseMessageInvalidJSON(t *testing.T) {
	if _, err := ParseMessage("user-drop-events.1", []byte("{nope")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestPubSubTopicString(t *testing.T) {
	user := NewUserTopic(PubSubTopicUserDropEvents, "42")
	if got := user.String(); got != "user-drop-events.42" {
		t.Errorf("user topic = %q", got)
	}
	channel := NewChannelTopic(PubSubTopicVideoPlayback, "777")
	if got := channel.String(); got != "video-playback-by-id.777" {
		t.Errorf("channel topic = %q", got)
	}
}
