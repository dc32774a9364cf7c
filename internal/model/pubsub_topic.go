package model

import "fmt"

// PubSubTopicType identifies the category of a PubSub topic.
type PubSubTopicType int

const (
	// PubSubTopicUserDropEvents tracks the user's drop progress and claims.
	PubSubTopicUserDropEvents PubSubTopicType = iota
	// PubSubTopicVideoPlayback tracks stream up/down for a channel.
	PubSubTopicVideoPlayback
)

var topicNames = map[PubSubTopicType]string{
	PubSubTopicUserDropEvents: "user-drop-events",
	PubSubTopicVideoPlayback:  "video-playback-by-id",
}

// String returns the Twitch topic string prefix for this topic type.
func (t PubSubTopicType) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return "unknown"
}

// PubSubTopic represents a PubSub subscription topic. UserID is the
// authenticated user's id for user topics and the channel id otherwise.
type PubSubTopic struct {
	TopicType PubSubTopicType `json:"topic_type"`
	ID        string          `json:"id"`
}

// NewUserTopic creates a PubSubTopic scoped to the authenticated user.
func NewUserTopic(topicType PubSubTopicType, userID string) *PubSubTopic {
	return &PubSubTopic{TopicType: topicType, ID: userID}
}

// NewChannelTopic creates a PubSubTopic scoped to a channel.
func NewChannelTopic(topicType PubSubTopicType, channelID string) *PubSubTopic {
	return &PubSubTopic{TopicType: topicType, ID: channelID}
}

// IsUserTopic reports whether the topic is scoped to the authenticated
// user rather than to a channel.
func (pt *PubSubTopic) IsUserTopic() bool {
	return pt.TopicType == PubSubTopicUserDropEvents
}

// String returns the full topic string in the format "topic_name.id".
func (pt *PubSubTopic) String() string {
	return fmt.Sprintf("%s.%s", pt.TopicType, pt.ID)
}
