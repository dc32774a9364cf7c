package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/wrosek/twitch-drops-go/internal/auth"
	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/logger"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Connection represents a single WebSocket connection to the Twitch PubSub
// server. Each connection can subscribe to up to MaxTopicsPerConn topics.
type Connection struct {
	mu sync.Mutex

	index         int
	conn          *websocket.Conn
	topics        []*model.PubSubTopic
	pendingTopics []*model.PubSubTopic

	lastPong    time.Time
	isConnected bool

	pingInterval time.Duration
	pongTimeout  time.Duration

	messages chan *model.Message
	writeCh  chan []byte

	auth auth.Provider
	log  *logger.Logger

	nonceToTopic map[string]string

	dedupe messageDedupe
}

// messageDedupe suppresses redelivery of the last message. Twitch repeats
// a message on every connection that shares its topic.
type messageDedupe struct {
	timestamp  time.Time
	identifier string
}

// seen records the message and reports whether it duplicates the previous one.
func (d *messageDedupe) seen(msg *model.Message) bool {
	if d.identifier == msg.Identifier && d.timestamp.Equal(msg.Timestamp) {
		return true
	}
	d.timestamp = msg.Timestamp
	d.identifier = msg.Identifier
	return false
}

// NewConnection dials the PubSub server at url and returns a Connection.
func NewConnection(ctx context.Context, index int, url string, authProvider auth.Provider, log *logger.Logger) (*Connection, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{})
	if err != nil {
		return nil, fmt.Errorf("dialing PubSub server: %w", err)
	}

	conn.SetReadLimit(128 << 10) // 128 KB

	connection := &Connection{
		index:        index,
		conn:         conn,
		topics:       make([]*model.PubSubTopic, 0, constants.MaxTopicsPerConn),
		messages:     make(chan *model.Message, 32),
		writeCh:      make(chan []byte, 64),
		auth:         authProvider,
		log:          log,
		nonceToTopic: make(map[string]string),
		lastPong:     time.Now(),
		isConnected:  true,
		pingInterval: constants.PubSubPingInterval,
		pongTimeout:  constants.PubSubPongTimeout,
	}

	return connection, nil
}

// Subscribe sends LISTEN messages for the given topics with the auth token.
func (c *Connection) Subscribe(topics []*model.PubSubTopic) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, topic := range topics {
		if c.hasTopic(topic) {
			continue
		}
		c.topics = append(c.topics, topic)

		if !c.isConnected {
			c.pendingTopics = append(c.pendingTopics, topic)
			continue
		}

		if err := c.sendListen(topic); err != nil {
			return fmt.Errorf("subscribing to topic %s: %w", topic, err)
		}
	}
	return nil
}

// Unsubscribe sends UNLISTEN messages for the given topics.
func (c *Connection) Unsubscribe(topics []*model.PubSubTopic) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	topicStrings := make([]string, 0, len(topics))
	for _, topic := range topics {
		topicStrings = append(topicStrings, topic.String())
	}

	nonce := auth.GenerateHex(16)
	if err := c.send(unlistenFrame(nonce, topicStrings, c.auth.AuthToken())); err != nil {
		c.log.Error("Failed to unlisten from topics",
			"conn", c.index, "topics", topicStrings, "error", err)
		return err
	}

	for _, topic := range topics {
		c.removeTopic(topic)
	}

	c.log.Debug("Unlistened from topics", "conn", c.index, "topics", topicStrings)
	return nil
}

// Run starts the read loop, write loop, and ping loop for this connection.
// It blocks until the context is cancelled or a fatal error occurs.
func (c *Connection) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)

	c.enqueuePing()

	c.mu.Lock()
	for _, topic := range c.pendingTopics {
		if err := c.sendListen(topic); err != nil {
			c.log.Error("Failed to subscribe pending topic",
				"conn", c.index, "topic", topic, "error", err)
		}
	}
	c.pendingTopics = nil
	c.mu.Unlock()

	go c.pingLoop(ctx)

	return c.readLoop(ctx)
}

// Close gracefully closes the WebSocket connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isConnected = false
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
	close(c.messages)
}

// Messages returns the channel on which parsed PubSub messages are delivered.
func (c *Connection) Messages() <-chan *model.Message {
	return c.messages
}

// TopicCount returns the number of currently subscribed topics.
func (c *Connection) TopicCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics)
}

// HasCapacity returns true if the connection can accept more topics.
func (c *Connection) HasCapacity() bool {
	return c.TopicCount() < constants.MaxTopicsPerConn
}

// Topics returns a copy of the currently subscribed topics.
func (c *Connection) Topics() []*model.PubSubTopic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.PubSubTopic, len(c.topics))
	copy(out, c.topics)
	return out
}

// IsConnected returns whether the connection is currently active.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var resp serverFrame
		err := wsjson.Read(ctx, c.conn, &resp)
		if err != nil {
			c.mu.Lock()
			c.isConnected = false
			c.mu.Unlock()

			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("WebSocket read error", "conn", c.index, "error", err)
			return fmt.Errorf("read error on conn #%d: %w", c.index, err)
		}

		c.handleFrame(ctx, &resp)
	}
}

func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			err := c.conn.Write(ctx, websocket.MessageText, data)
			if err != nil {
				c.log.Error("WebSocket write error", "conn", c.index, "error", err)
			}
		}
	}
}

func (c *Connection) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	// a connection is considered dead once a full ping interval plus the
	// pong grace period passes without a PONG
	staleAfter := c.pingInterval + c.pongTimeout

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			elapsed := time.Since(c.lastPong)
			connected := c.isConnected
			c.mu.Unlock()

			if !connected {
				return
			}

			if elapsed > staleAfter {
				c.log.Warn("No PONG received, closing connection",
					"conn", c.index, "elapsed", elapsed.Round(time.Second))
				c.mu.Lock()
				c.isConnected = false
				c.mu.Unlock()
				// force the read loop out of its blocked read so the
				// pool's reconnect path engages
				c.conn.Close(websocket.StatusGoingAway, "pong timeout")
				return
			}

			c.enqueuePing()
		}
	}
}

func (c *Connection) handleFrame(ctx context.Context, resp *serverFrame) {
	switch resp.Type {
	case opPong:
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()

	case opReconnect:
		c.log.Info("Reconnection requested by server", "conn", c.index)
		c.mu.Lock()
		c.isConnected = false
		c.mu.Unlock()

	case opResponse:
		c.mu.Lock()
		failedTopic := c.nonceToTopic[resp.Nonce]
		delete(c.nonceToTopic, resp.Nonce)
		c.mu.Unlock()

		if resp.Error != "" {
			c.log.Error("PubSub LISTEN error",
				"conn", c.index,
				"error", resp.Error,
				"topic", failedTopic,
				"nonce", resp.Nonce,
			)
			if resp.Error == "ERR_BADAUTH" {
				c.log.Error("Received ERR_BADAUTH, auth token may be expired or invalid",
					"conn", c.index)
			}
		}

	case opMessage:
		c.handleMessage(ctx, resp.Data)
	}
}

func (c *Connection) handleMessage(ctx context.Context, rawData json.RawMessage) {
	var msgData messagePayload
	if err := json.Unmarshal(rawData, &msgData); err != nil {
		c.log.Error("Failed to parse MESSAGE data", "conn", c.index, "error", err)
		return
	}

	msg, err := model.ParseMessage(msgData.Topic, []byte(msgData.Message))
	if err != nil {
		c.log.Error("Failed to parse PubSub message",
			"conn", c.index, "topic", msgData.Topic, "error", err)
		return
	}

	c.mu.Lock()
	dup := c.dedupe.seen(msg)
	c.mu.Unlock()
	if dup {
		return
	}

	select {
	case c.messages <- msg:
	case <-ctx.Done():
	}
}

func (c *Connection) sendListen(topic *model.PubSubTopic) error {
	nonce := auth.GenerateHex(16)
	topicStr := topic.String()
	c.nonceToTopic[nonce] = topicStr

	c.log.Debug("Subscribing to topic", "conn", c.index, "topic", topicStr)
	return c.send(listenFrame(nonce, []string{topicStr}, c.auth.AuthToken()))
}

func (c *Connection) send(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}

	select {
	case c.writeCh <- data:
		return nil
	default:
		return fmt.Errorf("write channel full on conn #%d", c.index)
	}
}

func (c *Connection) enqueuePing() {
	if err := c.send(pingFrame()); err != nil {
		c.log.Warn("Dropping PING", "conn", c.index, "error", err)
		return
	}
	c.log.Debug("Sent PING", "conn", c.index)
}

func (c *Connection) hasTopic(topic *model.PubSubTopic) bool {
	topicStr := topic.String()
	return slices.ContainsFunc(c.topics, func(t *model.PubSubTopic) bool {
		return t.String() == topicStr
	})
}

func (c *Connection) removeTopic(topic *model.PubSubTopic) {
	topicStr := topic.String()
	match := func(t *model.PubSubTopic) bool { return t.String() == topicStr }

	if i := slices.IndexFunc(c.topics, match); i >= 0 {
		c.topics = slices.Delete(c.topics, i, i+1)
		return
	}
	if i := slices.IndexFunc(c.pendingTopics, match); i >= 0 {
		c.pendingTopics = slices.Delete(c.pendingTopics, i, i+1)
	}
}
