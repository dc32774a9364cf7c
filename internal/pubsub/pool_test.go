package pubsub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

func TestPoolReconnectSwapsConnection(t *testing.T) {
	var dials atomic.Int32
	srv := newWSServer(t, func(ctx context.Context, ws *websocket.Conn) {
		if dials.Add(1) == 1 {
			// wait for the LISTEN, then drop the connection
			ws.Read(ctx)
			ws.Close(websocket.StatusGoingAway, "restarting")
			return
		}
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(fakeAuth{}, testLogger(t), nil)
	p.url = wsURL(srv)

	topic := model.NewUserTopic(model.PubSubTopicUserDropEvents, "42")
	if err := p.Subscribe(ctx, []*model.PubSubTopic{topic}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	p.mu.Lock()
	first := p.conns[0]
	p.mu.Unlock()

	go p.Run(ctx)

	deadline := time.After(5 * time.Second)
	for {
		p.mu.Lock()
		swapped := p.conns[0] != first
		p.mu.Unlock()
		if swapped {
			break
		}
		select {
		case <-deadline:
			t.Fatal("dead connection was never replaced in the pool")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// leave more than a full backoff window; a replacement that keeps
	// failing would dial again within a second
	time.Sleep(1500 * time.Millisecond)
	if got := dials.Load(); got != 2 {
		t.Errorf("dials = %d, want 2 (one reconnect)", got)
	}

	p.mu.Lock()
	replacement := p.conns[0]
	p.mu.Unlock()
	if replacement.TopicCount() != 1 {
		t.Errorf("topics on replacement = %d, want 1", replacement.TopicCount())
	}
	if !replacement.IsConnected() {
		t.Error("replacement connection not connected")
	}
	if p.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount = %d, want 1", p.ConnectionCount())
	}
}
