// Package redisbridge fans live events out across instances over Redis pub/sub.
//
// Every instance publishes dispatcher calls to one channel and delivers what it
// receives to its local registry, so a user connected to any instance gets the
// event. When publishing fails the call is delivered locally instead.
package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/followgraph/internal/platform/telemetry/metrics"
	"github.com/louisbranch/followgraph/internal/platform/timeouts"
	"github.com/louisbranch/followgraph/internal/services/social/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by every instance.
const DefaultChannel = "followgraph:events"

// Observer records relayed deliveries.
type Observer interface {
	ObserveLiveEvent(event, outcome string)
}

type envelope struct {
	UserIDs   []string  `json:"userIds,omitempty"`
	Broadcast bool      `json:"broadcast,omitempty"`
	Event     wireEvent `json:"event"`
}

type wireEvent struct {
	Name    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type publishFunc func(ctx context.Context, channel string, payload []byte) error

// Bridge is a domain.Dispatcher that relays through Redis.
type Bridge struct {
	local    domain.Dispatcher
	channel  string
	publish  publishFunc
	observer Observer

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	closeSub func() error
}

// Open connects to Redis at addr and verifies the connection.
func Open(ctx context.Context, addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  timeouts.RedisDial,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.RedisDial)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// New builds a bridge publishing on channel and delivering into local.
func New(client *redis.Client, local domain.Dispatcher, channel string, observer Observer) *Bridge {
	b := newBridge(local, channel, func(ctx context.Context, channel string, payload []byte) error {
		return client.Publish(ctx, channel, payload).Err()
	}, observer)
	return b
}

func newBridge(local domain.Dispatcher, channel string, publish publishFunc, observer Observer) *Bridge {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{
		local:    local,
		channel:  channel,
		publish:  publish,
		observer: observer,
	}
}

// Start subscribes to the channel and delivers messages until Close.
func (b *Bridge) Start(ctx context.Context, client *redis.Client) error {
	sub := client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.startConsumer(sub.Channel(), sub.Close)
	log.Printf("followgraph: relaying live events via redis channel %s", b.channel)
	return nil
}

func (b *Bridge) startConsumer(messages <-chan *redis.Message, closeSub func() error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	b.cancel = cancel
	b.done = done
	b.closeSub = closeSub
	b.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.handleMessage(ctx, msg.Payload)
			}
		}
	}()
}

// Close stops the subscriber and waits for it to exit.
func (b *Bridge) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	cancel, done, closeSub := b.cancel, b.done, b.closeSub
	b.cancel, b.done, b.closeSub = nil, nil, nil
	b.mu.Unlock()

	var err error
	if closeSub != nil {
		err = closeSub()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return err
}

// NotifyUser relays event to userID.
func (b *Bridge) NotifyUser(ctx context.Context, userID string, event domain.Event) {
	b.NotifyUsers(ctx, []string{userID}, event)
}

// NotifyUsers relays event to each user.
func (b *Bridge) NotifyUsers(ctx context.Context, userIDs []string, event domain.Event) {
	if err := b.relay(ctx, envelope{UserIDs: userIDs}, event); err != nil {
		log.Printf("followgraph: redis relay %s failed, delivering locally: %v", event.Name, err)
		b.local.NotifyUsers(ctx, userIDs, event)
	}
}

// Broadcast relays event to every connection on every instance.
func (b *Bridge) Broadcast(ctx context.Context, event domain.Event) {
	if err := b.relay(ctx, envelope{Broadcast: true}, event); err != nil {
		log.Printf("followgraph: redis relay %s failed, delivering locally: %v", event.Name, err)
		b.local.Broadcast(ctx, event)
	}
}

func (b *Bridge) relay(ctx context.Context, env envelope, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	env.Event = wireEvent{Name: event.Name, Payload: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	// Dispatch runs after commit; a cancelled request must not drop the event.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.EventPublish)
	defer cancel()
	if err := b.publish(publishCtx, b.channel, body); err != nil {
		return err
	}
	if b.observer != nil {
		b.observer.ObserveLiveEvent(event.Name, metrics.OutcomeRelayed)
	}
	return nil
}

func (b *Bridge) handleMessage(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("followgraph: drop malformed redis envelope: %v", err)
		return
	}
	if strings.TrimSpace(env.Event.Name) == "" {
		log.Printf("followgraph: drop redis envelope without event type")
		return
	}
	event := domain.Event{Name: env.Event.Name, Payload: env.Event.Payload}
	if env.Broadcast {
		b.local.Broadcast(ctx, event)
		return
	}
	b.local.NotifyUsers(ctx, env.UserIDs, event)
}

var _ domain.Dispatcher = (*Bridge)(nil)
