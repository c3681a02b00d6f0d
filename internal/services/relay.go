package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"chatserver/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Real-time event names. The same constants are used on the wire for both
// the relay envelope and the frames delivered to websocket clients.
const (
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventOnlineUsersList    = "online_users_list"
	EventUserJoinedRoom     = "user_joined_room"
	EventUserLeftRoom       = "user_left_conversation"
	EventMessageReceived    = "message_received"
	EventUserTyping         = "user_typing"
	EventMessageReadReceipt = "message_read_receipt"
)

const (
	relayGlobalChannel     = "chat:global"
	relayRoomChannelPrefix = "chat:room:"
	relayPattern           = "chat:*"
)

// RelayEvent is the envelope published through Redis. Room is zero for
// global events. ExcludeUserID lets a broadcast skip its originator on every
// instance (typing indicators are not echoed back to the typist).
type RelayEvent struct {
	Event         string      `json:"event"`
	Room          uint        `json:"room,omitempty"`
	ExcludeUserID uint        `json:"exclude_user_id,omitempty"`
	Payload       interface{} `json:"payload,omitempty"`
}

// RelayHandler receives every event the relay observes, already decoded.
type RelayHandler func(ev RelayEvent)

// Relay fans real-time events out across process instances over Redis
// pub/sub. Every instance publishes into the relay and receives its own
// events back through the subscription, so local and remote subscribers of a
// room observe messages in the same order: Redis delivers per-channel
// publishes in order and a single goroutine drains the subscription.
type Relay struct {
	rdb     *redis.Client
	handler RelayHandler
	log     zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRelay(rdb *redis.Client, handler RelayHandler) *Relay {
	return &Relay{
		rdb:     rdb,
		handler: handler,
		log:     logger.Module("relay"),
	}
}

// Start subscribes to all chat channels and begins dispatching events to the
// handler. It returns once the subscription is established.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return nil
	}

	pubsub := r.rdb.PSubscribe(ctx, relayPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("relay subscribe: %w", err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		for msg := range pubsub.Channel() {
			var ev RelayEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed relay event")
				continue
			}
			if ev.Room == 0 {
				// Older publishers may omit the room from the envelope;
				// recover it from the channel name.
				ev.Room = roomFromChannel(msg.Channel)
			}
			r.handler(ev)
		}
	}()

	r.log.Info().Msg("relay subscription established")
	return nil
}

// Close tears down the subscription and waits for the dispatch loop to stop.
func (r *Relay) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

// PublishRoom publishes an event to one conversation room on all instances.
func (r *Relay) PublishRoom(ctx context.Context, roomID uint, ev RelayEvent) error {
	ev.Room = roomID
	return r.publish(ctx, roomChannel(roomID), ev)
}

// PublishGlobal publishes an event visible to every connected client.
func (r *Relay) PublishGlobal(ctx context.Context, ev RelayEvent) error {
	ev.Room = 0
	return r.publish(ctx, relayGlobalChannel, ev)
}

func (r *Relay) publish(ctx context.Context, channel string, ev RelayEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, channel, data).Err()
}

func roomChannel(roomID uint) string {
	return fmt.Sprintf("%s%d", relayRoomChannelPrefix, roomID)
}

func roomFromChannel(channel string) uint {
	raw, ok := strings.CutPrefix(channel, relayRoomChannelPrefix)
	if !ok {
		return 0
	}
	var id uint
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0
	}
	return id
}
