package subsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// Nudge asks every session of a user to re-check its subscription now.
// Billing webhooks publish it so that a purchase shows up before the next poll.
type Nudge struct {
	UserID string `json:"user_id"`
}

// UserChecker runs an immediate check for all sessions of a user. *Manager implements it.
type UserChecker interface {
	CheckUser(ctx context.Context, userID string) (int, error)
}

// RedisNudger turns nudges published on a Redis channel into immediate
// checks. Polling keeps working when Redis is unavailable.
type RedisNudger struct {
	client  redis.UniversalClient
	channel string
	checker UserChecker
	log     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

type NudgerOption func(*RedisNudger)

func WithNudgeChannel(name string) NudgerOption {
	return func(n *RedisNudger) {
		if name = strings.TrimSpace(name); name != "" {
			n.channel = name
		}
	}
}

func WithNudgerLogger(l *slog.Logger) NudgerOption {
	return func(n *RedisNudger) {
		if l != nil {
			n.log = l
		}
	}
}

// NewRedisNudger creates a nudger. It panics if client or checker is nil.
func NewRedisNudger(client redis.UniversalClient, checker UserChecker, opts ...NudgerOption) *RedisNudger {
	if client == nil {
		panic("subsync: redis client is required")
	}
	if checker == nil {
		panic("subsync: user checker is required")
	}
	n := &RedisNudger{
		client:  client,
		channel: DefaultNudgeChannel,
		checker: checker,
		log:     logger.Discard(),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With(logger.Component("subsync.nudger"), slog.String("channel", n.channel))
	return n
}

// Ready is closed once the subscription to the channel is confirmed.
func (n *RedisNudger) Ready() <-chan struct{} {
	return n.ready
}

// Run listens for nudges until ctx ends.
func (n *RedisNudger) Run(ctx context.Context) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.channel, err)
	}
	n.readyOnce.Do(func() { close(n.ready) })
	n.log.InfoContext(ctx, "listening for subscription nudges")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n.handle(ctx, msg.Payload)
		}
	}
}

func (n *RedisNudger) handle(ctx context.Context, payload string) {
	nudge, err := ParseNudge([]byte(payload))
	if err != nil {
		n.log.WarnContext(ctx, "dropping malformed nudge", logger.Error(err))
		return
	}
	changed, err := n.checker.CheckUser(ctx, nudge.UserID)
	if err != nil {
		n.log.WarnContext(ctx, "nudged check failed", logger.UserID(nudge.UserID), logger.Error(err))
		return
	}
	n.log.DebugContext(ctx, "nudge handled", logger.UserID(nudge.UserID), slog.Int("changed", changed))
}

// ParseNudge decodes a nudge payload.
func ParseNudge(payload []byte) (Nudge, error) {
	var n Nudge
	if err := json.Unmarshal(payload, &n); err != nil {
		return Nudge{}, errors.Join(ErrInvalidNudge, err)
	}
	if strings.TrimSpace(n.UserID) == "" {
		return Nudge{}, errors.Join(ErrInvalidNudge, ErrMissingUser)
	}
	return n, nil
}

// Publisher sends nudges to the channel a RedisNudger listens on.
type Publisher struct {
	client  redis.UniversalClient
	channel string
}

// NewPublisher creates a publisher for channel, or DefaultNudgeChannel when empty.
func NewPublisher(client redis.UniversalClient, channel string) *Publisher {
	if client == nil {
		panic("subsync: redis client is required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultNudgeChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Nudge publishes a nudge for userID.
func (p *Publisher) Nudge(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	payload, err := json.Marshal(Nudge{UserID: userID})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
