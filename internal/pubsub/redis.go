// Package pubsub shares progress events between server instances over a
// Redis channel, so a progress stream can be served by any instance
// regardless of which one runs the job.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/merchant-import/internal/config"
	"github.com/JonMunkholm/merchant-import/internal/core"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Envelope is the message published for each progress event. The
// merchant travels outside Event, which does not serialize it.
type Envelope struct {
	Origin     string             `json:"origin"`
	MerchantID string             `json:"merchantId"`
	UploadID   string             `json:"uploadId"`
	Event      core.ProgressEvent `json:"event"`
}

// NewOrigin returns an identifier for this process.
func NewOrigin() string {
	return uuid.NewString()
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Broadcaster publishes progress events to a Redis channel. Failures are
// logged and dropped; delivery is at most once.
type Broadcaster struct {
	client  publisher
	channel string
	origin  string
	timeout time.Duration
}

var _ core.Broadcaster = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster for cfg.Channel.
func NewBroadcaster(client *redis.Client, cfg config.RedisConfig, origin string) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel: cfg.Channel,
		origin:  origin,
		timeout: cfg.PublishTimeout,
	}
}

// Publish implements core.Broadcaster.
func (b *Broadcaster) Publish(uploadID string, ev core.ProgressEvent) {
	payload, err := json.Marshal(Envelope{
		Origin:     b.origin,
		MerchantID: ev.MerchantID,
		UploadID:   uploadID,
		Event:      ev,
	})
	if err != nil {
		slog.Error("encode progress event", "upload_id", uploadID, "error", err)
		return
	}

	ctx := context.Background()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		slog.Warn("publish progress event", "upload_id", uploadID, "channel", b.channel, "error", err)
	}
}

// Relay forwards events published by other instances to a local
// broadcaster, normally the service hub.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	target  core.Broadcaster
}

// NewRelay creates a Relay. Events carrying origin are skipped because
// they were already delivered locally.
func NewRelay(client *redis.Client, channel, origin string, target core.Broadcaster) *Relay {
	return &Relay{client: client, channel: channel, origin: origin, target: target}
}

// Run subscribes and forwards until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	slog.Info("progress relay started", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("progress relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("dropping malformed progress message", "error", err)
		return
	}
	if env.Origin == r.origin || env.UploadID == "" || env.MerchantID == "" {
		return
	}
	ev := env.Event
	ev.MerchantID = env.MerchantID
	r.target.Publish(env.UploadID, ev)
}
