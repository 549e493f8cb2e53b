package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "insighthub:"

// RedisBus publishes envelopes on Redis pub/sub so every API process can
// forward them to the connections it holds.
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, group string, env Envelope) error {
	msg, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return b.rdb.Publish(ctx, channelPrefix+group, msg).Err()
}

// Run subscribes to every user group and forwards messages to hub until ctx is done.
func (b *RedisBus) Run(ctx context.Context, hub *Hub) error {
	ps := b.rdb.PSubscribe(ctx, channelPrefix+GroupForUser("*"))
	defer ps.Close()

	// wait for the subscription to be confirmed so start up errors surface here
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	b.log.Info("realtime.subscribed", "pattern", channelPrefix+GroupForUser("*"))

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			group := strings.TrimPrefix(msg.Channel, channelPrefix)
			hub.Deliver(group, []byte(msg.Payload))
		}
	}
}

// Serve keeps Run going until ctx is done, resubscribing with backoff when
// the connection to Redis drops.
func (b *RedisBus) Serve(ctx context.Context, hub *Hub) {
	attempt := 0

	for {
		started := time.Now()
		err := b.Run(ctx, hub)

		if ctx.Err() != nil {
			return
		}

		// a subscription that held for a while starts the schedule over
		if time.Since(started) > backoffCap {
			attempt = 0
		}

		delay := backoff(attempt)
		b.log.Warn("realtime.subscription_lost", "err", err, "retry_in", delay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		attempt++
	}
}
