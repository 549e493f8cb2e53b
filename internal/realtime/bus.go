package realtime

import (
	"context"
	"encoding/json"
)

// TypeNotify is the envelope type of every fan-out message.
const TypeNotify = "notify"

type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Bus delivers an envelope to every connection that joined group.
// Delivery is fire-and-forget.
type Bus interface {
	Publish(ctx context.Context, group string, env Envelope) error
}

// GroupForUser is the channel a user's connections listen on.
func GroupForUser(userID string) string {
	return "user_" + userID
}

// LocalBus hands envelopes straight to an in-process hub. Used when no
// Redis is configured and in tests.
type LocalBus struct {
	hub *Hub
}

func NewLocalBus(hub *Hub) *LocalBus {
	return &LocalBus{hub: hub}
}

func (b *LocalBus) Publish(_ context.Context, group string, env Envelope) error {
	msg, err := json.Marshal(env)
	if err != nil {
		return err
	}

	b.hub.Deliver(group, msg)
	return nil
}
