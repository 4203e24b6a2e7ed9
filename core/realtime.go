package core

import "context"

type (
	// Subscription delivers the payloads published on a channel until Close is called.
	Subscription interface {
		Messages() <-chan []byte
		Close() error
	}

	// Broker is a publish/subscribe transport for realtime events.
	Broker interface {
		Publish(ctx context.Context, channel string, payload []byte) error
		Subscribe(ctx context.Context, channel string) (Subscription, error)
	}
)
