package realtime

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/alphazero/academy/core"
)

// RedisBroker fans events out through Redis pub/sub so every API instance sees them.
type RedisBroker struct {
	client redis.UniversalClient
}

var _ core.Broker = (*RedisBroker)(nil)

func NewRedisBroker(client redis.UniversalClient) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return errors.Wrap(b.client.Publish(ctx, channel, payload).Err(), "publishing")
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (core.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "subscribing")
	}

	sub := &redisSubscription{pubsub: pubsub, out: make(chan []byte, bufferSize), done: make(chan struct{})}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	msgs := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			default: // slow consumer, drop
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
