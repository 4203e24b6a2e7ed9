package realtime

import (
	"context"
	"sync"

	"github.com/alphazero/academy/core"
)

// bufferSize is how many events a subscriber may lag behind before events get dropped.
const bufferSize = 64

// LocalBroker delivers events within the current process only.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*localSubscription]struct{}
}

var _ core.Broker = (*LocalBroker)(nil)

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[*localSubscription]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[channel] {
		select {
		case sub.out <- append([]byte{}, payload...):
		default: // slow consumer, drop
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, channel string) (core.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &localSubscription{broker: b, channel: channel, out: make(chan []byte, bufferSize)}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*localSubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Subscribers counts the live subscriptions of a channel.
func (b *LocalBroker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

func (b *LocalBroker) unsubscribe(sub *localSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs[sub.channel], sub)
	if len(b.subs[sub.channel]) == 0 {
		delete(b.subs, sub.channel)
	}
	close(sub.out)
}

type localSubscription struct {
	broker  *LocalBroker
	channel string
	out     chan []byte
	once    sync.Once
}

func (s *localSubscription) Messages() <-chan []byte { return s.out }

func (s *localSubscription) Close() error {
	s.once.Do(func() { s.broker.unsubscribe(s) })
	return nil
}
