package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "collection changed" signals from writers to feeds.
type Notifier interface {
	Notify(ctx context.Context, collection string) error

	// Listen returns a channel that receives a value after each change. It is
	// closed when ctx is done or the underlying transport goes away.
	Listen(ctx context.Context, collection string) (<-chan struct{}, error)
}

// ---- Redis ----

// RedisNotifier fans change signals out over Redis pub/sub so feeds in
// every server process see writes made by any of them.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier constructs a RedisNotifier on an existing client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func changesChannel(collection string) string {
	return "docstore:changes:" + collection
}

// Notify publishes a change signal for collection.
func (n *RedisNotifier) Notify(ctx context.Context, collection string) error {
	if err := n.client.Publish(ctx, changesChannel(collection), collection).Err(); err != nil {
		return fmt.Errorf("publishing change for %s: %w", collection, err)
	}
	return nil
}

// Listen subscribes to the collection's channel and waits for Redis to
// confirm the subscription before returning.
func (n *RedisNotifier) Listen(ctx context.Context, collection string) (<-chan struct{}, error) {
	ps := n.client.Subscribe(ctx, changesChannel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to changes for %s: %w", collection, err)
	}

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

// ---- in-process ----

// LocalNotifier signals feeds within a single process.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

// NewLocalNotifier constructs an empty LocalNotifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]map[chan struct{}]struct{})}
}

// Notify signals every listener of collection.
func (n *LocalNotifier) Notify(_ context.Context, collection string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners[collection] {
		signal(ch)
	}
	return nil
}

// Listen registers a listener until ctx is done.
func (n *LocalNotifier) Listen(ctx context.Context, collection string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.listeners[collection] == nil {
		n.listeners[collection] = make(map[chan struct{}]struct{})
	}
	n.listeners[collection][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.listeners[collection], ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

// signal performs a non-blocking send; a pending signal already covers the
// new change.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
