package docstore

import (
	"context"
	"errors"
	"fmt"
)

type lister interface {
	List(ctx context.Context, collection string) ([]Document, error)
}

// feed re-lists a collection whenever its notifier signals a change.
type feed struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (f *feed) Unsubscribe() {
	f.cancel()
	<-f.done
}

// subscribe starts listening before the first list so no change between the
// two is lost. Notifications are coalesced: one re-list covers every change
// signalled while the previous snapshot was being delivered.
func subscribe(
	ctx context.Context,
	l lister,
	n Notifier,
	collection string,
	onSnapshot func([]Document),
	onError func(error),
) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := n.Listen(ctx, collection)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("listening for changes on %s: %w", collection, err)
	}

	f := &feed{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer cancel()

		for {
			docs, err := l.List(ctx, collection)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(fmt.Errorf("listing %s: %w", collection, err))
				return
			}
			onSnapshot(docs)

			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					if ctx.Err() == nil {
						onError(fmt.Errorf("change feed for %s: %w", collection, ErrFeedClosed))
					}
					return
				}
			}
		}
	}()

	return f, nil
}

// ErrFeedClosed is reported when the notifier stops delivering changes.
var ErrFeedClosed = errors.New("feed closed")
