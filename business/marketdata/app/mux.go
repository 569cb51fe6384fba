package app

import (
	"context"
	"sync"
)

// Merge fans K feed streams into a single event stream. Per-source FIFO
// order is preserved; no cross-source ordering is imposed beyond arrival.
// A terminated source's final error is forwarded and the survivors keep
// flowing. The output channel closes once every source has closed.
//
// The output buffer is 1, matching the per-adapter buffers: a slow
// consumer slows the sockets instead of growing a queue.
func Merge(ctx context.Context, feeds ...<-chan FeedEvent) <-chan FeedEvent {
	out := make(chan FeedEvent, 1)

	var wg sync.WaitGroup
	wg.Add(len(feeds))
	for _, feed := range feeds {
		go func(feed <-chan FeedEvent) {
			defer wg.Done()
			for {
				select {
				case event, ok := <-feed:
					if !ok {
						return
					}
					select {
					case out <- event:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(feed)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
