package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetchFunc loads the list a Poller keeps fresh.
type FetchFunc func(ctx context.Context) ([]Booking, error)

// Poller refreshes a booking list on a fixed interval. A result is dropped if
// any mutation was in flight when the poll started or began before it
// finished, so a poll never overwrites a pending optimistic update.
type Poller struct {
	client   *Client
	interval time.Duration
	fetch    FetchFunc
	onUpdate func([]Booking)
}

// NewPoller creates a Poller. onUpdate receives every accepted result.
func NewPoller(c *Client, interval time.Duration, fetch FetchFunc, onUpdate func([]Booking)) *Poller {
	return &Poller{client: c, interval: interval, fetch: fetch, onUpdate: onUpdate}
}

// ClientBookings polls the caller's client-side list.
func ClientBookings(c *Client, opts ListOptions) FetchFunc {
	return func(ctx context.Context) ([]Booking, error) {
		p, err := c.ListClientBookings(ctx, opts)
		if err != nil {
			return nil, err
		}
		return p.Data, nil
	}
}

// BrokerBookings polls the broker-side list.
func BrokerBookings(c *Client, opts ListOptions) FetchFunc {
	return func(ctx context.Context) ([]Booking, error) {
		p, err := c.ListBrokerBookings(ctx, opts)
		if err != nil {
			return nil, err
		}
		return p.Data, nil
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
// Poll errors are logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.client.logger.Warn("booking poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one fetch and reports whether its result was applied.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	before, busy := p.client.mutationSnapshot()
	if busy {
		return false, nil
	}

	list, err := p.fetch(ctx)
	if err != nil {
		return false, err
	}

	after, busy := p.client.mutationSnapshot()
	if busy || after != before {
		return false, nil
	}

	if p.client.cache != nil {
		p.client.cache.PutList(list)
	}
	if p.onUpdate != nil {
		p.onUpdate(list)
	}
	return true, nil
}

// RefreshReviews asks the server, concurrently, which of the bookings have
// been reviewed. Bookings the cache already knows are reviewed are skipped.
func (c *Client) RefreshReviews(ctx context.Context, bookingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var mu sync.Mutex
	out := make(map[uuid.UUID]bool, len(bookingIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range bookingIDs {
		g.Go(func() error {
			has, err := c.HasReview(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = has
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
