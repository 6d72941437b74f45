package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront-api/internal/metrics"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// Sweeper deletes PayPal orders that were opened but never paid.
type Sweeper struct {
	Orders *repository.OrderRepo
	MaxAge time.Duration
	Events EventSink
	Log    *logrus.Entry
}

// Sweep removes every pending provider order created before now-MaxAge
// and returns how many were deleted.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.MaxAge).UTC()
	n, err := s.Orders.SweepStale(ctx, cutoff)
	if err != nil {
		return 0, Wrap(KindInternal, err, "could not delete stale orders")
	}
	metrics.OrdersSwept(n)
	if n > 0 {
		if s.Log != nil {
			s.Log.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("stale pending orders swept")
		}
		if s.Events != nil {
			l := s.Log
			if l == nil {
				l = logrus.NewEntry(logrus.StandardLogger())
			}
			publish(ctx, s.Events, queue.OrderEvent{Type: queue.OrdersSwept, Count: n, At: now.UTC()}, l)
		}
	}
	return n, nil
}

// Run is the cron entry point.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Sweep(ctx, time.Now()); err != nil && s.Log != nil {
		s.Log.WithError(err).Error("sweep failed")
	}
}
