package sweeper

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

// Expirer is the slice of the expiry service the sweeper drives.
type Expirer interface {
	SweepExpired(ctx context.Context) ([]domain.Reservation, error)
	ExpireTerminalEventCredits(ctx context.Context) (int, error)
}

// Locker elects a single sweeping process per interval.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	locker   Locker
	log      logrus.FieldLogger
}

type Option func(*Sweeper)

// WithLocker makes every tick conditional on holding the lock.
func WithLocker(l Locker) Option {
	return func(s *Sweeper) { s.locker = l }
}

func New(expirer Expirer, interval time.Duration, log logrus.FieldLogger, opts ...Option) *Sweeper {
	s := &Sweeper{
		expirer:  expirer,
		interval: interval,
		log:      log.WithField("component", "sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval.String()).Info("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if s.locker != nil {
		ok, err := s.locker.TryAcquire(ctx)
		if err != nil {
			s.log.WithError(err).Warn("sweeper lock unavailable")
			return
		}
		if !ok {
			s.log.Debug("another process holds the sweeper lock")
			return
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithError(err).Warn("release sweeper lock")
			}
		}()
	}

	start := time.Now()
	expired, err := s.expirer.SweepExpired(ctx)
	if err != nil {
		s.log.WithError(err).Error("sweep expired reservations")
	}
	for _, r := range expired {
		s.log.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"unit_id":        r.UnitID,
			"quantity":       r.Quantity,
		}).Debug("reservation expired")
	}

	credits, err := s.expirer.ExpireTerminalEventCredits(ctx)
	if err != nil {
		s.log.WithError(err).Error("expire free credits of finished events")
	}

	if len(expired) > 0 || credits > 0 {
		s.log.WithFields(logrus.Fields{
			"reservations": len(expired),
			"credits":      credits,
			"duration":     time.Since(start).String(),
		}).Info("sweep completed")
	}
}
