package app

import (
	"context"
	"errors"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const baseBackoff = 10 * time.Millisecond

// newBackoff doubles from baseBackoff with 50% jitter and allows
// attempts-1 retries after the first call.
func newBackoff(attempts int) retry.Backoff {
	return retry.WithMaxRetries(uint64(max(attempts-1, 0)),
		retry.WithJitterPercent(50, retry.NewExponential(baseBackoff)))
}

// retryTransient runs fn until it succeeds, fails with anything other than
// ErrTransientContention, or attempts run out.
func retryTransient(ctx context.Context, attempts int, log logrus.FieldLogger, op string, fn func() error) error {
	attempt := 0
	return retry.Do(ctx, newBackoff(attempts), func(context.Context) error {
		attempt++
		err := fn()
		if !errors.Is(err, domain.ErrTransientContention) {
			return err
		}
		if attempt < attempts {
			log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
			}).Debug("transient contention, retrying")
		}
		return retry.RetryableError(err)
	})
}
