package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiredTokenStore removes refresh records whose expiry has passed.
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PruneExpiredTokens deletes expired refresh records once immediately and
// then every interval until ctx is cancelled.
func PruneExpiredTokens(ctx context.Context, store ExpiredTokenStore, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n, err := store.DeleteExpired(ctx, time.Now().UTC())
		switch {
		case err != nil && ctx.Err() == nil:
			log.WithError(err).Warn("prune refresh tokens failed")
		case n > 0:
			log.WithField("deleted", n).Info("pruned expired refresh tokens")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
