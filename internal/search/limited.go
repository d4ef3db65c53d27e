package search

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited throttles calls to an underlying provider.
type Limited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewLimited allows perMinute calls per minute with a burst of one.
// perMinute <= 0 disables limiting.
func NewLimited(next Provider, perMinute int) *Limited {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return &Limited{next: next, limiter: lim}
}

func (l *Limited) Search(ctx context.Context, query string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Search(ctx, query)
}
