package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// ReadinessCheck is implemented by stores that can report whether their
// backing service is reachable.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

// Checker periodically evaluates a set of readiness checks and serves the
// combined result over HTTP.
type Checker struct {
	checks []ReadinessCheck
	ready  atomic.Bool
}

func NewChecker(checks ...ReadinessCheck) *Checker {
	return &Checker{checks: checks}
}

// Run re-evaluates every check on an interval until ctx is cancelled.
// Starts pessimistic.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ready := true

			for _, check := range c.checks {
				cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
				err := check.IsReady(cctx)
				cancel()

				if err != nil {
					ready = false
					break
				}
			}

			c.ready.Store(ready)
		}
	}
}

func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
