package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sigfuse/internal/health"
	"sigfuse/internal/logger"
	"sigfuse/internal/provider"
)

const fanoutOverhead = 500 * time.Millisecond

// Fanout dispatches one concurrent, individually time-bounded call per
// eligible provider and waits for every call to settle. A hung provider
// costs at most its own timeout; total latency is bounded by one provider
// timeout plus fixed overhead regardless of provider count.
type Fanout struct {
	registry *provider.Registry
	tracker  *health.Tracker
	timeout  time.Duration
}

func NewFanout(registry *provider.Registry, tracker *health.Tracker, timeout time.Duration) *Fanout {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Fanout{registry: registry, tracker: tracker, timeout: timeout}
}

// Timeout is the per-provider call bound.
func (f *Fanout) Timeout() time.Duration { return f.timeout }

// Gather queries every requested provider concurrently and returns one Result
// per id, including errored and skipped ones. It never returns an error for
// individual provider failures; callers inspect Result.Status. Health
// bookkeeping happens here, after each call settles, so adapters stay
// stateless.
func (f *Fanout) Gather(ctx context.Context, sym string, ids []string) map[string]provider.Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout+fanoutOverhead)
	defer cancel()

	results := make(map[string]provider.Result, len(ids))
	var mu sync.Mutex
	set := func(id string, res provider.Result) {
		mu.Lock()
		results[id] = res
		mu.Unlock()
	}

	var g errgroup.Group
	for _, id := range ids {
		id := id
		adapter, ok := f.registry.Get(id)
		if !ok {
			set(id, provider.Result{
				Provider: id, Symbol: sym, FetchedAt: time.Now(),
				Status: provider.StatusUnavailable, Err: "provider not registered",
			})
			continue
		}
		if !f.tracker.Eligible(id) {
			set(id, provider.Result{
				Provider: id, Symbol: sym, FetchedAt: time.Now(),
				Status: provider.StatusUnavailable, Err: "provider down, cooling off",
			})
			continue
		}
		wasDegraded := f.tracker.State(id) == health.StateDegraded

		g.Go(func() error {
			callCtx, callCancel := context.WithTimeout(ctx, f.timeout)
			defer callCancel()

			res := adapter.Fetch(callCtx, sym)

			switch res.Status {
			case provider.StatusOK, provider.StatusDegraded:
				f.tracker.RecordSuccess(id)
			default:
				f.tracker.RecordFailure(id)
				logger.Debugf("provider %s failed for %s: %s", id, sym, res.Err)
			}

			// A provider that was already degraded before this call delivers
			// lower-trust data even when the call itself succeeds.
			if wasDegraded && res.Status == provider.StatusOK {
				res.Status = provider.StatusDegraded
				if res.Err == "" {
					res.Err = "source health degraded"
				}
			}
			set(id, res)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
