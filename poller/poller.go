package poller

import (
	"context"
	"time"

	"contract-engine/config"
	"contract-engine/logger"
	"contract-engine/request"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the poller needs: a queue of requests without a
// terminal status and a place to record each new status.
type Store interface {
	Unresolved(ctx context.Context, limit int) ([]request.Request, error)
	SaveSnapshot(ctx context.Context, resp *request.Response) error
}

// Resolver turns a stored request into its current status.
type Resolver interface {
	ResolveRequest(ctx context.Context, r request.Request) (*request.Response, error)
}

// Poller periodically re-resolves pending requests so that their snapshots
// follow the chain without a client asking for them.
type Poller struct {
	store    Store
	resolver Resolver
	params   config.PollerConfig
}

func New(cfg config.PollerConfig, store Store, resolver Resolver) *Poller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.NumParallelReq <= 0 {
		cfg.NumParallelReq = 1
	}
	if cfg.NewRequestCheckMillis <= 0 {
		cfg.NewRequestCheckMillis = 1000
	}

	return &Poller{store: store, resolver: resolver, params: cfg}
}

// Run polls until ctx is cancelled. A failed round is logged and retried on
// the next tick.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info("Polling pending requests every %d milliseconds", p.params.NewRequestCheckMillis)

	ticker := time.NewTicker(time.Duration(p.params.NewRequestCheckMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Polling round failed: %s", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("Poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce resolves one batch of pending requests in parallel and returns how
// many of them reached a terminal status.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	startTime := time.Now()

	requests, err := p.store.Unresolved(ctx, p.params.BatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "Unresolved")
	}
	if len(requests) == 0 {
		logger.Debug("No pending requests")
		return 0, nil
	}

	terminal := make([]bool, len(requests))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.params.NumParallelReq)
	for i := range requests {
		r := requests[i]
		eg.Go(func() error {
			done, err := p.resolve(ctx, r)
			if err != nil {
				return err
			}
			terminal[i] = done
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, done := range terminal {
		if done {
			count++
		}
	}
	logger.Info(
		"Resolved %d pending requests, %d finished, in %d milliseconds",
		len(requests), count, time.Since(startTime).Milliseconds(),
	)
	return count, nil
}

// resolve records the status of r. Failures specific to one request are
// logged and skipped; only storage failures abort the round.
func (p *Poller) resolve(ctx context.Context, r request.Request) (bool, error) {
	id := request.Common(r).ID

	resp, err := p.resolver.ResolveRequest(ctx, r)
	if err != nil {
		logger.Warnw("Could not resolve request", "request", id, "error", err)
		return false, nil
	}

	if err := p.store.SaveSnapshot(ctx, resp); err != nil {
		return false, errors.Wrapf(err, "SaveSnapshot %s", id)
	}
	if resp.Status.Terminal() {
		logger.Infow("Request finished", "request", id, "kind", resp.Kind, "status", resp.Status, "wallet", resp.Wallet)
	} else {
		logger.Debugw("Request still pending", "request", id, "reason", resp.Reason)
	}
	return resp.Status.Terminal(), nil
}
