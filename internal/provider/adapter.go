package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/site"
)

type registration struct {
	client  Client
	timeout time.Duration
}

// Adapter is the registry of provider clients. It enforces per-call timeouts
// and turns every failure into a classified site.Result. It never retries.
type Adapter struct {
	mu      sync.RWMutex
	regs    map[string]registration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = logging.Component(l, "provider") }
}

// WithMetrics records provider calls on m.
func WithMetrics(m *metrics.Metrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

// NewAdapter creates an empty adapter.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		regs:   make(map[string]registration),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds a client under id. A zero timeout leaves the call bounded
// only by the caller's context.
func (a *Adapter) Register(id string, c Client, timeout time.Duration) error {
	if id == "" {
		return errors.New("provider: empty id")
	}
	if c == nil {
		return fmt.Errorf("provider: %s: nil client", id)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.regs[id]; dup {
		return fmt.Errorf("provider: %s: already registered", id)
	}
	a.regs[id] = registration{client: c, timeout: timeout}
	return nil
}

// Has reports whether id is registered.
func (a *Adapter) Has(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.regs[id]
	return ok
}

// IDs returns the registered provider IDs, sorted.
func (a *Adapter) IDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.regs))
	for id := range a.regs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Invoke performs exactly one call to provider id.
//
// A context that is already done short-circuits to a Cancelled failure
// without touching the client. Timeouts, transport errors, non-2xx
// responses, unknown IDs and client panics all become ProviderUnavailable.
func (a *Adapter) Invoke(ctx context.Context, id string, req Request) (res site.Result[*Response]) {
	op := "provider " + id
	if err := ctx.Err(); err != nil {
		return site.Failure[*Response](site.KindCancelled, site.NewError(site.KindCancelled, op, err))
	}

	a.mu.RLock()
	reg, ok := a.regs[id]
	a.mu.RUnlock()
	if !ok {
		return site.Failure[*Response](site.KindProviderUnavailable,
			site.NewError(site.KindProviderUnavailable, op, errors.New("not registered")))
	}

	callCtx := ctx
	if reg.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, reg.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("provider panicked", "provider", id, "stage", req.Stage, "panic", r)
			a.metrics.ObserveProvider(id, "panic", time.Since(start))
			res = site.Failure[*Response](site.KindProviderUnavailable,
				site.NewError(site.KindProviderUnavailable, op, fmt.Errorf("panic: %v", r)))
		}
	}()

	resp, err := reg.client.Invoke(callCtx, req)
	latency := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		a.logger.Info("provider call cancelled", "provider", id, "stage", req.Stage, "latency", latency)
		a.metrics.ObserveProvider(id, "cancelled", latency)
		return site.Failure[*Response](site.KindCancelled, site.NewError(site.KindCancelled, op, err))
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", reg.timeout, err)
		}
		a.logger.Warn("provider unavailable", "provider", id, "stage", req.Stage, "latency", latency, "error", err)
		a.metrics.ObserveProvider(id, "unavailable", latency)
		return site.Failure[*Response](site.KindProviderUnavailable, site.NewError(site.KindProviderUnavailable, op, err))
	case resp == nil:
		a.metrics.ObserveProvider(id, "unavailable", latency)
		return site.Failure[*Response](site.KindProviderUnavailable,
			site.NewError(site.KindProviderUnavailable, op, errors.New("empty response")))
	}

	out := *resp
	out.Provider = id
	out.Latency = latency
	a.logger.Info("provider call", "provider", id, "stage", req.Stage, "latency", latency)
	a.metrics.ObserveProvider(id, "ok", latency)
	return site.Success(&out, false)
}
