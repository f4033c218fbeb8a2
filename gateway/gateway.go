package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/replypipe/replypipe/analytics"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// PoolSize bounds concurrently outstanding provider calls.
	PoolSize int
	// FailureThreshold trips the breaker once reached inside FailureWindow.
	FailureThreshold int
	// FailureWindow is the rolling window for counting transient failures.
	FailureWindow time.Duration
	// CoolDown is the initial OPEN hold before a half-open probe.
	CoolDown time.Duration
	// MaxCoolDown caps the exponentially extended cool-down.
	MaxCoolDown time.Duration
	// MaxAttempts bounds the retry loop (first call included).
	MaxAttempts int
	// RetryBase is the initial backoff delay.
	RetryBase time.Duration
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration
	// CostPerKTokensCents estimates spend per capability (cents per 1000 tokens).
	CostPerKTokensCents map[Capability]int64
	// Fallback overrides the deterministic degradation path.
	Fallback Fallback
	// Sink receives degraded-mode and cost events. Never blocks the caller.
	Sink analytics.Sink
	// Metrics, when set, exports breaker and pool gauges after each call.
	Metrics *analytics.Metrics
	// Logger receives structured gateway logs.
	Logger logging.Logger
}

// Gateway mediates all calls to the external model provider. See package doc
// for the resilience contract.
type Gateway struct {
	provider Provider
	fallback Fallback
	pool     *pool
	breaker  *breaker
	ledger   *CostLedger
	sink     analytics.Sink
	metrics  *analytics.Metrics
	logger   logging.Logger

	maxAttempts int
	retryBase   time.Duration
	callTimeout time.Duration
	costPerK    map[Capability]int64

	// sleep is swapped in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// StatusReport is the health surface exposed to operational tooling.
type StatusReport struct {
	CircuitState  string                `json:"circuit_state"`
	FailureCount  int                   `json:"failure_count"`
	PoolAvailable int                   `json:"pool_available"`
	PoolActive    int                   `json:"pool_active"`
	TotalUsage    AgentUsage            `json:"total_usage"`
	AgentUsage    map[string]AgentUsage `json:"agent_usage"`
}

// New constructs a Gateway over the given provider with optional overrides.
func New(provider Provider, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		PoolSize:         8,
		FailureThreshold: 5,
		FailureWindow:    30 * time.Second,
		CoolDown:         10 * time.Second,
		MaxCoolDown:      5 * time.Minute,
		MaxAttempts:      5,
		RetryBase:        time.Second,
		CallTimeout:      10 * time.Second,
		CostPerKTokensCents: map[Capability]int64{
			CapabilityClassify: 2,
			CapabilityGenerate: 15,
			CapabilityEmbed:    1,
		},
		Fallback: NewDefaultFallback(),
		Sink:     analytics.NoopSink{},
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Gateway{
		provider:    provider,
		fallback:    opts.Fallback,
		pool:        newPool(opts.PoolSize),
		breaker:     newBreaker(opts.FailureThreshold, opts.FailureWindow, opts.CoolDown, opts.MaxCoolDown),
		ledger:      NewCostLedger(),
		sink:        opts.Sink,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		callTimeout: opts.CallTimeout,
		costPerK:    opts.CostPerKTokensCents,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// Invoke executes one capability call with pooling, retries, circuit
// breaking and fallback. The error return is non-nil only for non-transient
// upstream failures and caller cancellation; provider outages surface as a
// degraded fallback response instead.
func (g *Gateway) Invoke(ctx context.Context, capability Capability, req Request) (Response, error) {
	start := time.Now()
	defer g.observeHealth()

	resp, err := g.invokeUpstream(ctx, capability, req)
	if err == nil {
		cost := g.estimateCost(capability, resp.Usage.TotalTokens)
		resp.CostCents = cost
		g.ledger.Add(req.Agent, resp.Usage.TotalTokens, cost)
		g.logModelCall(capability, resp.Usage.TotalTokens, time.Since(start), false, nil)
		g.sink.Record(analytics.Event{
			Stage:     "gateway." + string(capability),
			Outcome:   "ok",
			Duration:  time.Since(start),
			Tokens:    resp.Usage.TotalTokens,
			CostCents: cost,
		})
		return resp, nil
	}

	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	if ce, ok := AsCallError(err); ok && !ce.Transient() {
		// Malformed requests and auth failures are pipeline-level failures,
		// never masked by fallback.
		g.logModelCall(capability, 0, time.Since(start), false, err)
		g.sink.Record(analytics.Event{
			Stage:    "gateway." + string(capability),
			Outcome:  "invalid",
			Duration: time.Since(start),
			Error:    err.Error(),
		})
		return Response{}, err
	}

	// Circuit open or retries exhausted: degrade deterministically.
	fb := g.fallback.Invoke(capability, req)
	fb.Degraded = true
	g.logModelCall(capability, 0, time.Since(start), true, err)
	g.logger.Warn("serving fallback response", "capability", string(capability), "cause", err.Error())
	g.sink.Record(analytics.Event{
		Stage:    "gateway." + string(capability),
		Outcome:  "fallback",
		Duration: time.Since(start),
		Degraded: true,
		Error:    err.Error(),
	})
	return fb, nil
}

// invokeUpstream runs the retry loop. Each attempt acquires a fresh lease so
// a lease is never carried (or leaked) across retries.
func (g *Gateway) invokeUpstream(ctx context.Context, capability Capability, req Request) (Response, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		admitted, probe := g.breaker.allow()
		if !admitted {
			return Response{}, ErrCircuitOpen
		}

		resp, err := g.attempt(ctx, capability, req)
		if err == nil {
			g.breaker.onSuccess(probe)
			return resp, nil
		}

		if ctx.Err() != nil {
			// Caller cancellation is not a provider failure.
			return Response{}, ctx.Err()
		}

		ce, ok := AsCallError(err)
		if ok && !ce.Transient() {
			// The provider answered; it just rejected the request. That
			// proves liveness, so a probe still closes the circuit.
			g.breaker.onSuccess(probe)
			return Response{}, err
		}

		g.breaker.onFailure(probe)
		lastErr = err
		g.logger.Warn("upstream attempt failed", "capability", string(capability), "attempt", attempt, "error", err.Error())

		if attempt < g.maxAttempts {
			if err := g.sleep(ctx, g.backoff(attempt)); err != nil {
				return Response{}, err
			}
		}
	}

	return Response{}, fmt.Errorf("retries exhausted after %d attempts: %w", g.maxAttempts, lastErr)
}

// attempt performs exactly one pooled, deadline-bounded provider call.
func (g *Gateway) attempt(ctx context.Context, capability Capability, req Request) (Response, error) {
	lease, err := g.pool.acquire(ctx)
	if err != nil {
		return Response{}, err
	}
	defer lease.Release()

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	resp, err := g.provider.Invoke(callCtx, capability, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Response{}, NewCallError(FailureTimeout, 0, err)
		}
		return Response{}, err
	}
	return resp, nil
}

// backoff returns the jittered exponential delay for the given attempt
// (base 1s, factor 2, full jitter).
func (g *Gateway) backoff(attempt int) time.Duration {
	d := g.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return time.Duration(rand.Int63n(int64(d)) + 1)
}

func (g *Gateway) estimateCost(capability Capability, tokens int) core.Money {
	perK := g.costPerK[capability]
	if perK == 0 || tokens == 0 {
		return 0
	}
	// Round up so cost is never underreported.
	return core.Money((int64(tokens)*perK + 999) / 1000)
}

// modelCallLogger is the optional logger upgrade for model call telemetry;
// logging.PipelineLogger implements it.
type modelCallLogger interface {
	LogModelCall(capability string, tokens int, dur time.Duration, degraded bool, err error)
}

func (g *Gateway) logModelCall(capability Capability, tokens int, dur time.Duration, degraded bool, err error) {
	if ml, ok := g.logger.(modelCallLogger); ok {
		ml.LogModelCall(string(capability), tokens, dur, degraded, err)
	}
}

// observeHealth exports the breaker state and pool occupancy gauges so the
// scrape surface reflects reality, not registration-time zeros.
func (g *Gateway) observeHealth() {
	if g.metrics == nil {
		return
	}
	g.metrics.CircuitState.Set(float64(g.breaker.State()))
	g.metrics.PoolActive.Set(float64(g.pool.active()))
}

// CircuitState returns the breaker's current state.
func (g *Gateway) CircuitState() CircuitState { return g.breaker.State() }

// Ledger exposes the cost ledger for read access.
func (g *Gateway) Ledger() *CostLedger { return g.ledger }

// Status reports circuit, pool and ledger state for external monitoring.
func (g *Gateway) Status() StatusReport {
	return StatusReport{
		CircuitState:  g.breaker.State().String(),
		FailureCount:  g.breaker.failureCount(),
		PoolAvailable: g.pool.available(),
		PoolActive:    g.pool.active(),
		TotalUsage:    g.ledger.Total(),
		AgentUsage:    g.ledger.Snapshot(),
	}
}
