// Package health probes the service's own dependencies — the relational
// store, the vector index, and the LLM provider — on a ticker, the same
// fail-threshold-then-flip shape the teacher used to probe remote agent
// endpoints, redirected inward at our own backing services instead of at
// agents we don't operate.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the last-known reachability of one dependency.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency and returns a non-nil error if it's
// unreachable or unhealthy.
type Probe struct {
	Name string
	Run  func(ctx context.Context) error
}

// WebhookDispatchFunc is an optional callback for dispatching health-degraded events.
type WebhookDispatchFunc func(ctx context.Context, eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording health check results.
type MetricsRecordFunc func(success bool)

// Checker runs periodic probes against the service's own dependencies and
// tracks per-dependency health with fail-threshold hysteresis, so a single
// flaky response doesn't flip /healthz.
type Checker struct {
	probes     []Probe
	cfg        Config
	failCounts map[string]int
	statuses   map[string]Status
	mu         sync.Mutex
	onWebhook  WebhookDispatchFunc
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Checker for the given probes.
func New(probes []Probe, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	statuses := make(map[string]Status, len(probes))
	for _, p := range probes {
		statuses[p.Name] = StatusUnknown
	}

	return &Checker{
		probes:     probes,
		cfg:        cfg,
		failCounts: make(map[string]int),
		statuses:   statuses,
		logger:     logger,
	}
}

// SetWebhookDispatch configures the webhook dispatch callback.
func (c *Checker) SetWebhookDispatch(fn WebhookDispatchFunc) {
	c.onWebhook = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until quit is signalled.
func (c *Checker) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll runs every probe concurrently and updates per-dependency status.
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range c.probes {
		wg.Add(1)
		go func(probe Probe) {
			defer wg.Done()
			c.runOne(ctx, probe)
		}(p)
	}
	wg.Wait()
}

func (c *Checker) runOne(ctx context.Context, probe Probe) {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	err := probe.Run(probeCtx)
	success := err == nil

	if c.onMetrics != nil {
		c.onMetrics(success)
	}

	c.mu.Lock()
	prevCount := c.failCounts[probe.Name]
	if success {
		c.failCounts[probe.Name] = 0
	} else {
		c.failCounts[probe.Name]++
	}
	count := c.failCounts[probe.Name]
	c.mu.Unlock()

	if success {
		c.setStatus(probe.Name, StatusHealthy)
		if prevCount >= c.cfg.FailThreshold {
			c.logger.Info("health: recovered", zap.String("dependency", probe.Name))
		}
		return
	}

	if count == c.cfg.FailThreshold {
		c.setStatus(probe.Name, StatusDegraded)
		c.logger.Warn("health: degraded", zap.String("dependency", probe.Name), zap.Int("fail_count", count), zap.Error(err))
		if c.onWebhook != nil {
			c.onWebhook(ctx, "dependency.health_degraded", map[string]string{
				"dependency": probe.Name,
				"error":      err.Error(),
			})
		}
	}
}

func (c *Checker) setStatus(name string, s Status) {
	c.mu.Lock()
	c.statuses[name] = s
	c.mu.Unlock()
}

// Snapshot returns the current status of every probed dependency, for
// /healthz to render.
func (c *Checker) Snapshot() map[string]Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Status, len(c.statuses))
	for k, v := range c.statuses {
		out[k] = v
	}
	return out
}

// Ready reports whether every dependency is currently healthy or unknown
// (not yet probed) — used to gate a 200 vs 503 on /healthz.
func (c *Checker) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.statuses {
		if s == StatusDegraded {
			return false
		}
	}
	return true
}
