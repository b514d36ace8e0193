// Package metrics collects runtime statistics for compliance runs, both as
// an in-memory snapshot and as Prometheus series.
package metrics

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for reasoning calls)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	TotalInputTokens  *int64 `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64 `json:"total_output_tokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Embedding     *OperationSnapshot `json:"embedding,omitempty"`
	Reasoning     *OperationSnapshot `json:"reasoning,omitempty"`
	Retrieval     *OperationSnapshot `json:"retrieval,omitempty"`
	IndexBuild    *OperationSnapshot `json:"index_build,omitempty"`
	IndexStore    *OperationSnapshot `json:"index_store,omitempty"`
	ChunksDropped int64              `json:"chunks_dropped"`
	Verdicts      map[string]int64   `json:"verdicts"`
	Tasks         map[string]int64   `json:"tasks"`
}

// Operation names for the collector.
const (
	OpEmbedding  = "embedding"
	OpReasoning  = "reasoning"
	OpRetrieval  = "retrieval"
	OpIndexBuild = "index_build"
	OpIndexStore = "index_store"
)

// Collector aggregates runtime statistics. All methods are thread-safe and
// a nil *Collector is a valid no-op collector.
type Collector struct {
	mu            sync.RWMutex
	startTime     time.Time
	ops           map[string]*OperationMetrics
	chunksDropped int64
	verdicts      map[string]int64
	tasks         map[string]int64

	registry     *prometheus.Registry
	opDuration   *prometheus.HistogramVec
	opFailures   *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	verdictTotal *prometheus.CounterVec
	taskTotal    *prometheus.CounterVec
	dropped      prometheus.Counter
	running      prometheus.Gauge
}

// NewCollector creates a collector with its own Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		verdicts:  make(map[string]int64),
		tasks:     make(map[string]int64),
		registry:  prometheus.NewRegistry(),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "complycheck",
			Name:      "operation_duration_seconds",
			Help:      "Duration of embedding, reasoning, retrieval and index operations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"operation"}),
		opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "complycheck",
			Name:      "operation_failures_total",
			Help:      "Failed operations by type.",
		}, []string{"operation"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "complycheck",
			Name:      "reasoning_tokens_total",
			Help:      "Tokens consumed by reasoning calls.",
		}, []string{"direction"}),
		verdictTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "complycheck",
			Name:      "requirement_verdicts_total",
			Help:      "Evaluated requirements by verdict.",
		}, []string{"status"}),
		taskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "complycheck",
			Name:      "tasks_finished_total",
			Help:      "Tasks reaching a terminal state.",
		}, []string{"status"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "complycheck",
			Name:      "chunks_dropped_total",
			Help:      "Chunks left out of an index after embedding retries were exhausted.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "complycheck",
			Name:      "tasks_running",
			Help:      "Tasks currently processing.",
		}),
	}

	c.registry.MustRegister(
		c.opDuration, c.opFailures, c.tokens, c.verdictTotal, c.taskTotal, c.dropped, c.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming records one completed operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.getOrCreate(op).observe(duration)
	c.mu.Unlock()

	c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFailure records one failed operation.
func (c *Collector) RecordFailure(op string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.getOrCreate(op).Failures++
	c.mu.Unlock()

	c.opFailures.WithLabelValues(op).Inc()
}

// RecordLLMUsage records timing and token usage for a reasoning call.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	m := c.getOrCreate(op)
	m.observe(duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
	c.mu.Unlock()

	c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
	c.tokens.WithLabelValues("input").Add(float64(inputTokens))
	c.tokens.WithLabelValues("output").Add(float64(outputTokens))
}

// RecordChunksDropped counts chunks that could not be embedded.
func (c *Collector) RecordChunksDropped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.mu.Lock()
	c.chunksDropped += int64(n)
	c.mu.Unlock()

	c.dropped.Add(float64(n))
}

// RecordVerdict counts one evaluated requirement by status.
func (c *Collector) RecordVerdict(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.verdicts[status]++
	c.mu.Unlock()

	c.verdictTotal.WithLabelValues(status).Inc()
}

// TaskStarted marks a task as processing.
func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.running.Inc()
}

// TaskFinished records a task reaching the given terminal status.
// started reports whether TaskStarted was called for it.
func (c *Collector) TaskFinished(status string, started bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasks[status]++
	c.mu.Unlock()

	if started {
		c.running.Dec()
	}
	c.taskTotal.WithLabelValues(status).Inc()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTokens bool) *OperationSnapshot {
	if m == nil || (m.Count == 0 && m.Failures == 0) {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if m.Count > 0 {
		snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
		snap.MinTimeMs = m.MinTime.Milliseconds()
	}

	if includeTokens && (m.TotalInputTokens > 0 || m.TotalOutputTokens > 0) {
		totalIn := m.TotalInputTokens
		totalOut := m.TotalOutputTokens
		snap.TotalInputTokens = &totalIn
		snap.TotalOutputTokens = &totalOut
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	verdicts := make(map[string]int64, len(c.verdicts))
	for k, v := range c.verdicts {
		verdicts[k] = v
	}
	tasks := make(map[string]int64, len(c.tasks))
	for k, v := range c.tasks {
		tasks[k] = v
	}

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Embedding:     snapshotOp(c.ops[OpEmbedding], false),
		Reasoning:     snapshotOp(c.ops[OpReasoning], true),
		Retrieval:     snapshotOp(c.ops[OpRetrieval], false),
		IndexBuild:    snapshotOp(c.ops[OpIndexBuild], false),
		IndexStore:    snapshotOp(c.ops[OpIndexStore], false),
		ChunksDropped: c.chunksDropped,
		Verdicts:      verdicts,
		Tasks:         tasks,
	}
}
