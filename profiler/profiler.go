// Package profiler - periodic runtime and pipeline reports through zap.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-arlocalize/logger"
)

// MetricsCollector is polled on every sample for gauge-like values.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler samples memory, goroutines and registered collectors and
// logs a summary every report interval. It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started time.Time
	running bool

	memStats    runtime.MemStats
	goroutines  int
	lastGCCount uint32

	metrics    map[string]*MetricTracker
	operations map[string]*TimeTracker
	collectors []MetricsCollector
}

// MetricTracker keeps a bounded window of values for one metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker keeps a bounded window of durations for one operation.
type TimeTracker struct {
	durations []time.Duration
	total     time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval is how often a report is logged (default: 10s).
	ReportInterval time.Duration
	// SampleInterval is how often runtime stats and collectors are sampled (default: 500ms).
	SampleInterval time.Duration
	// MaxSamples bounds every metric window (default: 600).
	MaxSamples int
	// Logger receives reports; nil uses the process logger.
	Logger *zap.Logger
}

// NewRuntimeProfiler creates a stopped profiler.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 500 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         logger.Or(opts.Logger).Named("profiler"),
		started:        time.Now(),
		metrics:        make(map[string]*MetricTracker),
		operations:     make(map[string]*TimeTracker),
	}
}

// Start launches the sampling and reporting goroutines. Calling it on a
// running profiler does nothing.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.started = time.Now()
	rp.ctx, rp.cancel = context.WithCancel(context.Background())

	rp.wg.Add(2)
	go rp.loop(rp.ctx, rp.sampleInterval, rp.Sample)
	go rp.loop(rp.ctx, rp.reportInterval, rp.Report)
}

// Stop stops the goroutines and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

func (rp *RuntimeProfiler) loop(ctx context.Context, interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled on every sample.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric adds one value to a named metric.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(name, value)
}

func (rp *RuntimeProfiler) record(name string, value float64) {
	tracker, ok := rp.metrics[name]
	if !ok {
		tracker = &MetricTracker{min: value, max: value}
		rp.metrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++
	tracker.min = min(tracker.min, value)
	tracker.max = max(tracker.max, value)
}

// StartOperation begins timing an operation.
//
// Returns:
//   - A function to call when the operation completes.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration adds one duration to a named operation.
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operations[name]
	if !ok {
		tracker = &TimeTracker{min: d, max: d}
		rp.operations[name] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	tracker.total += d
	if len(tracker.durations) > rp.maxSamples {
		tracker.total -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	tracker.min = min(tracker.min, d)
	tracker.max = max(tracker.max, d)
}

// Sample reads runtime stats and polls every collector once.
func (rp *RuntimeProfiler) Sample() {
	rp.mu.Lock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.Unlock()

	// Collectors may take their own locks; poll them unlocked.
	polled := make([]map[string]float64, len(collectors))
	for i, c := range collectors {
		polled[i] = c.CollectMetrics()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.Lock()
	defer rp.mu.Unlock()

	rp.memStats = mem
	rp.goroutines = runtime.NumGoroutine()
	for _, metrics := range polled {
		for name, value := range metrics {
			rp.record(name, value)
		}
	}
}

// MetricSummary is the windowed summary of one metric.
type MetricSummary struct {
	Name    string
	Avg     float64
	Min     float64
	Max     float64
	Last    float64
	Samples int
}

// OperationSummary is the windowed summary of one operation.
type OperationSummary struct {
	Name  string
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// Snapshot is a point-in-time copy of everything the profiler tracks.
type Snapshot struct {
	Uptime     time.Duration
	Goroutines int
	HeapAlloc  uint64
	Sys        uint64
	NumGC      uint32
	Metrics    []MetricSummary
	Operations []OperationSummary
}

// Snapshot summarizes the current windows, sorted by name.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.snapshot()
}

func (rp *RuntimeProfiler) snapshot() Snapshot {
	s := Snapshot{
		Uptime:     time.Since(rp.started),
		Goroutines: rp.goroutines,
		HeapAlloc:  rp.memStats.HeapAlloc,
		Sys:        rp.memStats.Sys,
		NumGC:      rp.memStats.NumGC,
	}

	for name, t := range rp.metrics {
		if len(t.values) == 0 {
			continue
		}
		s.Metrics = append(s.Metrics, MetricSummary{
			Name:    name,
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
			Last:    t.values[len(t.values)-1],
			Samples: len(t.values),
		})
	}
	sort.Slice(s.Metrics, func(i, j int) bool { return s.Metrics[i].Name < s.Metrics[j].Name })

	for name, t := range rp.operations {
		if len(t.durations) == 0 {
			continue
		}
		s.Operations = append(s.Operations, OperationSummary{
			Name:  name,
			Avg:   t.total / time.Duration(len(t.durations)),
			Min:   t.min,
			Max:   t.max,
			Count: t.count,
		})
	}
	sort.Slice(s.Operations, func(i, j int) bool { return s.Operations[i].Name < s.Operations[j].Name })

	return s
}

// Report logs the current snapshot at Info.
func (rp *RuntimeProfiler) Report() {
	rp.mu.Lock()
	s := rp.snapshot()
	newGC := s.NumGC - rp.lastGCCount
	rp.lastGCCount = s.NumGC
	rp.mu.Unlock()

	fields := []zap.Field{
		zap.Duration("uptime", s.Uptime.Truncate(time.Millisecond)),
		zap.Int("goroutines", s.Goroutines),
		zap.Uint64("heap_alloc", s.HeapAlloc),
		zap.Uint64("sys", s.Sys),
		zap.Uint32("gc_new", newGC),
	}
	for _, m := range s.Metrics {
		fields = append(fields, zap.Float64(m.Name, m.Last))
	}
	for _, o := range s.Operations {
		fields = append(fields, zap.Duration(o.Name+"_avg", o.Avg.Truncate(time.Microsecond)))
	}
	rp.logger.Info("runtime report", fields...)
}
