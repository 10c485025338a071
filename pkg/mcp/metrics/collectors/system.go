package collectors

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultSampleInterval is used when no interval is given
const DefaultSampleInterval = 15 * time.Second

// SystemSnapshot is one sample of runtime statistics
type SystemSnapshot struct {
	Goroutines   int           `json:"goroutines"`
	AllocBytes   uint64        `json:"alloc_bytes"`
	SysBytes     uint64        `json:"sys_bytes"`
	HeapObjects  uint64        `json:"heap_objects"`
	GCRuns       uint32        `json:"gc_runs"`
	GCPauseTotal time.Duration `json:"gc_pause_total"`
	CPUs         int           `json:"cpus"`
	Uptime       time.Duration `json:"uptime"`
	SampledAt    time.Time     `json:"sampled_at"`
}

// SystemMetricsCollector samples runtime statistics on an interval and
// exposes the latest sample as const metrics.
type SystemMetricsCollector struct {
	interval time.Duration
	started  time.Time
	logger   zerolog.Logger

	mu      sync.RWMutex
	latest  *SystemSnapshot
	cancel  context.CancelFunc
	stopped chan struct{}

	goroutines  *prometheus.Desc
	allocBytes  *prometheus.Desc
	sysBytes    *prometheus.Desc
	heapObjects *prometheus.Desc
	gcRuns      *prometheus.Desc
	gcPause     *prometheus.Desc
	cpus        *prometheus.Desc
	uptime      *prometheus.Desc
}

// NewSystemMetricsCollector creates the collector. A non-positive interval
// selects DefaultSampleInterval.
func NewSystemMetricsCollector(opts Options, interval time.Duration, logger zerolog.Logger) *SystemMetricsCollector {
	opts = opts.withDefaults()
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(opts.fqName(name), help, nil, opts.ConstLabels)
	}

	return &SystemMetricsCollector{
		interval: interval,
		started:  time.Now(),
		logger:   logger.With().Str("component", "system_metrics").Logger(),

		goroutines:  desc("system_goroutines", "Number of goroutines"),
		allocBytes:  desc("system_memory_alloc_bytes", "Bytes of allocated heap objects"),
		sysBytes:    desc("system_memory_sys_bytes", "Bytes of memory obtained from the OS"),
		heapObjects: desc("system_heap_objects", "Number of allocated heap objects"),
		gcRuns:      desc("system_gc_runs_total", "Number of completed GC cycles"),
		gcPause:     desc("system_gc_pause_seconds_total", "Cumulative GC stop-the-world pause time"),
		cpus:        desc("system_cpus", "Number of logical CPUs usable by the process"),
		uptime:      desc("system_uptime_seconds", "Seconds since the collector was created"),
	}
}

// Start samples immediately and then on every interval until ctx is done or Stop is called
func (c *SystemMetricsCollector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stopped = make(chan struct{})
	stopped := c.stopped
	c.mu.Unlock()

	c.Sample()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Debug().Msg("System metrics sampling stopped")
				return
			case <-ticker.C:
				c.Sample()
			}
		}
	}()

	c.logger.Debug().Dur("interval", c.interval).Msg("System metrics sampling started")
}

// Stop ends sampling and waits for the sampler to exit
func (c *SystemMetricsCollector) Stop() {
	c.mu.Lock()
	cancel, stopped := c.cancel, c.stopped
	c.cancel, c.stopped = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Sample reads runtime statistics now and stores them as the latest sample
func (c *SystemMetricsCollector) Sample() SystemSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	snap := SystemSnapshot{
		Goroutines:   runtime.NumGoroutine(),
		AllocBytes:   mem.Alloc,
		SysBytes:     mem.Sys,
		HeapObjects:  mem.HeapObjects,
		GCRuns:       mem.NumGC,
		GCPauseTotal: time.Duration(mem.PauseTotalNs),
		CPUs:         runtime.NumCPU(),
		Uptime:       now.Sub(c.started),
		SampledAt:    now,
	}

	c.mu.Lock()
	c.latest = &snap
	c.mu.Unlock()
	return snap
}

// Snapshot returns the latest sample and whether one has been taken
func (c *SystemMetricsCollector) Snapshot() (SystemSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return SystemSnapshot{}, false
	}
	return *c.latest, true
}

// Describe implements prometheus.Collector
func (c *SystemMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.goroutines
	ch <- c.allocBytes
	ch <- c.sysBytes
	ch <- c.heapObjects
	ch <- c.gcRuns
	ch <- c.gcPause
	ch <- c.cpus
	ch <- c.uptime
}

// Collect implements prometheus.Collector. It samples on demand when no
// sample exists yet.
func (c *SystemMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	snap, ok := c.Snapshot()
	if !ok {
		snap = c.Sample()
	}

	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(snap.Goroutines))
	ch <- prometheus.MustNewConstMetric(c.allocBytes, prometheus.GaugeValue, float64(snap.AllocBytes))
	ch <- prometheus.MustNewConstMetric(c.sysBytes, prometheus.GaugeValue, float64(snap.SysBytes))
	ch <- prometheus.MustNewConstMetric(c.heapObjects, prometheus.GaugeValue, float64(snap.HeapObjects))
	ch <- prometheus.MustNewConstMetric(c.gcRuns, prometheus.CounterValue, float64(snap.GCRuns))
	ch <- prometheus.MustNewConstMetric(c.gcPause, prometheus.CounterValue, snap.GCPauseTotal.Seconds())
	ch <- prometheus.MustNewConstMetric(c.cpus, prometheus.GaugeValue, float64(snap.CPUs))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.Uptime.Seconds())
}
