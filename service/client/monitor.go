package client

import (
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
)

type (
	// Stats is a snapshot of the Client counters.
	Stats struct {
		InclusionsAdded     int64
		InclusionsSent      int64
		DuplicatesCollapsed int64
		Flushes             int64
		SizeQueries         int64
		Failures            int64
		// Moving averages over the last requests
		FlushDurMs float64
		SizeDurMs  float64
	}

	// Monitor keeps Client stats.
	Monitor struct {
		sync.Mutex
		flushDur     *movingaverage.MovingAverage
		sizeDur      *movingaverage.MovingAverage
		flushReqSend int
		sizeReqSend  int
		totals       Stats
		//
		metrics *metrics
		lg      *zap.Logger
		period  time.Duration
		stopCh  chan struct{}
	}

	metrics struct {
		requests   *prometheus.CounterVec
		duration   *prometheus.HistogramVec
		duplicates prometheus.Counter
	}
)

// InclusionAdded counts a buffered inclusion.
func (m *Monitor) InclusionAdded() {
	m.Lock()
	defer m.Unlock()

	m.totals.InclusionsAdded++
}

// FlushDone records a combined AddInclusion request.
func (m *Monitor) FlushDone(pairs, duplicates int, dur time.Duration, err error) {
	m.Lock()
	defer m.Unlock()

	m.flushReqSend++
	m.totals.Flushes++
	if err != nil {
		m.totals.Failures++
	} else {
		m.totals.InclusionsSent += int64(pairs)
	}
	m.totals.DuplicatesCollapsed += int64(duplicates)
	m.flushDur.Add(float64(dur/time.Microsecond) / 1000.0)

	m.metrics.observe(model.OpAddInclusion, dur, err)
	m.metrics.duplicates.Add(float64(duplicates))
}

// SizeDone records a GetSize round trip (send to deferred receive).
func (m *Monitor) SizeDone(dur time.Duration, err error) {
	m.Lock()
	defer m.Unlock()

	m.sizeReqSend++
	m.totals.SizeQueries++
	if err != nil {
		m.totals.Failures++
	}
	m.sizeDur.Add(float64(dur/time.Microsecond) / 1000.0)

	m.metrics.observe(model.OpGetSize, dur, err)
}

// HandshakeDone records a handshake step.
func (m *Monitor) HandshakeDone(op model.OpCode, dur time.Duration, err error) {
	m.Lock()
	defer m.Unlock()

	if err != nil {
		m.totals.Failures++
	}
	m.metrics.observe(op, dur, err)
}

// Stats returns the current counters.
func (m *Monitor) Stats() Stats {
	m.Lock()
	defer m.Unlock()

	s := m.totals
	s.FlushDurMs = m.flushDur.Avg()
	s.SizeDurMs = m.sizeDur.Avg()

	return s
}

// Start starts the Monitor worker.
func (m *Monitor) Start() {
	if m.stopCh != nil || m.period <= 0 {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker(m.stopCh)
}

// Stop stops the Monitor worker.
func (m *Monitor) Stop() {
	if m.stopCh == nil {
		return
	}

	close(m.stopCh)
	m.stopCh = nil
}

// worker does the actual job.
func (m *Monitor) worker(stopCh <-chan struct{}) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			// Stop the monitor
			return
		case <-ticker.C:
			// Print the report
			m.report()
		}
	}
}

func (m *Monitor) report() {
	m.Lock()
	defer m.Unlock()

	periodSec := float64(m.period) / float64(time.Second)
	m.lg.Info("Monitor:\n" +
		"  - Flush requests / s:      " + humanize.FormatFloat("#,###.##", float64(m.flushReqSend)/periodSec) + "\n" +
		"  - Size requests / s:       " + humanize.FormatFloat("#,###.##", float64(m.sizeReqSend)/periodSec) + "\n" +
		"  - Flush request dur [ms]:  " + humanize.FormatFloat("#,###.##", m.flushDur.Avg()) + "\n" +
		"  - Size request dur [ms]:   " + humanize.FormatFloat("#,###.##", m.sizeDur.Avg()) + "\n" +
		"  - Inclusions added / sent: " + humanize.Comma(m.totals.InclusionsAdded) + " / " + humanize.Comma(m.totals.InclusionsSent) + "\n" +
		"  - Duplicates collapsed:    " + humanize.Comma(m.totals.DuplicatesCollapsed),
	)
	m.flushReqSend = 0
	m.sizeReqSend = 0
}

func (mt *metrics) observe(op model.OpCode, dur time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	mt.requests.WithLabelValues(op.String(), status).Inc()
	mt.duration.WithLabelValues(op.String()).Observe(dur.Seconds())
}

// newMetrics builds the request collectors and registers them with reg (if any).
// Clients sharing a registry share the collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	mt := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chgl",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Requests sent to the graph service.",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "chgl",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Request round trip duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		duplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "chgl",
				Subsystem: "client",
				Name:      "coalesced_duplicates_total",
				Help:      "Buffered inclusions collapsed by coalescing.",
			},
		),
	}
	if reg == nil {
		return mt
	}

	mt.requests = registerCollector(reg, mt.requests)
	mt.duration = registerCollector(reg, mt.duration)
	mt.duplicates = registerCollector(reg, mt.duplicates)

	return mt
}

func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var alreadyErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyErr) {
			if existing, ok := alreadyErr.ExistingCollector.(C); ok {
				return existing
			}
		}
	}

	return c
}

// NewMonitor creates a new Monitor object.
func NewMonitor(lg *zap.Logger, period time.Duration, reg prometheus.Registerer) *Monitor {
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Monitor{
		flushDur: movingaverage.New(3),
		sizeDur:  movingaverage.New(3),
		metrics:  newMetrics(reg),
		lg:       lg,
		period:   period,
	}
}
