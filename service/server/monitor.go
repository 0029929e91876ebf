package server

import (
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
)

// Monitor keeps GraphService stats.
type Monitor struct {
	sync.Mutex
	reqHandled   int
	reqRejected  int
	pairsHandled int
	reqDur       *movingaverage.MovingAverage
	byOp         map[model.OpCode]int64
	//
	lg     *zap.Logger
	period time.Duration
	stopCh chan struct{}
}

// RequestServed updates the request handling metrics.
func (m *Monitor) RequestServed(op model.OpCode, pairs int, rejected bool, dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.reqHandled++
	if rejected {
		m.reqRejected++
	}
	m.pairsHandled += pairs
	m.byOp[op]++
	m.reqDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// Handled returns the number of requests handled per opcode since start.
func (m *Monitor) Handled(op model.OpCode) int64 {
	m.Lock()
	defer m.Unlock()

	return m.byOp[op]
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
			m.Lock()

			periodSec := float64(m.period) / float64(time.Second)
			m.lg.Info("Monitor:\n" +
				"  - Requests / s:         " + humanize.FormatFloat("#,###.##", float64(m.reqHandled)/periodSec) + "\n" +
				"  - Rejected requests:    " + humanize.Comma(int64(m.reqRejected)) + "\n" +
				"  - Inclusions / s:       " + humanize.FormatFloat("#,###.##", float64(m.pairsHandled)/periodSec) + "\n" +
				"  - Request dur [ms]:     " + humanize.FormatFloat("#,###.###", m.reqDur.Avg()),
			)
			m.reqHandled = 0
			m.reqRejected = 0
			m.pairsHandled = 0

			m.Unlock()
		}
	}
}

// NewMonitor creates a new Monitor object.
func NewMonitor(lg *zap.Logger, period time.Duration) *Monitor {
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Monitor{
		reqDur: movingaverage.New(5),
		byOp:   make(map[model.OpCode]int64),
		lg:     lg,
		period: period,
	}
}
