package client

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
	"github.com/pnnl/chgl/transport"
)

const (
	DefaultNumVertices   = 1024
	DefaultNumEdges      = 1024
	DefaultMonitorPeriod = 5 * time.Second
)

type Config struct {
	// Address of the graph service ("host:port" or a ZeroMQ endpoint)
	Address string
	// Graph dimensions sent with CreateGraph
	NumVertices int64
	NumEdges    int64
	// ReplyWidth pins the integer reply width in bytes (0: accept 1..8 bytes)
	ReplyWidth int
	// Workers bounds the number of concurrent deferred receives
	Workers int
	// DialTimeout bounds a single connect attempt
	DialTimeout time.Duration
	// MonitorPeriod is the stats report period (0 disables the report)
	MonitorPeriod time.Duration

	Logger     *zap.Logger           `json:"-"`
	Registerer prometheus.Registerer `json:"-"`
}

// DefaultConfig returns a 1024 x 1024 graph Config with one worker per CPU.
func DefaultConfig() Config {
	return Config{
		NumVertices:   DefaultNumVertices,
		NumEdges:      DefaultNumEdges,
		Workers:       runtime.NumCPU(),
		DialTimeout:   transport.DefaultDialTimeout,
		MonitorPeriod: DefaultMonitorPeriod,
	}
}

// Validate checks the Config.
func (c Config) Validate() error {
	if c.NumVertices <= 0 {
		return model.NewError(model.ErrInvalidArgument, "%s: must be GT 0", "NumVertices")
	}
	if c.NumEdges <= 0 {
		return model.NewError(model.ErrInvalidArgument, "%s: must be GT 0", "NumEdges")
	}
	if c.Workers < 1 {
		return model.NewError(model.ErrInvalidArgument, "%s: must be GTE 1", "Workers")
	}
	if !model.IsValidReplyWidth(c.ReplyWidth) {
		return model.NewError(model.ErrInvalidArgument, "%s: must be one of 0, 1, 2, 4, 8", "ReplyWidth")
	}
	if c.MonitorPeriod < 0 {
		return model.NewError(model.ErrInvalidArgument, "%s: must be GTE 0", "MonitorPeriod")
	}

	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("address=%s graph=%dx%d replyWidth=%d workers=%d", c.Address, c.NumVertices, c.NumEdges, c.ReplyWidth, c.Workers)
}
