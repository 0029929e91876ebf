package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
	"github.com/pnnl/chgl/storage"
	"github.com/pnnl/chgl/transport"
)

const (
	DefaultListenAddress = "tcp://*:5555"
	DefaultMonitorPeriod = 5 * time.Second
	// ReplyRejected is sent back for requests the service cannot apply
	ReplyRejected int64 = -1
)

type Config struct {
	// ListenAddress is the ZeroMQ endpoint to bind
	ListenAddress string
	// ReplyWidth is the integer reply width in bytes (0: 8 bytes)
	ReplyWidth int
	// MonitorPeriod is the stats report period (0 disables the report)
	MonitorPeriod time.Duration

	Logger *zap.Logger `json:"-"`
}

// DefaultConfig returns the default service Config.
func DefaultConfig() Config {
	return Config{
		ListenAddress: DefaultListenAddress,
		MonitorPeriod: DefaultMonitorPeriod,
	}
}

// Validate checks the Config.
func (c Config) Validate() error {
	if !model.IsValidReplyWidth(c.ReplyWidth) {
		return model.NewError(model.ErrInvalidArgument, "%s: must be one of 0, 1, 2, 4, 8", "ReplyWidth")
	}
	if c.MonitorPeriod < 0 {
		return model.NewError(model.ErrInvalidArgument, "%s: must be GTE 0", "MonitorPeriod")
	}

	return nil
}

// GraphService is a development stand-in for the remote graph service.
// It speaks the client protocol over a ZeroMQ REP socket and only keeps the distinct inclusion pairs:
// GetSize answers with their number.
type GraphService struct {
	// Config
	cfg Config
	lg  *zap.Logger
	// State
	mu          sync.Mutex
	created     bool
	numVertices int64
	numEdges    int64
	pairs       *storage.InclusionSet
	//
	monitor *Monitor
	sock    zmq4.Socket
	cancel  context.CancelFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Handle applies one raw request and builds the raw reply.
func (s *GraphService) Handle(raw []byte) []byte {
	start := time.Now()

	req, err := model.ParseRequest(raw)
	if err != nil {
		s.lg.Warn("malformed request", zap.ByteString("request", raw), zap.Error(err))
		s.monitor.RequestServed(model.OpCode(-1), 0, true, time.Since(start))
		return s.encode(ReplyRejected)
	}

	reply, err := s.apply(req)
	if err != nil {
		s.lg.Warn("request rejected", zap.Stringer("op", req.Op), zap.Error(err))
		reply = ReplyRejected
	}
	s.monitor.RequestServed(req.Op, len(req.Inclusions), err != nil, time.Since(start))

	return s.encode(reply)
}

// apply performs a decoded request.
func (s *GraphService) apply(req model.Request) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Op {
	case model.OpSyn:
		return int64(model.OpAck), nil
	case model.OpCreateGraph:
		numVertices, numEdges := req.Args[0], req.Args[1]
		if numVertices <= 0 || numEdges <= 0 {
			return 0, model.NewError(model.ErrInvalidArgument, "graph %dx%d: dimensions must be GT 0", numVertices, numEdges)
		}
		s.created = true
		s.numVertices, s.numEdges = numVertices, numEdges
		s.pairs.Reset()
		s.lg.Info("graph created", zap.Int64("numVertices", numVertices), zap.Int64("numEdges", numEdges))

		return int64(model.OpAck), nil
	case model.OpAddInclusion:
		if !s.created {
			return 0, model.NewError(model.ErrProtocol, "%s: no graph created", req.Op)
		}
		// Apply all or nothing
		for _, pair := range req.Inclusions {
			if pair.Vertex < 0 || int64(pair.Vertex) >= s.numVertices || pair.Edge < 0 || int64(pair.Edge) >= s.numEdges {
				return 0, model.NewError(model.ErrInvalidArgument, "inclusion %s: out of graph %dx%d", pair, s.numVertices, s.numEdges)
			}
		}
		for _, pair := range req.Inclusions {
			s.pairs.Add(pair)
		}

		return int64(model.OpAck), nil
	case model.OpGetSize:
		if !s.created {
			return 0, model.NewError(model.ErrProtocol, "%s: no graph created", req.Op)
		}

		return int64(s.pairs.Len()), nil
	}

	return 0, model.NewError(model.ErrProtocol, "%s: not a request", req.Op)
}

func (s *GraphService) encode(v int64) []byte {
	raw, err := model.EncodeReply(v, s.cfg.ReplyWidth)
	if err != nil {
		s.lg.Error("reply overflows the configured width", zap.Int64("reply", v), zap.Error(err))
		raw, _ = model.EncodeReply(ReplyRejected, s.cfg.ReplyWidth)
	}

	return raw
}

// Size returns the number of distinct inclusions recorded.
func (s *GraphService) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pairs.Len()
}

// Inclusions returns the recorded inclusions in canonical order.
func (s *GraphService) Inclusions() model.InclusionList {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pairs.Export()
}

// Monitor returns the service monitor.
func (s *GraphService) Monitor() *Monitor {
	return s.monitor
}

// Listen binds the REP socket; address defaults to Config.ListenAddress.
func (s *GraphService) Listen(ctx context.Context, address string) error {
	if s.sock != nil {
		return errors.AssertionFailedf("%s: already listening", "GraphService")
	}
	if address == "" {
		address = s.cfg.ListenAddress
	}
	endpoint := transport.Endpoint(address)

	sockCtx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewRep(sockCtx, zmq4.WithLogger(zap.NewStdLog(s.lg)))
	if err := sock.Listen(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return model.MarkAs(err, model.ErrConnection, "listen %s", endpoint)
	}

	s.sock = sock
	s.cancel = cancel
	s.lg.Info("listening", zap.String("endpoint", endpoint), zap.Stringer("addr", sock.Addr()))

	return nil
}

// Addr returns the bound address (nil before Listen).
func (s *GraphService) Addr() net.Addr {
	if s.sock == nil {
		return nil
	}

	return s.sock.Addr()
}

// Start starts the service worker.
func (s *GraphService) Start() {
	if s.stopCh != nil || s.sock == nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.monitor.Start()
	go s.worker()
}

// Stop stops the service worker and closes the socket.
func (s *GraphService) Stop() {
	if s.stopCh == nil {
		return
	}

	close(s.stopCh)
	s.cancel()
	_ = s.sock.Close()
	<-s.doneCh
	s.monitor.Stop()
	s.stopCh = nil
}

// Wait blocks until the worker exits.
func (s *GraphService) Wait() {
	if s.doneCh != nil {
		<-s.doneCh
	}
}

// worker does the actual job.
func (s *GraphService) worker() {
	defer close(s.doneCh)
	s.lg.Info("GraphService: start")

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			select {
			case <-s.stopCh:
				// Service stop
				s.lg.Info("GraphService: stop")
			default:
				s.lg.Error("GraphService: receive", zap.Error(err))
			}
			return
		}

		reply := s.Handle(msg.Bytes())
		if err := s.sock.Send(zmq4.NewMsg(reply)); err != nil {
			s.lg.Error("GraphService: send", zap.Error(err))
			return
		}
	}
}

// NewGraphService creates a new GraphService object.
func NewGraphService(cfg Config) (*GraphService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	lg := cfg.Logger.Named("graph-service")

	return &GraphService{
		cfg:     cfg,
		lg:      lg,
		pairs:   storage.NewInclusionSet(),
		monitor: NewMonitor(lg, cfg.MonitorPeriod),
	}, nil
}
