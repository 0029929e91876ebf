package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
	"github.com/pnnl/chgl/storage"
	"github.com/pnnl/chgl/transport"
)

// State is the Client session state.
type State int32

const (
	StateUnconnected State = iota
	StateHandshaking
	StateReady
	StateFlushing
	StateAwaitingResult
	// StateBroken: a transport failure left the request/reply turn unknown
	StateBroken
	StateClosed
)

var stateNames = map[State]string{
	StateUnconnected:    "Unconnected",
	StateHandshaking:    "Handshaking",
	StateReady:          "Ready",
	StateFlushing:       "Flushing",
	StateAwaitingResult: "AwaitingResult",
	StateBroken:         "Broken",
	StateClosed:         "Closed",
}

// String implements the stringer interface.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int32(s))
}

// Client issues graph construction operations over a single request/reply channel.
//
// AddInclusion only buffers; Flush sends the buffered inclusions as one combined request;
// Size flushes and then defers the GetSize reply to a worker, returning a Future.
// Calls that send are serialized: a send waits until the previous Future is resolved.
type Client struct {
	// Config
	id  uuid.UUID
	cfg Config
	lg  *zap.Logger
	// State
	state atomic.Int32

	mu       sync.Mutex
	ch       transport.Channel
	pending  *storage.OperationBuffer // inclusions not yet flushed
	inflight *Future[int64]           // last deferred receive
	//
	monitor *Monitor
	exec    *executor
	ctx     context.Context
	cancel  context.CancelFunc
}

// String implements the stringer interface.
func (c *Client) String() string {
	return fmt.Sprintf("Client (%s)", c.id)
}

// Id returns the session id.
func (c *Client) Id() uuid.UUID {
	return c.id
}

// State returns the current session state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Pending returns the number of buffered (not yet flushed) inclusions.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending.Len()
}

// Stats returns the session counters.
func (c *Client) Stats() Stats {
	return c.monitor.Stats()
}

// Close terminates the session.
// A pending Future is rejected with model.ErrClosed; buffered inclusions are dropped.
func (c *Client) Close() error {
	if State(c.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}

	c.cancel()
	err := c.ch.Close()
	c.exec.wait()
	c.monitor.Stop()

	c.lg.Info("closed", zap.Any("stats", c.monitor.Stats()))
	if err != nil {
		return model.MarkAs(err, model.ErrConnection, "closing channel")
	}

	return nil
}

// usable returns the error matching a terminal state.
func (c *Client) usable() error {
	switch c.State() {
	case StateClosed:
		return model.NewError(model.ErrClosed, "%s: closed", c)
	case StateBroken:
		return model.NewError(model.ErrSessionBroken, "%s: session broken by an earlier transport failure", c)
	}

	return nil
}

// transition moves the state from -> to, leaving terminal states untouched.
func (c *Client) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// enter is transition for the caller side: a lost race is reported as the terminal state error.
func (c *Client) enter(from, to State) error {
	if c.transition(from, to) {
		return nil
	}
	if err := c.usable(); err != nil {
		return err
	}

	return errors.AssertionFailedf("%s: state %s, want %s", c, c.State(), from)
}

// fail classifies err and marks the session broken if the channel turn is no longer known.
func (c *Client) fail(err error) error {
	if c.State() == StateClosed {
		return model.MarkAs(err, model.ErrClosed, "%s: closed", c)
	}
	if !errors.Is(err, model.ErrConnection) {
		return err
	}

	for {
		cur := c.State()
		if cur == StateClosed || cur == StateBroken {
			break
		}
		if c.transition(cur, StateBroken) {
			c.lg.Error("session broken", zap.Error(err))
			break
		}
	}

	return err
}

// call sends one request and decodes the integer reply.
func (c *Client) call(req []byte) (int64, error) {
	if err := c.ch.Send(req); err != nil {
		return 0, err
	}

	return c.receive()
}

func (c *Client) receive() (int64, error) {
	raw, err := c.ch.Receive()
	if err != nil {
		return 0, err
	}

	return model.DecodeReply(raw, c.cfg.ReplyWidth)
}

// expectAck sends req and checks that it is acknowledged; a non-Ack reply is reported as errClass.
func (c *Client) expectAck(op model.OpCode, req []byte, errClass error) error {
	reply, err := c.call(req)
	if err != nil {
		return err
	}
	if reply != int64(model.OpAck) {
		return model.NewError(errClass, "%s: got reply %d, want Ack (%d)", op, reply, model.OpAck)
	}

	return nil
}

// handshake sends Syn and CreateGraph, each has to be acknowledged.
func (c *Client) handshake() error {
	steps := []model.Descriptor{
		model.MustDescriptor(model.OpSyn),
		model.MustDescriptor(model.OpCreateGraph, c.cfg.NumVertices, c.cfg.NumEdges),
	}
	for _, d := range steps {
		opStart := time.Now()
		err := c.expectAck(d.Op(), model.EncodeRequest(d), model.ErrHandshake)
		c.monitor.HandshakeDone(d.Op(), time.Since(opStart), err)
		if err != nil {
			return model.MarkAs(err, model.ErrHandshake, "handshake %s", d)
		}
	}

	return nil
}

// NewClient performs the handshake over ch and returns a Ready Client.
// On failure ch is closed and no Client is returned.
func NewClient(ch transport.Channel, cfg Config) (*Client, error) {
	if ch == nil {
		return nil, model.NewError(model.ErrInvalidArgument, "%s: nil", "channel")
	}
	if err := cfg.Validate(); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:  uuid.New(),
		cfg: cfg,
		//
		ch:      ch,
		pending: storage.NewOperationBuffer(),
		//
		exec:   newExecutor(ctx, cfg.Workers),
		ctx:    ctx,
		cancel: cancel,
	}
	c.lg = cfg.Logger.With(zap.Stringer("client", c.id))
	c.monitor = NewMonitor(c.lg, cfg.MonitorPeriod, cfg.Registerer)

	c.state.Store(int32(StateHandshaking))
	if err := c.handshake(); err != nil {
		c.state.Store(int32(StateClosed))
		cancel()
		_ = ch.Close()
		return nil, err
	}
	c.state.Store(int32(StateReady))

	c.monitor.Start()
	c.lg.Info("session ready", zap.Int64("numVertices", cfg.NumVertices), zap.Int64("numEdges", cfg.NumEdges))

	return c, nil
}

// Dial connects to cfg.Address and performs the handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	ch, err := transport.Dial(ctx, cfg.Address,
		transport.WithDialTimeout(cfg.DialTimeout),
		transport.WithLogger(cfg.Logger),
	)
	if err != nil {
		return nil, err
	}

	return NewClient(ch, cfg)
}
