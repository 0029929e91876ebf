package transport

import (
	"context"
	"strings"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultDialRetry   = 250 * time.Millisecond
)

type options struct {
	dialTimeout time.Duration
	dialRetry   time.Duration
	logger      *zap.Logger
}

// Option configures Dial.
type Option func(o *options)

// WithDialTimeout sets the maximum time a single connect attempt may take.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithDialRetry sets the delay between connect attempts.
func WithDialRetry(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialRetry = d
		}
	}
}

// WithLogger sets the channel logger.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) {
		if lg != nil {
			o.logger = lg
		}
	}
}

// Endpoint normalizes a "host:port" address into a ZeroMQ endpoint ("tcp://host:port").
func Endpoint(address string) string {
	address = strings.TrimSpace(address)
	if strings.Contains(address, "://") {
		return address
	}

	return "tcp://" + address
}

// ZMQChannel is a Channel backed by a ZeroMQ REQ socket.
type ZMQChannel struct {
	Alternation

	sock     zmq4.Socket
	endpoint string
	cancel   context.CancelFunc
	lg       *zap.Logger
}

// Dial connects a REQ socket to the graph service.
// ctx bounds the connect only; the socket lives until Close.
func Dial(ctx context.Context, address string, opts ...Option) (*ZMQChannel, error) {
	o := options{
		dialTimeout: DefaultDialTimeout,
		dialRetry:   DefaultDialRetry,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := Endpoint(address)
	lg := o.logger.With(zap.String("endpoint", endpoint))

	sockCtx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewReq(sockCtx,
		zmq4.WithDialerTimeout(o.dialTimeout),
		zmq4.WithDialerRetry(o.dialRetry),
		zmq4.WithLogger(zap.NewStdLog(lg)),
	)

	dialCh := make(chan error, 1)
	go func() {
		dialCh <- sock.Dial(endpoint)
	}()

	select {
	case err := <-dialCh:
		if err != nil {
			cancel()
			_ = sock.Close()
			return nil, model.MarkAs(err, model.ErrConnection, "dial %s", endpoint)
		}
	case <-ctx.Done():
		cancel()
		_ = sock.Close()
		return nil, model.MarkAs(ctx.Err(), model.ErrConnection, "dial %s", endpoint)
	}

	lg.Debug("connected")

	return &ZMQChannel{
		sock:     sock,
		endpoint: endpoint,
		cancel:   cancel,
		lg:       lg,
	}, nil
}

// Endpoint returns the connected endpoint.
func (c *ZMQChannel) Endpoint() string {
	return c.endpoint
}

// Send implements Channel.
func (c *ZMQChannel) Send(msg []byte) error {
	if err := c.BeginSend(); err != nil {
		return err
	}
	if err := c.sock.Send(zmq4.NewMsg(msg)); err != nil {
		c.AbortSend()
		return model.MarkAs(err, model.ErrConnection, "send to %s", c.endpoint)
	}
	c.lg.Debug("request sent", zap.ByteString("request", msg))

	return nil
}

// Receive implements Channel.
func (c *ZMQChannel) Receive() ([]byte, error) {
	if err := c.BeginReceive(); err != nil {
		return nil, err
	}

	msg, err := c.sock.Recv()
	if err != nil {
		return nil, model.MarkAs(err, model.ErrConnection, "receive from %s", c.endpoint)
	}
	c.EndReceive()

	reply := msg.Bytes()
	if len(reply) == 0 {
		return nil, model.NewError(model.ErrProtocol, "receive from %s: empty reply", c.endpoint)
	}

	return reply, nil
}

// Close implements Channel.
func (c *ZMQChannel) Close() error {
	if !c.MarkClosed() {
		return nil
	}
	c.cancel()

	return c.sock.Close()
}
