// Package transporttest provides a scripted, recording transport.Channel for tests.
package transporttest

import (
	"sync"

	"github.com/pnnl/chgl/model"
	"github.com/pnnl/chgl/transport"
)

type scripted struct {
	data []byte
	err  error
}

// Recorder records every request sent and answers Receive from a reply script.
// Receive blocks until a reply is scripted or the channel is closed.
type Recorder struct {
	transport.Alternation

	mu      sync.Mutex
	sent    [][]byte
	replies chan scripted

	closeOnce sync.Once
	closeCh   chan struct{}
}

var _ transport.Channel = (*Recorder)(nil)

// NewRecorder creates a new Recorder object with an empty script.
func NewRecorder() *Recorder {
	return &Recorder{
		replies: make(chan scripted, 1024),
		closeCh: make(chan struct{}),
	}
}

// Reply scripts a raw reply.
func (r *Recorder) Reply(data []byte) *Recorder {
	r.replies <- scripted{data: data}
	return r
}

// ReplyInt scripts an 8 byte little-endian integer reply.
func (r *Recorder) ReplyInt(v int64) *Recorder {
	raw, err := model.EncodeReply(v, 8)
	if err != nil {
		panic(err)
	}

	return r.Reply(raw)
}

// ReplyAck scripts an Ack reply.
func (r *Recorder) ReplyAck() *Recorder {
	return r.ReplyInt(int64(model.OpAck))
}

// ReplyError scripts a transport failure for the next Receive.
func (r *Recorder) ReplyError(err error) *Recorder {
	r.replies <- scripted{err: err}
	return r
}

// Send implements transport.Channel.
func (r *Recorder) Send(msg []byte) error {
	if err := r.BeginSend(); err != nil {
		return err
	}

	msgCopy := make([]byte, len(msg))
	copy(msgCopy, msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msgCopy)

	return nil
}

// Receive implements transport.Channel.
func (r *Recorder) Receive() ([]byte, error) {
	if err := r.BeginReceive(); err != nil {
		return nil, err
	}

	select {
	case reply := <-r.replies:
		if reply.err != nil {
			return nil, model.MarkAs(reply.err, model.ErrConnection, "receive")
		}
		r.EndReceive()
		return reply.data, nil
	case <-r.closeCh:
		return nil, model.NewError(model.ErrConnection, "receive: channel closed")
	}
}

// Close implements transport.Channel.
func (r *Recorder) Close() error {
	r.MarkClosed()
	r.closeOnce.Do(func() {
		close(r.closeCh)
	})

	return nil
}

// IsClosed reports whether Close was called.
func (r *Recorder) IsClosed() bool {
	select {
	case <-r.closeCh:
		return true
	default:
		return false
	}
}

// Sent returns the requests sent so far, in order.
func (r *Recorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sent))
	for _, msg := range r.sent {
		out = append(out, string(msg))
	}

	return out
}

// SentCount returns the number of requests sent so far.
func (r *Recorder) SentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sent)
}
