package client

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/model"
)

var getSizeDescriptor = model.MustDescriptor(model.OpGetSize)

// AddInclusion buffers the inclusion of the vertex into the edge (no I/O, no deduplication).
func (c *Client) AddInclusion(vertex model.VertexId, edge model.EdgeId) error {
	if err := c.usable(); err != nil {
		return err
	}
	if vertex < 0 || int64(vertex) >= c.cfg.NumVertices {
		return model.NewError(model.ErrInvalidArgument, "vertex %d: out of range [0, %d)", vertex, c.cfg.NumVertices)
	}
	if edge < 0 || int64(edge) >= c.cfg.NumEdges {
		return model.NewError(model.ErrInvalidArgument, "edge %d: out of range [0, %d)", edge, c.cfg.NumEdges)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pending.Append(model.NewInclusionDescriptor(vertex, edge)); err != nil {
		return err
	}
	c.monitor.InclusionAdded()

	return nil
}

// Flush sends the distinct buffered inclusions as one combined request and waits for the Ack.
// An empty buffer sends nothing. The buffer is empty afterwards, whatever the outcome.
// ctx bounds the wait for a pending Size result only; a sent request is always awaited.
func (c *Client) Flush(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.pending.Len() == 0 {
		c.pending.Reset()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.lockIdle(ctx); err != nil {
		// Nothing sent; the buffer is dropped all the same
		c.mu.Lock()
		c.pending.Reset()
		c.mu.Unlock()
		return err
	}
	defer c.mu.Unlock()

	return c.flushLocked()
}

// Size flushes the buffer, sends GetSize and returns a Future resolved by a worker with the reply.
// While a previous Future is unresolved the call waits for it (or for ctx).
func (c *Client) Size(ctx context.Context) (*Future[int64], error) {
	if err := c.lockIdle(ctx); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	// Inclusions are acknowledged before the query is sent
	if err := c.flushLocked(); err != nil {
		return nil, err
	}

	if err := c.enter(StateReady, StateAwaitingResult); err != nil {
		return nil, err
	}

	opStart := time.Now()
	if err := c.ch.Send(model.EncodeRequest(getSizeDescriptor)); err != nil {
		c.transition(StateAwaitingResult, StateReady)
		err = c.fail(err)
		c.monitor.SizeDone(time.Since(opStart), err)
		return nil, err
	}

	f := newFuture[int64]()
	c.inflight = f
	c.exec.submit(func(err error) {
		var size int64
		if err == nil {
			size, err = c.receive()
		}
		c.monitor.SizeDone(time.Since(opStart), err)
		c.transition(StateAwaitingResult, StateReady)

		if err != nil {
			err = c.fail(err)
			c.lg.Debug("size rejected", zap.Error(err))
			f.reject(err)
			return
		}
		c.lg.Debug("size received", zap.Int64("size", size), zap.Duration("dur", time.Since(opStart)))
		f.resolve(size, nil)
	})

	return f, nil
}

// lockIdle locks c.mu once no deferred receive is outstanding.
func (c *Client) lockIdle(ctx context.Context) error {
	for {
		if err := c.usable(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		f := c.inflight
		if f == nil || f.IsResolved() {
			if err := c.usable(); err != nil {
				c.mu.Unlock()
				return err
			}
			return nil
		}
		c.mu.Unlock()

		select {
		case <-f.Done():
		case <-c.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flushLocked sends the buffered inclusions; c.mu must be held.
func (c *Client) flushLocked() error {
	defer c.pending.Reset()

	if c.pending.Len() == 0 {
		return nil
	}

	set, duplicates := c.pending.Coalesce()
	pairs := set.Export()

	if err := c.enter(StateReady, StateFlushing); err != nil {
		return err
	}

	opStart := time.Now()
	err := c.expectAck(model.OpAddInclusion, model.EncodeInclusionRequest(pairs), model.ErrProtocol)
	opDur := time.Since(opStart)
	c.transition(StateFlushing, StateReady)
	c.monitor.FlushDone(len(pairs), duplicates, opDur, err)
	if err != nil {
		return c.fail(errors.Wrapf(err, "flush %d inclusions", len(pairs)))
	}

	c.lg.Debug("inclusions flushed",
		zap.Int("buffered", c.pending.Len()),
		zap.Int("sent", len(pairs)),
		zap.Duration("dur", opDur),
	)

	return nil
}
