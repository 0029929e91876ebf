package client

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pnnl/chgl/model"
	"github.com/pnnl/chgl/transport/transporttest"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.MonitorPeriod = 0

	return cfg
}

// newTestClient scripts both handshake Acks and builds a Ready client.
func newTestClient(t *testing.T, cfg Config) (*Client, *transporttest.Recorder) {
	ch := transporttest.NewRecorder().ReplyAck().ReplyAck()

	c, err := NewClient(ch, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})

	return c, ch
}

// sentAfterHandshake returns requests sent after Syn and CreateGraph.
func sentAfterHandshake(t *testing.T, ch *transporttest.Recorder) []string {
	sent := ch.Sent()
	require.GreaterOrEqual(t, len(sent), 2)

	return sent[2:]
}

func Test_Client_Handshake(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	require.Equal(t, []string{"0:", "2:1024:1024"}, ch.Sent())
	require.Equal(t, StateReady, c.State())
	require.False(t, ch.Awaiting())
	require.Contains(t, c.String(), c.Id().String())
}

func Test_Client_HandshakeRejected(t *testing.T) {
	t.Run("Syn not acknowledged", func(t *testing.T) {
		ch := transporttest.NewRecorder().ReplyInt(7)

		c, err := NewClient(ch, testConfig())
		require.Nil(t, c)
		require.True(t, errors.Is(err, model.ErrHandshake), "%v", err)
		require.Equal(t, []string{"0:"}, ch.Sent(), "CreateGraph must not be sent")
		require.True(t, ch.IsClosed())
	})

	t.Run("CreateGraph not acknowledged", func(t *testing.T) {
		ch := transporttest.NewRecorder().ReplyAck().ReplyInt(0)

		cfg := testConfig()
		cfg.NumVertices, cfg.NumEdges = 8, 16
		_, err := NewClient(ch, cfg)
		require.True(t, errors.Is(err, model.ErrHandshake), "%v", err)
		require.Equal(t, []string{"0:", "2:8:16"}, ch.Sent())
		require.True(t, ch.IsClosed())
	})

	t.Run("Malformed reply", func(t *testing.T) {
		ch := transporttest.NewRecorder().Reply([]byte{})

		_, err := NewClient(ch, testConfig())
		require.True(t, errors.Is(err, model.ErrProtocol), "%v", err)
		require.True(t, ch.IsClosed())
	})

	t.Run("Transport failure", func(t *testing.T) {
		ch := transporttest.NewRecorder().ReplyError(errors.New("connection reset"))

		_, err := NewClient(ch, testConfig())
		require.True(t, errors.Is(err, model.ErrConnection), "%v", err)
	})

	t.Run("Invalid config", func(t *testing.T) {
		ch := transporttest.NewRecorder()

		cfg := testConfig()
		cfg.NumEdges = 0
		_, err := NewClient(ch, cfg)
		require.True(t, errors.Is(err, model.ErrInvalidArgument), "%v", err)
		require.Zero(t, ch.SentCount())
	})
}

// Test checks that duplicate inclusions are collapsed into a single combined request.
func Test_Client_FlushCoalesce(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	require.NoError(t, c.AddInclusion(3, 4))
	require.NoError(t, c.AddInclusion(1, 2))
	require.NoError(t, c.AddInclusion(1, 2))
	require.Equal(t, 3, c.Pending())
	require.Len(t, sentAfterHandshake(t, ch), 0, "AddInclusion must not send")

	ch.ReplyAck()
	require.NoError(t, c.Flush(context.Background()))

	require.Equal(t, []string{"3:1,2:3,4"}, sentAfterHandshake(t, ch))
	require.Zero(t, c.Pending())
	require.Equal(t, StateReady, c.State())

	stats := c.Stats()
	require.EqualValues(t, 3, stats.InclusionsAdded)
	require.EqualValues(t, 2, stats.InclusionsSent)
	require.EqualValues(t, 1, stats.DuplicatesCollapsed)
	require.EqualValues(t, 1, stats.Flushes)
}

// Test checks for random inclusion sequences that a flush carries exactly the distinct pairs.
func Test_Client_FlushRandom(t *testing.T) {
	cfg := testConfig()
	cfg.NumVertices, cfg.NumEdges = 16, 16
	c, ch := newTestClient(t, cfg)
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 25; round++ {
		expected := make(map[model.Inclusion]struct{})
		n := 1 + rng.Intn(100)
		for i := 0; i < n; i++ {
			pair := model.Inclusion{Vertex: model.VertexId(rng.Int63n(16)), Edge: model.EdgeId(rng.Int63n(16))}
			require.NoError(t, c.AddInclusion(pair.Vertex, pair.Edge))
			expected[pair] = struct{}{}
		}

		sentBefore := ch.SentCount()
		ch.ReplyAck()
		require.NoError(t, c.Flush(context.Background()))
		require.Equal(t, sentBefore+1, ch.SentCount())

		sent := ch.Sent()
		req, err := model.ParseRequest([]byte(sent[len(sent)-1]))
		require.NoError(t, err)
		require.Equal(t, model.OpAddInclusion, req.Op)
		require.True(t, req.Inclusions.IsCanonical())
		require.Len(t, req.Inclusions, len(expected), "round %d", round)
		for _, pair := range req.Inclusions {
			require.Contains(t, expected, pair, "round %d", round)
		}
		require.Zero(t, c.Pending())
	}
}

func Test_Client_FlushEmpty(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	require.NoError(t, c.Flush(context.Background()))
	require.NoError(t, c.Flush(context.Background()))

	require.Empty(t, sentAfterHandshake(t, ch))
	require.False(t, ch.Awaiting())
	require.Equal(t, StateReady, c.State())
}

// Test checks that the buffer is cleared on failures and that a transport failure breaks the session.
func Test_Client_FlushFailure(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	// Non-Ack reply
	require.NoError(t, c.AddInclusion(1, 1))
	ch.ReplyInt(5)
	err := c.Flush(context.Background())
	require.True(t, errors.Is(err, model.ErrProtocol), "%v", err)
	require.Zero(t, c.Pending())
	require.Equal(t, StateReady, c.State())

	// Transport failure
	require.NoError(t, c.AddInclusion(2, 2))
	ch.ReplyError(errors.New("connection reset"))
	err = c.Flush(context.Background())
	require.True(t, errors.Is(err, model.ErrConnection), "%v", err)
	require.Zero(t, c.Pending())
	require.Equal(t, StateBroken, c.State())

	require.True(t, errors.Is(c.AddInclusion(3, 3), model.ErrSessionBroken))
	_, err = c.Size(context.Background())
	require.True(t, errors.Is(err, model.ErrSessionBroken), "%v", err)
	require.EqualValues(t, 2, c.Stats().Failures)
}

func Test_Client_AddInclusionOutOfRange(t *testing.T) {
	cfg := testConfig()
	cfg.NumVertices, cfg.NumEdges = 4, 8
	c, _ := newTestClient(t, cfg)

	for _, pair := range []model.Inclusion{
		{Vertex: -1, Edge: 0},
		{Vertex: 4, Edge: 0},
		{Vertex: 0, Edge: -1},
		{Vertex: 0, Edge: 8},
	} {
		err := c.AddInclusion(pair.Vertex, pair.Edge)
		require.True(t, errors.Is(err, model.ErrInvalidArgument), "%s: %v", pair, err)
	}
	require.NoError(t, c.AddInclusion(3, 7))
	require.Equal(t, 1, c.Pending())
}

// Test checks that Size with an empty buffer sends GetSize only.
func Test_Client_SizeEmptyBuffer(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	ch.ReplyInt(42)
	f, err := c.Size(context.Background())
	require.NoError(t, err)

	size, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, size)
	require.Equal(t, []string{"4:"}, sentAfterHandshake(t, ch))

	require.Eventually(t, func() bool {
		return c.State() == StateReady
	}, time.Second, 5*time.Millisecond)
}

// Test checks that buffered inclusions are acknowledged before GetSize is sent.
func Test_Client_SizeFlushesFirst(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	require.NoError(t, c.AddInclusion(5, 6))
	require.NoError(t, c.AddInclusion(1, 2))
	ch.ReplyAck().ReplyInt(2)

	f, err := c.Size(context.Background())
	require.NoError(t, err)
	size, err := f.Result()
	require.NoError(t, err)
	require.EqualValues(t, 2, size)

	require.Equal(t, []string{"3:1,2:5,6", "4:"}, sentAfterHandshake(t, ch))
	require.Zero(t, c.Pending())
}

// Test checks that a send waits for the previous Future instead of pipelining requests.
func Test_Client_SizeSerialized(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	f1, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, ch.SentCount())

	// Buffering does not wait
	require.NoError(t, c.AddInclusion(7, 7))

	// Cancelled wait sends nothing
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Size(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
	require.Equal(t, 3, ch.SentCount())

	type result struct {
		f   *Future[int64]
		err error
	}
	secondCh := make(chan result, 1)
	go func() {
		f2, err := c.Size(context.Background())
		secondCh <- result{f: f2, err: err}
	}()

	require.Never(t, func() bool {
		return ch.SentCount() > 3
	}, 100*time.Millisecond, 10*time.Millisecond)
	require.False(t, f1.IsResolved())

	ch.ReplyInt(10).ReplyAck().ReplyInt(11)

	size, err := f1.Result()
	require.NoError(t, err)
	require.EqualValues(t, 10, size)

	second := <-secondCh
	require.NoError(t, second.err)
	size, err = second.f.Result()
	require.NoError(t, err)
	require.EqualValues(t, 11, size)

	require.Equal(t, []string{"4:", "3:7,7", "4:"}, sentAfterHandshake(t, ch))
}

// Test checks that a Flush cancelled while a Size result is outstanding sends nothing and drops the buffer.
func Test_Client_FlushCancelled(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	f, err := c.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, ch.SentCount())

	require.NoError(t, c.AddInclusion(1, 1))
	require.Equal(t, 1, c.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Flush(ctx)
	require.True(t, errors.Is(err, context.Canceled), "%v", err)
	require.Zero(t, c.Pending())
	require.Equal(t, 3, ch.SentCount())
	require.Equal(t, StateAwaitingResult, c.State())

	ch.ReplyInt(0)
	size, err := f.Result()
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	// The dropped inclusion is never sent
	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, []string{"4:"}, sentAfterHandshake(t, ch))
}

// Test checks that Close rejects a pending Future and that the client is unusable afterwards.
func Test_Client_CloseRejectsPending(t *testing.T) {
	c, ch := newTestClient(t, testConfig())

	f, err := c.Size(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.True(t, ch.IsClosed())
	require.Equal(t, StateClosed, c.State())

	_, err = f.Result()
	require.True(t, errors.Is(err, model.ErrClosed), "%v", err)

	require.True(t, errors.Is(c.AddInclusion(0, 0), model.ErrClosed))
	require.True(t, errors.Is(c.Flush(context.Background()), model.ErrClosed))
	_, err = c.Size(context.Background())
	require.True(t, errors.Is(err, model.ErrClosed), "%v", err)
}

// Test checks that a pinned reply width is enforced on every reply.
func Test_Client_ReplyWidth(t *testing.T) {
	cfg := testConfig()
	cfg.ReplyWidth = 4

	ack, err := model.EncodeReply(int64(model.OpAck), 4)
	require.NoError(t, err)
	ch := transporttest.NewRecorder().Reply(ack).Reply(ack)

	c, err := NewClient(ch, cfg)
	require.NoError(t, err)
	defer c.Close()

	// 8 byte reply
	ch.ReplyInt(3)
	f, err := c.Size(context.Background())
	require.NoError(t, err)
	_, err = f.Result()
	require.True(t, errors.Is(err, model.ErrProtocol), "%v", err)

	// Undecodable reply does not break the session
	size, err := model.EncodeReply(-3, 4)
	require.NoError(t, err)
	ch.Reply(size)
	f, err = c.Size(context.Background())
	require.NoError(t, err)
	v, err := f.Result()
	require.NoError(t, err)
	require.EqualValues(t, -3, v)
}

func Test_Client_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.Registerer = reg

	c1, ch := newTestClient(t, cfg)
	_, _ = newTestClient(t, cfg)

	require.NoError(t, c1.AddInclusion(1, 1))
	require.NoError(t, c1.AddInclusion(1, 1))
	ch.ReplyAck()
	require.NoError(t, c1.Flush(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	require.True(t, names["chgl_client_requests_total"])
	require.True(t, names["chgl_client_request_duration_seconds"])
	require.True(t, names["chgl_client_coalesced_duplicates_total"])
}

func Test_Future_ResolveOnce(t *testing.T) {
	f := newFuture[int64]()
	require.False(t, f.IsResolved())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	f.resolve(5, nil)
	require.True(t, f.IsResolved())
	v, err := f.Result()
	require.NoError(t, err)
	require.EqualValues(t, 5, v)

	require.Panics(t, func() {
		f.reject(errors.New("late"))
	})
}
