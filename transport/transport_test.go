package transport_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/pnnl/chgl/model"
	"github.com/pnnl/chgl/transport"
	"github.com/pnnl/chgl/transport/transporttest"
)

func Test_Transport_Endpoint(t *testing.T) {
	require.Equal(t, "tcp://localhost:5555", transport.Endpoint("localhost:5555"))
	require.Equal(t, "tcp://10.0.0.1:7000", transport.Endpoint(" 10.0.0.1:7000 "))
	require.Equal(t, "ipc:///tmp/chgl.sock", transport.Endpoint("ipc:///tmp/chgl.sock"))
}

// Test checks that a channel refuses pipelined sends and unsolicited receives.
func Test_Transport_Alternation(t *testing.T) {
	ch := transporttest.NewRecorder()

	_, err := ch.Receive()
	require.True(t, errors.Is(err, model.ErrProtocol), "receive before send: %v", err)

	require.NoError(t, ch.Send([]byte("0:")))
	err = ch.Send([]byte("4:"))
	require.True(t, errors.Is(err, model.ErrProtocol), "second send: %v", err)
	require.Equal(t, []string{"0:"}, ch.Sent())

	ch.ReplyAck()
	reply, err := ch.Receive()
	require.NoError(t, err)
	v, err := model.DecodeReply(reply, 0)
	require.NoError(t, err)
	require.EqualValues(t, model.OpAck, v)

	require.NoError(t, ch.Send([]byte("4:")))
	require.Equal(t, []string{"0:", "4:"}, ch.Sent())
}

// Test checks that a failed receive keeps the reply outstanding and Close unblocks receivers.
func Test_Transport_FailureAndClose(t *testing.T) {
	ch := transporttest.NewRecorder()

	require.NoError(t, ch.Send([]byte("4:")))
	ch.ReplyError(errors.New("socket reset"))
	_, err := ch.Receive()
	require.True(t, errors.Is(err, model.ErrConnection))
	require.True(t, ch.Awaiting())

	done := make(chan error, 1)
	go func() {
		_, err := ch.Receive()
		done <- err
	}()
	require.NoError(t, ch.Close())
	require.True(t, errors.Is(<-done, model.ErrConnection))
	require.True(t, ch.IsClosed())

	err = ch.Send([]byte("0:"))
	require.True(t, errors.Is(err, model.ErrConnection))
}
