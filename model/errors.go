package model

import "github.com/cockroachdb/errors"

// Error classes shared by the transport, the client and the stub service.
// Call sites wrap the underlying cause and mark it with one of these, so
// errors.Is(err, ErrProtocol) classifies a failure regardless of its message.
var (
	// ErrConnection: the transport could not be established or failed mid-session.
	ErrConnection = errors.New("connection error")
	// ErrHandshake: the Syn or CreateGraph step was not acknowledged.
	ErrHandshake = errors.New("handshake error")
	// ErrProtocol: malformed, truncated or unexpected wire data.
	ErrProtocol = errors.New("protocol error")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrClosed          = errors.New("client closed")
	ErrSessionBroken   = errors.New("session broken")
)

// MarkAs wraps err with msg and classifies it as class.
func MarkAs(err error, class error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	return errors.Mark(errors.Wrapf(err, format, args...), class)
}

// NewError builds a new error classified as class.
func NewError(class error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), class)
}
