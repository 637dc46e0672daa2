package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Frame is one encoded protocol message.
type Frame []byte

// SignalConnection abstracts a message transport (WebSocket, data channel).
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full buffer reports ErrBackpressure.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
