package rtc

import (
	"sync"

	"github.com/dkeye/Collab/internal/core"
	"github.com/pion/webrtc/v4"
)

const defaultMaxBuffered = 1 << 20

// DataChannelConn exposes a data channel as a core.SignalConnection.
type DataChannelConn struct {
	dc          *webrtc.DataChannel
	maxBuffered uint64

	mu     sync.RWMutex
	closed bool
}

func newDataChannelConn(dc *webrtc.DataChannel, maxBuffered uint64) *DataChannelConn {
	return &DataChannelConn{dc: dc, maxBuffered: maxBuffered}
}

func (d *DataChannelConn) TrySend(f core.Frame) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return core.ErrClosed
	}
	if d.dc.BufferedAmount() > d.maxBuffered {
		return core.ErrBackpressure
	}
	return d.dc.SendText(string(f))
}

func (d *DataChannelConn) markClosed() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *DataChannelConn) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	_ = d.dc.Close()
}
