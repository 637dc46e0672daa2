package signal

import (
	"context"

	"github.com/dkeye/Collab/internal/protocol"
)

// handleTransport answers the kinds the gateway owns.
func (ctl *SignalWSController) handleTransport(ctx context.Context, cl *wsClient, req protocol.Request) {
	switch req.Type {
	case protocol.Ping:
		ctl.handlePing(cl.conn)
	case protocol.Offer:
		ctl.handleOffer(ctx, cl, req)
	case protocol.Candidate:
		ctl.handleCandidate(cl, req)
	}
}

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, protocol.Event{Type: protocol.EventPong})
}
