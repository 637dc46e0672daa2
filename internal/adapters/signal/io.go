package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Collab/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the disconnect cascade: it runs on every exit path.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cl *wsClient) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Msg("readPump closing")
		cancel()
		ctl.closePeer(cl.sid)
		if err := ctl.Orch.Run(context.Background(), func() { ctl.Orch.Disconnect(cl.sid) }); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("disconnect not applied")
		}
		cl.conn.Close()
	}()

	pongWait := ctl.Opts.PingPeriod * 10 / 9
	cl.conn.conn.SetReadLimit(ctl.Opts.ReadLimit)
	_ = cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.conn.SetPongHandler(func(string) error {
		return cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, cl, data)
	}
}

// handleSignal decodes one frame from either transport and routes it.
func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *wsClient, data []byte) {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("bad json")
		ctl.sendJSON(cl.conn, protocol.Response{Type: "error", Error: protocol.ErrBadPayload})
		return
	}

	if req.Type.Transport() {
		ctl.handleTransport(ctx, cl, req)
		return
	}

	if !req.Type.Valid() {
		log.Warn().Str("module", "signal").Str("type", string(req.Type)).Msg("unknown signal")
		return
	}
	if req.Type.Lifecycle() && ctl.Limiter != nil && !ctl.Limiter.Allow(ctl.limitKey(cl)) {
		log.Warn().Str("module", "signal").Str("sid", string(cl.sid)).Str("ip", cl.ip).Str("type", string(req.Type)).Msg("rate limited")
		ctl.sendJSON(cl.conn, protocol.FailureOf(req.Type, protocol.ErrRateLimited))
		return
	}
	if err := ctl.Orch.Submit(ctx, cl.sid, req); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Str("type", string(req.Type)).Msg("command not applied")
	}
}

func (ctl *SignalWSController) limitKey(cl *wsClient) string {
	if cl.ip != "" {
		return cl.ip
	}
	if cl.token != "" {
		return cl.token
	}
	return string(cl.sid)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
