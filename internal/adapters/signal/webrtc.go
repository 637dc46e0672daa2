package signal

import (
	"context"

	"github.com/dkeye/Collab/internal/adapters/rtc"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type answerPayload struct {
	SDP string `json:"sdp"`
}

func (ctl *SignalWSController) sendCandidate(c *WsSignalConn, ci webrtc.ICECandidateInit) {
	p := protocol.CandidateParams{Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		p.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		p.SDPMLineIndex = *ci.SDPMLineIndex
	}
	ctl.sendJSON(c, protocol.Event{Type: protocol.EventCandidate, Payload: p})
}

// handleOffer negotiates a peer connection whose collab data channel becomes
// the preferred transport of the session.
func (ctl *SignalWSController) handleOffer(
	ctx context.Context,
	cl *wsClient,
	req protocol.Request,
) {
	var p protocol.OfferParams
	if err := req.Decode(&p); err != nil || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendJSON(cl.conn, protocol.FailureOf(req.Type, protocol.ErrBadPayload))
		return
	}

	ctl.closePeer(cl.sid)

	cfg := rtc.ConfigFor(ctl.Opts.ICEServers)
	wc, err := rtc.NewWebRTCConnection(cfg, cl.sid, 0)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		return
	}

	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		ctl.sendCandidate(cl.conn, ci)
	})
	var attached *rtc.DataChannelConn
	wc.OnOpen(func(dc *rtc.DataChannelConn) {
		_ = ctl.Orch.Run(ctx, func() {
			if ctl.Orch.AttachPeer(cl.sid, dc) {
				attached = dc
			}
		})
	})
	wc.OnMessage(func(data []byte) {
		ctl.handleSignal(ctx, cl, data)
	})
	wc.OnClosed(func() {
		_ = ctl.Orch.Run(context.Background(), func() {
			if attached != nil {
				ctl.Orch.DetachPeer(cl.sid, attached)
			}
		})
		ctl.forgetPeer(cl.sid, wc)
	})

	if err = wc.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		wc.Close()
		return
	}

	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  p.SDP,
	}

	answer, err := wc.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		wc.Close()
		return
	}

	ctl.mu.Lock()
	ctl.peers[cl.sid] = wc
	ctl.mu.Unlock()

	ctl.sendJSON(cl.conn, protocol.Event{Type: protocol.EventAnswer, Payload: answerPayload{SDP: answer.SDP}})
}

func (ctl *SignalWSController) handleCandidate(
	cl *wsClient,
	req protocol.Request,
) {
	var p protocol.CandidateParams
	if err := req.Decode(&p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}

	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	ctl.mu.Lock()
	wc := ctl.peers[cl.sid]
	ctl.mu.Unlock()
	if wc == nil {
		log.Warn().Str("module", "signal").Str("sid", string(cl.sid)).Msg("candidate: no peer connection for")
		return
	}
	if err := wc.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

func (ctl *SignalWSController) closePeer(sid domain.UserID) {
	ctl.mu.Lock()
	wc := ctl.peers[sid]
	delete(ctl.peers, sid)
	ctl.mu.Unlock()
	if wc != nil {
		wc.Close()
	}
}

func (ctl *SignalWSController) forgetPeer(sid domain.UserID, wc *rtc.WebRTCConnection) {
	ctl.mu.Lock()
	if ctl.peers[sid] == wc {
		delete(ctl.peers, sid)
	}
	ctl.mu.Unlock()
}
