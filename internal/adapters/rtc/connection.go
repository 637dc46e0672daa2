package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DataChannelLabel is the label of the client-created channel carrying protocol frames.
const DataChannelLabel = "collab"

type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	sid    domain.UserID
	onICE  func(webrtc.ICECandidateInit)
	cancel context.CancelFunc

	maxBuffered uint64
	onOpen      func(*DataChannelConn)
	onMessage   func([]byte)
	onClosed    func()
	closeOnce   sync.Once
}

// ConfigFor builds a configuration from ICE server URLs. No URLs means host candidates only.
func ConfigFor(urls []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(urls) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: urls}}
	}
	return cfg
}

func NewWebRTCConnection(cfg webrtc.Configuration, sid domain.UserID, maxBuffered uint64) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	if maxBuffered == 0 {
		maxBuffered = defaultMaxBuffered
	}
	return &WebRTCConnection{pc: pc, sid: sid, maxBuffered: maxBuffered}, nil
}

func (c *WebRTCConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			c.fireClosed()
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != DataChannelLabel {
			log.Warn().Str("module", "webrtc").Str("sid", string(c.sid)).Str("label", dc.Label()).Msg("ignoring data channel")
			return
		}
		conn := newDataChannelConn(dc, c.maxBuffered)
		dc.OnOpen(func() {
			log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Msg("data channel open")
			if ctx.Err() == nil && c.onOpen != nil {
				c.onOpen(conn)
			}
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if c.onMessage != nil {
				c.onMessage(msg.Data)
			}
		})
		dc.OnClose(func() {
			log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Msg("data channel closed")
			conn.markClosed()
			c.fireClosed()
		})
	})

	return nil
}

func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *WebRTCConnection) fireClosed() {
	c.closeOnce.Do(func() {
		if c.onClosed != nil {
			c.onClosed()
		}
	})
}

func (c *WebRTCConnection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("sid", string(c.sid)).Msg("close error")
		} else {
			log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Msg("closed")
		}
	}
	c.fireClosed()
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.onICE = fn
}

// OnOpen is called once the collab data channel is usable.
func (c *WebRTCConnection) OnOpen(fn func(*DataChannelConn)) { c.onOpen = fn }

// OnMessage receives every inbound data channel frame.
func (c *WebRTCConnection) OnMessage(fn func([]byte)) { c.onMessage = fn }

// OnClosed runs once, when either the channel or the peer connection goes away.
func (c *WebRTCConnection) OnClosed(fn func()) { c.onClosed = fn }
