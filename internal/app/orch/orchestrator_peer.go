package orch

import (
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/rs/zerolog/log"
)

// AttachPeer makes conn the preferred outbound transport of uid.
func (o *Orchestrator) AttachPeer(uid domain.UserID, conn core.SignalConnection) bool {
	sess, ok := o.Registry.Get(uid)
	if !ok {
		return false
	}
	if old := sess.Peer(); old != nil && old != conn {
		old.Close()
	}
	sess.UpdatePeer(conn)
	log.Info().Str("module", "orch").Str("sid", string(uid)).Msg("peer transport attached")
	return true
}

// DetachPeer falls back to the signal connection if conn is still attached.
func (o *Orchestrator) DetachPeer(uid domain.UserID, conn core.SignalConnection) {
	sess, ok := o.Registry.Get(uid)
	if !ok || sess.Peer() != conn {
		return
	}
	sess.UpdatePeer(nil)
	log.Info().Str("module", "orch").Str("sid", string(uid)).Msg("peer transport detached")
}
