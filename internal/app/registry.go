package app

import (
	"context"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry maps connection ids to their sessions. It is owned by the
// dispatch loop and never touched from connection goroutines.
type Registry struct {
	sessions map[domain.UserID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.UserID]*sessionEntry)}
}

// Bind registers sess under its user id. cancel tears the connection down.
func (r *Registry) Bind(sess core.MemberSession, cancel context.CancelFunc) {
	id := sess.User().ID
	r.sessions[id] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("bound session")
}

func (r *Registry) Get(id domain.UserID) (core.MemberSession, bool) {
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return nil, false
}

// User resolves an id to its user, nil when the connection is gone.
func (r *Registry) User(id domain.UserID) *domain.User {
	if e, ok := r.sessions[id]; ok {
		return e.Session.User()
	}
	return nil
}

func (r *Registry) Unbind(id domain.UserID) {
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unbind session")
}

// Cancel closes the connection of id. The gateway runs the disconnect
// cascade once its pumps observe the cancellation.
func (r *Registry) Cancel(id domain.UserID) bool {
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("canceled session")
	return true
}

func (r *Registry) Len() int { return len(r.sessions) }
