package app

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay encodes a message once and fans it out to sessions.
type Relay struct {
	Sessions *Registry
}

func NewRelay(sessions *Registry) *Relay {
	return &Relay{Sessions: sessions}
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode failed")
		return nil, false
	}
	return b, true
}

// ToUser sends v to a single user.
func (r *Relay) ToUser(id domain.UserID, v any) core.PublishResult {
	frame, ok := encode(v)
	if !ok {
		return core.PublishResult{}
	}
	return r.send([]domain.UserID{id}, "", frame)
}

// ToRoom sends v to every member of room except the given id ("" for nobody).
func (r *Relay) ToRoom(room *domain.Room, except domain.UserID, v any) core.PublishResult {
	frame, ok := encode(v)
	if !ok {
		return core.PublishResult{}
	}
	return r.send(room.Users, except, frame)
}

// ToUsers sends v to each listed user.
func (r *Relay) ToUsers(ids []domain.UserID, v any) core.PublishResult {
	if len(ids) == 0 {
		return core.PublishResult{}
	}
	frame, ok := encode(v)
	if !ok {
		return core.PublishResult{}
	}
	return r.send(ids, "", frame)
}

func (r *Relay) send(ids []domain.UserID, except domain.UserID, frame core.Frame) core.PublishResult {
	var res core.PublishResult
	for _, id := range ids {
		if id == except {
			continue
		}
		sess, ok := r.Sessions.Get(id)
		if !ok {
			continue
		}
		err := sess.Transport().TrySend(frame)
		if errors.Is(err, core.ErrClosed) && sess.Peer() != nil {
			res.Stale = append(res.Stale, sess)
			err = sess.Signal().TrySend(frame)
		}
		switch {
		case err == nil:
			res.SendTo++
		case errors.Is(err, core.ErrBackpressure):
			log.Debug().Err(err).Str("module", "app.relay").Str("sid", string(id)).Msg("send dropped")
			res.Dropped = append(res.Dropped, sess)
		default:
			// closed signal connection, the disconnect cascade is already on its way
			log.Debug().Err(err).Str("module", "app.relay").Str("sid", string(id)).Msg("send failed")
		}
	}
	return res
}
