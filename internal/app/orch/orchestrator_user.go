package orch

import (
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

// UpdateName renames target, or the caller when target is empty. Only the
// host may rename someone else. Returns the id of the renamed user.
func (o *Orchestrator) UpdateName(uid, target domain.UserID, name string) (domain.UserID, error) {
	u := o.user(uid)
	if u == nil {
		return "", ErrNotConnected
	}
	subject := u
	if target != "" && target != uid {
		room := o.roomOf(u)
		if room == nil {
			return "", ErrNotInRoom
		}
		if room.HostID != uid {
			return "", ErrNotHost
		}
		subject = o.user(target)
		if subject == nil || !room.Has(target) {
			return "", ErrUnknownUser
		}
	}
	if err := subject.SetName(name); err != nil {
		return "", err
	}
	if room := o.roomOf(subject); room != nil {
		o.broadcastState(room)
	}
	return subject.ID, nil
}

// Follow points uid at target, dropping any previous edge first.
func (o *Orchestrator) Follow(uid, target domain.UserID) (*domain.User, error) {
	u, room, err := o.member(uid)
	if err != nil {
		return nil, err
	}
	t := o.user(target)
	if t == nil || target == uid || !room.Has(target) {
		return nil, ErrUnknownUser
	}
	o.unfollow(u, true)
	u.Following = t.ID
	t.AddFollower(u.ID)

	o.emit(t.ID, protocol.EventFollower, protocol.FollowerEvent{Follower: protocol.RefOf(u)})
	return t, nil
}

// Unfollow reports whether an edge was removed.
func (o *Orchestrator) Unfollow(uid domain.UserID) bool {
	u := o.user(uid)
	if u == nil {
		return false
	}
	return o.unfollow(u, true)
}

func (o *Orchestrator) unfollow(u *domain.User, notify bool) bool {
	if u.Following == "" {
		return false
	}
	ref := protocol.UserRef{ID: u.Following}
	if t := o.user(u.Following); t != nil {
		t.RemoveFollower(u.ID)
		ref = protocol.RefOf(t)
	}
	u.Following = ""
	if notify {
		o.respond(u.ID, protocol.ResultOf(protocol.UnfollowUser, protocol.UnfollowResult{UnfollowedUser: ref}))
	}
	return true
}

// UpdatePath returns the other members on the same path and tells
// followers to switch to it.
func (o *Orchestrator) UpdatePath(uid domain.UserID, path string) ([]protocol.UserView, error) {
	u := o.user(uid)
	if u == nil {
		return nil, ErrNotConnected
	}
	u.State.Path = path

	same := []protocol.UserView{}
	room := o.roomOf(u)
	if room == nil {
		return same, nil
	}
	for _, id := range room.Users {
		if id == uid {
			continue
		}
		if other := o.user(id); other != nil && other.State.Path == path {
			same = append(same, protocol.ViewOf(other))
		}
	}
	o.emitTo(u.Followers, protocol.EventFollowPath, protocol.FollowPathEvent{UserID: uid, Path: path})
	return same, nil
}

func (o *Orchestrator) UpdateCursor(uid domain.UserID, path string, offset int) error {
	u, room, err := o.member(uid)
	if err != nil {
		return err
	}
	u.State.CursorOffset = &offset
	o.broadcast(room, uid, protocol.EventCursor, protocol.CursorEvent{UserID: uid, Path: path, Offset: offset})
	return nil
}

func (o *Orchestrator) UpdateSelection(uid domain.UserID, path string, start, end int) error {
	u, room, err := o.member(uid)
	if err != nil {
		return err
	}
	u.State.SelectionOffset = &domain.Selection{Start: start, End: end}
	o.broadcast(room, uid, protocol.EventSelection, protocol.SelectionEvent{UserID: uid, Path: path, Start: start, End: end})
	return nil
}

func (o *Orchestrator) WhoAmI(uid domain.UserID) (protocol.WhoAmIResult, error) {
	u := o.user(uid)
	if u == nil {
		return protocol.WhoAmIResult{}, ErrNotConnected
	}
	return protocol.WhoAmIResult{
		UserID: u.ID,
		Name:   u.Name,
		Color:  u.Color,
		Icon:   u.Icon,
		RoomID: u.CurrentRoom(),
	}, nil
}
