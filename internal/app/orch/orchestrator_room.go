package orch

import (
	"slices"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
	"github.com/rs/zerolog/log"
)

// CreateRoom fails with a conflict when uid already is in id or id is taken.
func (o *Orchestrator) CreateRoom(uid domain.UserID, id domain.RoomID) (*domain.Room, error) {
	u := o.user(uid)
	if u == nil {
		return nil, ErrNotConnected
	}
	if u.CurrentRoom() == id {
		return nil, domain.ErrAlreadyMember
	}
	if o.Rooms.Exists(id) {
		return nil, domain.ErrRoomAlreadyExists
	}
	return o.join(u, id), nil
}

// JoinRoom moves uid into id, creating the room when absent. Joining the
// room the user is already in leaves membership untouched and resends the state.
func (o *Orchestrator) JoinRoom(uid domain.UserID, id domain.RoomID) (*domain.Room, error) {
	u := o.user(uid)
	if u == nil {
		return nil, ErrNotConnected
	}
	if room, ok := o.Rooms.Get(id); ok {
		if room.IsBanned(u.IP) {
			log.Info().Str("module", "orch").Str("sid", string(uid)).Str("room", string(id)).Msg("banned user tried to join")
			return nil, ErrBanned
		}
		if room.Has(uid) {
			o.emit(uid, protocol.EventRoomUpdate, protocol.StateOf(room, o.user))
			return room, nil
		}
	}
	room := o.join(u, id)
	o.broadcast(room, uid, protocol.EventNewUser, protocol.NewUserEvent{NewUser: protocol.ViewOf(u)})
	return room, nil
}

func (o *Orchestrator) join(u *domain.User, id domain.RoomID) *domain.Room {
	if cur := o.roomOf(u); cur != nil && cur.ID != id {
		o.leave(u, cur, true)
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		room = domain.NewRoom(id, u.ID, o.Defaults)
		o.Rooms.Set(room)
		log.Info().Str("module", "orch").Str("sid", string(u.ID)).Str("room", string(id)).Int("rooms", o.Rooms.Len()).Msg("room created")
	}
	room.AddUser(u)
	log.Info().Str("module", "orch").Str("sid", string(u.ID)).Str("room", string(id)).Int("members", len(room.Users)).Msg("joined room")

	o.announce(room)
	o.broadcastState(room)
	return room
}

// LeaveRoom returns the id of the vacated room.
func (o *Orchestrator) LeaveRoom(uid domain.UserID) (domain.RoomID, error) {
	u, room, err := o.member(uid)
	if err != nil {
		return "", err
	}
	o.leave(u, room, true)
	return room.ID, nil
}

// leave removes u from room and tears down its follow edges. notify sends
// the departing user its own notices; it is false once the connection is gone.
func (o *Orchestrator) leave(u *domain.User, room *domain.Room, notify bool) {
	o.unfollow(u, notify)
	for _, fid := range slices.Clone(u.Followers) {
		f := o.user(fid)
		if f == nil || f.Following != u.ID {
			continue
		}
		f.Following = ""
		o.respond(f.ID, protocol.ResultOf(protocol.UnfollowUser, protocol.UnfollowResult{UnfollowedUser: protocol.RefOf(u)}))
	}
	u.Followers = nil

	room.RemoveUser(u)
	log.Info().Str("module", "orch").Str("sid", string(u.ID)).Str("room", string(room.ID)).Int("members", len(room.Users)).Msg("left room")

	if room.Empty() {
		o.Rooms.Delete(room.ID)
		o.withdraw(room.ID)
		log.Info().Str("module", "orch").Str("room", string(room.ID)).Int("rooms", o.Rooms.Len()).Msg("room disposed")
	} else {
		o.announce(room)
		o.broadcastState(room)
	}
	if notify {
		o.emit(u.ID, protocol.EventRoomUpdate, nil)
	}
}

// TransferHost does not check that newHost is a member of the room.
func (o *Orchestrator) TransferHost(uid, newHost domain.UserID) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	if room.HostID != uid {
		return ErrNotHost
	}
	room.HostID = newHost
	log.Info().Str("module", "orch").Str("room", string(room.ID)).Str("host", string(newHost)).Msg("host transferred")

	o.announce(room)
	o.broadcastState(room)
	return nil
}

// BanUser bans the target's address from the room and removes the target.
func (o *Orchestrator) BanUser(uid, target domain.UserID) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	if room.HostID != uid {
		return ErrNotHost
	}
	t := o.user(target)
	if t == nil || target == uid || !room.Has(target) {
		return ErrUnknownUser
	}
	room.Ban(t.IP)
	log.Info().Str("module", "orch").Str("room", string(room.ID)).Str("sid", string(target)).Str("ip", t.IP).Msg("user banned")

	o.leave(t, room, true)
	o.emit(target, protocol.EventBanned, protocol.BannedEvent{RoomID: room.ID})
	return nil
}
