// Package orch applies client commands to rooms and users. Every method
// that touches a Registry, Room or User must run on the Dispatcher loop.
package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/directory"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Precondition and not-found failures. They are logged and never reach the client.
var (
	ErrNotConnected = errors.New("not connected")
	ErrNotInRoom    = errors.New("not in a room")
	ErrNotHost      = errors.New("not the room host")
	ErrUnknownUser  = errors.New("unknown user")
	ErrBanned       = errors.New("banned from room")
)

// Announcer receives room summaries whenever membership changes.
type Announcer interface {
	Announce(directory.RoomInfo)
	Withdraw(domain.RoomID)
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Relay    *app.Relay
	Policy   app.Policy
	IDs      *app.IDGenerator
	Defaults domain.Options

	// Loop serializes access to the registries. Nil runs work inline,
	// which is only safe from a single goroutine.
	Loop *Dispatcher
	// Directory and Lookup are optional.
	Directory Announcer
	Lookup    directory.Directory
}

func New(defaults domain.Options) *Orchestrator {
	reg := app.NewRegistry()
	return &Orchestrator{
		Registry: reg,
		Rooms:    app.NewRoomManager(),
		Relay:    app.NewRelay(reg),
		Policy:   app.SimplePolicy{},
		IDs:      app.NewIDGenerator(app.DefaultIDBudget),
		Defaults: defaults,
	}
}

// Run executes fn on the loop and waits for it.
func (o *Orchestrator) Run(ctx context.Context, fn func()) error {
	if o.Loop == nil {
		fn()
		return nil
	}
	return o.Loop.Do(ctx, fn)
}

// Connect registers a freshly accepted connection.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Bind(sess, cancel)
	u := sess.User()
	log.Info().Str("module", "orch").Str("sid", string(u.ID)).Str("ip", u.IP).Int("sessions", o.Registry.Len()).Msg("connected")
}

// Disconnect runs the leave cascade for uid and forgets the connection.
func (o *Orchestrator) Disconnect(uid domain.UserID) {
	u := o.user(uid)
	if u == nil {
		return
	}
	if room := o.roomOf(u); room != nil {
		o.leave(u, room, false)
	}
	o.Registry.Unbind(uid)
	log.Info().Str("module", "orch").Str("sid", string(uid)).Int("sessions", o.Registry.Len()).Msg("disconnected")
}

// GenerateRoomID may be called off the loop; registry checks are submitted to it.
func (o *Orchestrator) GenerateRoomID(ctx context.Context) domain.RoomID {
	id, _ := o.IDs.Generate(func(id domain.RoomID) bool { return o.roomTaken(ctx, id) })
	return id
}

// WithdrawAll removes every live room from the directory. It is meant for
// shutdown, after the loop has stopped.
func (o *Orchestrator) WithdrawAll() int {
	rooms := o.Rooms.List()
	for _, r := range rooms {
		o.withdraw(r.ID)
	}
	return len(rooms)
}

func (o *Orchestrator) roomTaken(ctx context.Context, id domain.RoomID) bool {
	taken := false
	if err := o.Run(ctx, func() { taken = o.Rooms.Exists(id) }); err != nil {
		return false
	}
	if taken || o.Lookup == nil {
		return taken
	}
	ok, err := o.Lookup.Exists(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(id)).Msg("directory lookup failed")
		return false
	}
	return ok
}

func (o *Orchestrator) user(uid domain.UserID) *domain.User {
	return o.Registry.User(uid)
}

func (o *Orchestrator) roomOf(u *domain.User) *domain.Room {
	if !u.InRoom() {
		return nil
	}
	room, _ := o.Rooms.Get(u.CurrentRoom())
	return room
}

// member resolves uid and the room it is in.
func (o *Orchestrator) member(uid domain.UserID) (*domain.User, *domain.Room, error) {
	u := o.user(uid)
	if u == nil {
		return nil, nil, ErrNotConnected
	}
	room := o.roomOf(u)
	if room == nil {
		return u, nil, ErrNotInRoom
	}
	return u, room, nil
}

func (o *Orchestrator) respond(uid domain.UserID, resp protocol.Response) {
	o.settle(nil, o.Relay.ToUser(uid, resp))
}

func (o *Orchestrator) emit(uid domain.UserID, event string, payload any) {
	o.settle(nil, o.Relay.ToUser(uid, protocol.Event{Type: event, Payload: payload}))
}

func (o *Orchestrator) emitTo(ids []domain.UserID, event string, payload any) {
	o.settle(nil, o.Relay.ToUsers(ids, protocol.Event{Type: event, Payload: payload}))
}

// broadcast sends to every member of room except the given id.
func (o *Orchestrator) broadcast(room *domain.Room, except domain.UserID, event string, payload any) {
	o.settle(room, o.Relay.ToRoom(room, except, protocol.Event{Type: event, Payload: payload}))
}

func (o *Orchestrator) broadcastState(room *domain.Room) {
	o.broadcast(room, "", protocol.EventRoomUpdate, protocol.StateOf(room, o.user))
}

// settle falls back from closed peer transports and applies the
// back-pressure policy to sessions that could not take a frame.
func (o *Orchestrator) settle(room *domain.Room, res core.PublishResult) {
	for _, stale := range res.Stale {
		o.DetachPeer(stale.User().ID, stale.Peer())
	}
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow.User().ID)).Msg("kicking slow member")
			o.Registry.Cancel(slow.User().ID)
		case app.DropFrame:
		}
	}
}

func (o *Orchestrator) announce(room *domain.Room) {
	if o.Directory != nil {
		o.Directory.Announce(directory.InfoOf(room))
	}
}

func (o *Orchestrator) withdraw(id domain.RoomID) {
	if o.Directory != nil {
		o.Directory.Withdraw(id)
	}
}
