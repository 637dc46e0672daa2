package protocol

import (
	"encoding/json"

	"github.com/dkeye/Collab/internal/domain"
)

// Error strings surfaced to clients.
const (
	ErrBadPayload  = "bad_payload"
	ErrRateLimited = "rate_limited"
)

// Response answers the initiator of a command: either Error or Result is set.
type Response struct {
	Type   string `json:"type"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

func ResultOf(k Kind, v any) Response {
	return Response{Type: "result:" + string(k), Result: v}
}

func FailureOf(k Kind, msg string) Response {
	return Response{Type: "result:" + string(k), Error: msg}
}

// Event names pushed by the server.
const (
	EventRoomUpdate    = "room:update"
	EventNewUser       = "room:newUser"
	EventBanned        = "room:banned"
	EventCursor        = "user:cursor"
	EventSelection     = "user:selection"
	EventFollowPath    = "user:followPath"
	EventFollower      = "user:follower"
	EventEdit          = "file:edit"
	EventFileUpdate    = "file:update"
	EventFileRemove    = "file:remove"
	EventFileRename    = "file:rename"
	EventPackageAdd    = "package:add"
	EventPackageRemove = "package:remove"
	EventOptionsUpdate = "options:update"
	EventPong          = "pong"
	EventAnswer        = "answer"
	EventCandidate     = "candidate"
)

// Event is a server push. A nil Payload encodes as null.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// UserRef identifies a user in follow notices.
type UserRef struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

func RefOf(u *domain.User) UserRef { return UserRef{ID: u.ID, Name: u.Name} }

// UserView is the roster entry of a user.
type UserView struct {
	ID        domain.UserID   `json:"id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Icon      string          `json:"icon"`
	State     domain.Presence `json:"state"`
	Following domain.UserID   `json:"following,omitempty"`
	Followers []domain.UserID `json:"followers"`
}

func ViewOf(u *domain.User) UserView {
	followers := make([]domain.UserID, len(u.Followers))
	copy(followers, u.Followers)
	state := u.State
	if state.CursorOffset != nil {
		off := *state.CursorOffset
		state.CursorOffset = &off
	}
	if state.SelectionOffset != nil {
		sel := *state.SelectionOffset
		state.SelectionOffset = &sel
	}
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Color:     u.Color,
		Icon:      u.Icon,
		State:     state,
		Following: u.Following,
		Followers: followers,
	}
}

// RoomState is the roster broadcast with room:update. Files, packages,
// options and bans travel separately.
type RoomState struct {
	ID     domain.RoomID `json:"id"`
	HostID domain.UserID `json:"hostId"`
	Users  []UserView    `json:"users"`
}

// StateOf serializes r, resolving member ids through lookup.
func StateOf(r *domain.Room, lookup func(domain.UserID) *domain.User) RoomState {
	st := RoomState{ID: r.ID, HostID: r.HostID, Users: make([]UserView, 0, len(r.Users))}
	for _, id := range r.Users {
		if u := lookup(id); u != nil {
			st.Users = append(st.Users, ViewOf(u))
		}
	}
	return st
}

type RoomIDResult struct {
	RoomID domain.RoomID `json:"roomId"`
}

type JoinResult struct {
	RoomID   domain.RoomID    `json:"roomId"`
	Files    []domain.File    `json:"files"`
	Packages []domain.Package `json:"packages"`
	Options  domain.Options   `json:"options"`
}

type UserIDResult struct {
	UserID domain.UserID `json:"userId"`
}

type SamePathResult struct {
	UsersOnSamePath []UserView `json:"usersOnSamePath"`
}

type FollowResult struct {
	FollowedUser UserRef `json:"followedUser"`
}

type UnfollowResult struct {
	UnfollowedUser UserRef `json:"unfollowedUser"`
}

type WhoAmIResult struct {
	UserID domain.UserID `json:"userId"`
	Name   string        `json:"name"`
	Color  string        `json:"color"`
	Icon   string        `json:"icon"`
	RoomID domain.RoomID `json:"roomId,omitempty"`
}

type NewUserEvent struct {
	NewUser UserView `json:"newUser"`
}

type CursorEvent struct {
	UserID domain.UserID `json:"userId"`
	Path   string        `json:"path"`
	Offset int           `json:"offset"`
}

type SelectionEvent struct {
	UserID domain.UserID `json:"userId"`
	Path   string        `json:"path"`
	Start  int           `json:"start"`
	End    int           `json:"end"`
}

type EditSpecifics struct {
	Kind   Kind    `json:"kind"`
	Index  int     `json:"index"`
	Length *int    `json:"length,omitempty"`
	Text   *string `json:"text,omitempty"`
}

type EditEvent struct {
	UserID    domain.UserID `json:"userId"`
	Path      string        `json:"path"`
	Content   string        `json:"content"`
	Specifics EditSpecifics `json:"specifics"`
}

type FileEvent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type FileRemovedEvent struct {
	Path string `json:"path"`
}

type RenameEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PackageEvent struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type OptionsEvent struct {
	Section string          `json:"section"`
	Value   json.RawMessage `json:"value"`
}

type FollowPathEvent struct {
	UserID domain.UserID `json:"userId"`
	Path   string        `json:"path"`
}

type FollowerEvent struct {
	Follower UserRef `json:"follower"`
}

type BannedEvent struct {
	RoomID domain.RoomID `json:"roomId"`
}
