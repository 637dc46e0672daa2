// Package protocol defines the wire format between clients and the
// connection gateway: the closed set of command kinds, their parameters,
// direct responses and room events.
package protocol

import "encoding/json"

// Kind names an inbound command.
type Kind string

const (
	GenerateRoomID     Kind = "generateRoomId"
	CreateRoom         Kind = "createRoom"
	JoinRoom           Kind = "joinRoom"
	LeaveRoom          Kind = "leaveRoom"
	UpdateName         Kind = "updateName"
	TransferHost       Kind = "transferHost"
	BanUser            Kind = "banUser"
	UpdatePath         Kind = "updatePath"
	UpdateCursor       Kind = "updateCursor"
	UpdateSelection    Kind = "updateSelection"
	EditInsert         Kind = "editInsert"
	EditReplace        Kind = "editReplace"
	EditDelete         Kind = "editDelete"
	FollowUser         Kind = "followUser"
	UnfollowUser       Kind = "unfollowUser"
	CreateOrUpdateFile Kind = "createOrUpdateFile"
	RemoveFile         Kind = "removeFile"
	RenameFile         Kind = "renameFile"
	AddPackage         Kind = "addPackage"
	RemovePackage      Kind = "removePackage"
	UpdateOptions      Kind = "updateOptions"
	WhoAmI             Kind = "whoami"

	// transport-level, answered by the gateway itself
	Ping      Kind = "ping"
	Offer     Kind = "offer"
	Candidate Kind = "candidate"
)

// Kinds is the closed set of commands.
var Kinds = []Kind{
	GenerateRoomID, CreateRoom, JoinRoom, LeaveRoom, UpdateName, TransferHost, BanUser,
	UpdatePath, UpdateCursor, UpdateSelection, EditInsert, EditReplace, EditDelete,
	FollowUser, UnfollowUser, CreateOrUpdateFile, RemoveFile, RenameFile,
	AddPackage, RemovePackage, UpdateOptions, WhoAmI,
	Ping, Offer, Candidate,
}

// Transport reports whether the gateway handles k without touching room state.
func (k Kind) Transport() bool {
	switch k {
	case Ping, Offer, Candidate:
		return true
	}
	return false
}

// Lifecycle kinds are rate limited per client.
func (k Kind) Lifecycle() bool {
	switch k {
	case GenerateRoomID, CreateRoom, JoinRoom:
		return true
	}
	return false
}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Request is an inbound frame.
type Request struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. A missing payload leaves v untouched.
func (r Request) Decode(v any) error {
	if len(r.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(r.Payload, v)
}

type RoomParams struct {
	RoomID string `json:"roomId"`
}

type NameParams struct {
	TargetUserID string `json:"targetUserId,omitempty"`
	Name         string `json:"name"`
}

type HostParams struct {
	NewHostID string `json:"newHostId"`
}

type TargetParams struct {
	TargetUserID string `json:"targetUserId"`
}

type PathParams struct {
	Path string `json:"path"`
}

type CursorParams struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
}

type SelectionParams struct {
	Path  string `json:"path"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EditParams covers insert, replace and delete. Content is the full file
// content after the edit was applied by the sender.
type EditParams struct {
	Path    string  `json:"path"`
	Index   int     `json:"index"`
	Length  *int    `json:"length,omitempty"`
	Text    *string `json:"text,omitempty"`
	Content string  `json:"content"`
}

type FileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type RenameParams struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PackageParams struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type OptionsParams struct {
	Section string          `json:"section"`
	Value   json.RawMessage `json:"value"`
}

type OfferParams struct {
	SDP string `json:"sdp"`
}

type CandidateParams struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}
