package domain

import (
	"encoding/json"
	"errors"
	"slices"
)

var (
	ErrRoomAlreadyExists = errors.New("RoomAlreadyExists")
	ErrAlreadyMember     = errors.New("AlreadyMember")
	ErrPathTaken         = errors.New("path already in use")
)

type RoomID string

type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type Package struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Room is the shared workspace of its members. Users are kept in join order
// and referenced by id; the session registry owns the User values.
type Room struct {
	ID        RoomID
	HostID    UserID
	Users     []UserID
	BannedIPs []string
	Files     []File
	Packages  []Package
	Options   Options
}

func NewRoom(id RoomID, host UserID, options Options) *Room {
	return &Room{
		ID:       id,
		HostID:   host,
		Files:    []File{},
		Packages: []Package{},
		Options:  options.Clone(),
	}
}

func (r *Room) Empty() bool { return len(r.Users) == 0 }

func (r *Room) Has(id UserID) bool { return slices.Contains(r.Users, id) }

// AddUser appends u and points its current room here. The first member becomes host.
func (r *Room) AddUser(u *User) {
	if r.Has(u.ID) {
		u.room = r.ID
		return
	}
	if len(r.Users) == 0 {
		r.HostID = u.ID
	}
	r.Users = append(r.Users, u.ID)
	u.room = r.ID
}

// RemoveUser drops u and clears its current room. When the host leaves and
// others remain, the earliest-joined remaining member becomes host.
func (r *Room) RemoveUser(u *User) bool {
	i := slices.Index(r.Users, u.ID)
	if i < 0 {
		return false
	}
	r.Users = slices.Delete(r.Users, i, i+1)
	if u.room == r.ID {
		u.room = ""
	}
	if u.ID == r.HostID && len(r.Users) > 0 {
		r.HostID = r.Users[0]
	}
	return true
}

func (r *Room) File(path string) (File, bool) {
	for _, f := range r.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// UpsertFile reports whether anything changed.
func (r *Room) UpsertFile(path, content string) bool {
	for i := range r.Files {
		if r.Files[i].Path == path {
			if r.Files[i].Content == content {
				return false
			}
			r.Files[i].Content = content
			return true
		}
	}
	r.Files = append(r.Files, File{Path: path, Content: content})
	return true
}

func (r *Room) RemoveFile(path string) bool {
	for i := range r.Files {
		if r.Files[i].Path == path {
			r.Files = slices.Delete(r.Files, i, i+1)
			return true
		}
	}
	return false
}

// RenameFile keeps the content and reports whether a file was renamed.
// Renaming onto another existing file is refused.
func (r *Room) RenameFile(from, to string) bool {
	if from != to {
		if _, taken := r.File(to); taken {
			return false
		}
	}
	for i := range r.Files {
		if r.Files[i].Path == from {
			r.Files[i].Path = to
			return true
		}
	}
	return false
}

// AddPackage appends without checking for an existing entry of the same name.
func (r *Room) AddPackage(name, version string) {
	r.Packages = append(r.Packages, Package{Name: name, Version: version})
}

func (r *Room) RemovePackage(name string) bool {
	for i := range r.Packages {
		if r.Packages[i].Name == name {
			r.Packages = slices.Delete(r.Packages, i, i+1)
			return true
		}
	}
	return false
}

// SetOption replaces a whole section.
func (r *Room) SetOption(section string, value json.RawMessage) {
	if r.Options == nil {
		r.Options = Options{}
	}
	r.Options[section] = slices.Clone(value)
}

func (r *Room) Ban(ip string) {
	if ip == "" || r.IsBanned(ip) {
		return
	}
	r.BannedIPs = append(r.BannedIPs, ip)
}

func (r *Room) IsBanned(ip string) bool {
	return ip != "" && slices.Contains(r.BannedIPs, ip)
}

// FilesSnapshot and PackagesSnapshot return copies safe to hand to encoders
// running outside the dispatch loop.
func (r *Room) FilesSnapshot() []File { return slices.Clone(r.Files) }

func (r *Room) PackagesSnapshot() []Package { return slices.Clone(r.Packages) }
