// Package domain contains the room and user entities and the pure mutations on them.
// Nothing here performs I/O or notifies anyone; callers decide what to broadcast.
package domain

import (
	"errors"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

const (
	MaxUsernameLen = 36
)

var ErrUsernameEmpty = errors.New("username empty")

type UserID string

// Palette the collaborator colors and icons are drawn from.
var (
	UserColors = []string{
		"#ff7d7d", "#ff9b7d", "#ffb37d", "#ffd27d", "#fff27d", "#e1ff7d",
		"#b8ff7d", "#8eff7d", "#7dff99", "#7dffbe", "#7dffe5", "#7df0ff",
		"#7dcfff", "#7da6ff", "#7d81ff", "#a07dff", "#c77dff", "#e37dff",
		"#ff7df9", "#ff7ddc", "#ff7db8", "#ff7d97",
	}
	UserIcons = []string{
		"bat", "bee", "bird", "bug", "butterfly", "cat", "cow", "dog", "duck", "dolphin",
		"fish", "horse-variant", "jellyfish", "koala", "owl", "panda", "paw", "rabbit",
		"spider", "tortoise",
	}
)

// Selection is a half-open offset range inside the active file.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Presence is the last reported editing state of a user.
type Presence struct {
	Path            string     `json:"path,omitempty"`
	CursorOffset    *int       `json:"cursorOffset,omitempty"`
	SelectionOffset *Selection `json:"selectionOffset,omitempty"`
}

// User is one connected participant. ID equals the connection id.
// Room membership and follow edges reference other entities by id only.
type User struct {
	ID    UserID
	IP    string
	Name  string
	Color string
	Icon  string
	State Presence

	room      RoomID
	Following UserID
	Followers []UserID
}

// NewUser assigns a random color and icon from the palette.
func NewUser(id UserID, ip string) *User {
	return &User{
		ID:    id,
		IP:    ip,
		Color: UserColors[rand.IntN(len(UserColors))],
		Icon:  UserIcons[rand.IntN(len(UserIcons))],
	}
}

// CurrentRoom returns the room the user is in, or "" when in none.
func (u *User) CurrentRoom() RoomID { return u.room }

func (u *User) InRoom() bool { return u.room != "" }

// SetName trims and clips the display name.
func (u *User) SetName(name string) error {
	name = NormalizeName(name)
	if name == "" {
		return ErrUsernameEmpty
	}
	u.Name = name
	return nil
}

// NormalizeName trims whitespace and clips to MaxUsernameLen runes.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		name = string([]rune(name)[:MaxUsernameLen])
	}
	return name
}

func (u *User) AddFollower(id UserID) {
	for _, f := range u.Followers {
		if f == id {
			return
		}
	}
	u.Followers = append(u.Followers, id)
}

func (u *User) RemoveFollower(id UserID) bool {
	for i, f := range u.Followers {
		if f == id {
			u.Followers = append(u.Followers[:i], u.Followers[i+1:]...)
			return true
		}
	}
	return false
}
