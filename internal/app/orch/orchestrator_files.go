package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

var (
	ErrNoSuchFile    = errors.New("no such file")
	ErrNoSuchPackage = errors.New("no such package")
	ErrEmptyName     = errors.New("empty name")
)

// Edit relays an editor operation verbatim and keeps the stored content of
// an existing file in step with the sender's result.
func (o *Orchestrator) Edit(uid domain.UserID, kind protocol.Kind, p protocol.EditParams) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	path := domain.CleanPath(p.Path)
	if _, ok := room.File(path); ok {
		room.UpsertFile(path, p.Content)
	}
	o.broadcast(room, uid, protocol.EventEdit, protocol.EditEvent{
		UserID:  uid,
		Path:    path,
		Content: p.Content,
		Specifics: protocol.EditSpecifics{
			Kind:   kind,
			Index:  p.Index,
			Length: p.Length,
			Text:   p.Text,
		},
	})
	return nil
}

// CreateOrUpdateFile reports whether the room's files changed.
func (o *Orchestrator) CreateOrUpdateFile(uid domain.UserID, path, content string) (bool, error) {
	_, room, err := o.member(uid)
	if err != nil {
		return false, err
	}
	path, err = domain.ValidatePath(path)
	if err != nil {
		return false, err
	}
	if !room.UpsertFile(path, content) {
		return false, nil
	}
	o.broadcast(room, uid, protocol.EventFileUpdate, protocol.FileEvent{Path: path, Content: content})
	return true, nil
}

func (o *Orchestrator) RemoveFile(uid domain.UserID, path string) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	path = domain.CleanPath(path)
	if !room.RemoveFile(path) {
		return ErrNoSuchFile
	}
	o.broadcast(room, uid, protocol.EventFileRemove, protocol.FileRemovedEvent{Path: path})
	return nil
}

// RenameFile notifies the room even when no file matched from. Renaming
// onto another existing file is ignored.
func (o *Orchestrator) RenameFile(uid domain.UserID, from, to string) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	to, err = domain.ValidatePath(to)
	if err != nil {
		return err
	}
	from = domain.CleanPath(from)
	if from != to {
		if _, taken := room.File(to); taken {
			return domain.ErrPathTaken
		}
	}
	room.RenameFile(from, to)
	o.broadcast(room, uid, protocol.EventFileRename, protocol.RenameEvent{From: from, To: to})
	return nil
}

// AddPackage appends even when a package of the same name is present.
func (o *Orchestrator) AddPackage(uid domain.UserID, name, version string) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	if name == "" {
		return ErrEmptyName
	}
	room.AddPackage(name, version)
	o.broadcast(room, uid, protocol.EventPackageAdd, protocol.PackageEvent{Name: name, Version: version})
	return nil
}

func (o *Orchestrator) RemovePackage(uid domain.UserID, name string) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	if !room.RemovePackage(name) {
		return ErrNoSuchPackage
	}
	o.broadcast(room, uid, protocol.EventPackageRemove, protocol.PackageEvent{Name: name})
	return nil
}

// UpdateOptions replaces a whole option section.
func (o *Orchestrator) UpdateOptions(uid domain.UserID, section string, value json.RawMessage) error {
	_, room, err := o.member(uid)
	if err != nil {
		return err
	}
	if section == "" {
		return ErrEmptyName
	}
	room.SetOption(section, value)
	o.broadcast(room, uid, protocol.EventOptionsUpdate, protocol.OptionsEvent{Section: section, Value: value})
	return nil
}
