package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
	"github.com/rs/zerolog/log"
)

var errBadPayload = errors.New(protocol.ErrBadPayload)

// handler applies one decoded command. It sends its own direct response.
type handler func(o *Orchestrator, uid domain.UserID, req protocol.Request) error

var handlers = map[protocol.Kind]handler{
	protocol.CreateRoom:         handleCreateRoom,
	protocol.JoinRoom:           handleJoinRoom,
	protocol.LeaveRoom:          handleLeaveRoom,
	protocol.UpdateName:         handleUpdateName,
	protocol.TransferHost:       handleTransferHost,
	protocol.BanUser:            handleBanUser,
	protocol.UpdatePath:         handleUpdatePath,
	protocol.UpdateCursor:       handleUpdateCursor,
	protocol.UpdateSelection:    handleUpdateSelection,
	protocol.EditInsert:         handleEdit,
	protocol.EditReplace:        handleEdit,
	protocol.EditDelete:         handleEdit,
	protocol.FollowUser:         handleFollowUser,
	protocol.UnfollowUser:       handleUnfollowUser,
	protocol.CreateOrUpdateFile: handleCreateOrUpdateFile,
	protocol.RemoveFile:         handleRemoveFile,
	protocol.RenameFile:         handleRenameFile,
	protocol.AddPackage:         handleAddPackage,
	protocol.RemovePackage:      handleRemovePackage,
	protocol.UpdateOptions:      handleUpdateOptions,
	protocol.WhoAmI:             handleWhoAmI,
}

// Submit is the gateway entry point. Id generation consults the directory
// off the loop and is not in the handler table; everything else runs on it.
func (o *Orchestrator) Submit(ctx context.Context, uid domain.UserID, req protocol.Request) error {
	if req.Type == protocol.GenerateRoomID {
		id := o.GenerateRoomID(ctx)
		return o.Run(ctx, func() {
			o.respond(uid, protocol.ResultOf(req.Type, protocol.RoomIDResult{RoomID: id}))
		})
	}
	return o.Run(ctx, func() { o.Handle(uid, req) })
}

// Handle dispatches req on the loop.
func (o *Orchestrator) Handle(uid domain.UserID, req protocol.Request) {
	h, ok := handlers[req.Type]
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(uid)).Str("type", string(req.Type)).Msg("unknown command")
		return
	}
	if o.user(uid) == nil {
		return
	}
	err := h(o, uid, req)
	switch {
	case err == nil:
	case errors.Is(err, errBadPayload):
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(uid)).Str("type", string(req.Type)).Msg("bad payload")
		o.respond(uid, protocol.FailureOf(req.Type, protocol.ErrBadPayload))
	default:
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(uid)).Str("type", string(req.Type)).Msg("command ignored")
	}
}

func decode(req protocol.Request, v any) error {
	if err := req.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

func roomParam(req protocol.Request) (domain.RoomID, error) {
	var p protocol.RoomParams
	if err := decode(req, &p); err != nil {
		return "", err
	}
	if p.RoomID == "" {
		return "", fmt.Errorf("%w: missing roomId", errBadPayload)
	}
	return domain.RoomID(p.RoomID), nil
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrRoomAlreadyExists) || errors.Is(err, domain.ErrAlreadyMember)
}

func handleCreateRoom(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	id, err := roomParam(req)
	if err != nil {
		return err
	}
	room, err := o.CreateRoom(uid, id)
	if isConflict(err) {
		o.respond(uid, protocol.FailureOf(req.Type, err.Error()))
		return nil
	}
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.RoomIDResult{RoomID: room.ID}))
	return nil
}

func handleJoinRoom(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	id, err := roomParam(req)
	if err != nil {
		return err
	}
	room, err := o.JoinRoom(uid, id)
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.JoinResult{
		RoomID:   room.ID,
		Files:    room.FilesSnapshot(),
		Packages: room.PackagesSnapshot(),
		Options:  room.Options.Clone(),
	}))
	return nil
}

func handleLeaveRoom(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	id, err := o.LeaveRoom(uid)
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.RoomIDResult{RoomID: id}))
	return nil
}

func handleUpdateName(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.NameParams
	if err := decode(req, &p); err != nil {
		return err
	}
	id, err := o.UpdateName(uid, domain.UserID(p.TargetUserID), p.Name)
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.UserIDResult{UserID: id}))
	return nil
}

func handleTransferHost(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.HostParams
	if err := decode(req, &p); err != nil {
		return err
	}
	if p.NewHostID == "" {
		return fmt.Errorf("%w: missing newHostId", errBadPayload)
	}
	if err := o.TransferHost(uid, domain.UserID(p.NewHostID)); err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.UserIDResult{UserID: domain.UserID(p.NewHostID)}))
	return nil
}

func handleBanUser(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.TargetParams
	if err := decode(req, &p); err != nil {
		return err
	}
	if err := o.BanUser(uid, domain.UserID(p.TargetUserID)); err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.UserIDResult{UserID: domain.UserID(p.TargetUserID)}))
	return nil
}

func handleUpdatePath(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.PathParams
	if err := decode(req, &p); err != nil {
		return err
	}
	same, err := o.UpdatePath(uid, p.Path)
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.SamePathResult{UsersOnSamePath: same}))
	return nil
}

func handleUpdateCursor(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.CursorParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.UpdateCursor(uid, p.Path, p.Offset)
}

func handleUpdateSelection(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.SelectionParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.UpdateSelection(uid, p.Path, p.Start, p.End)
}

func handleEdit(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.EditParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.Edit(uid, req.Type, p)
}

func handleFollowUser(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.TargetParams
	if err := decode(req, &p); err != nil {
		return err
	}
	target, err := o.Follow(uid, domain.UserID(p.TargetUserID))
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, protocol.FollowResult{FollowedUser: protocol.RefOf(target)}))
	if target.State.Path != "" {
		o.emit(uid, protocol.EventFollowPath, protocol.FollowPathEvent{UserID: target.ID, Path: target.State.Path})
	}
	return nil
}

// unfollow sends its own result when an edge existed.
func handleUnfollowUser(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	o.Unfollow(uid)
	return nil
}

func handleCreateOrUpdateFile(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.FileParams
	if err := decode(req, &p); err != nil {
		return err
	}
	_, err := o.CreateOrUpdateFile(uid, p.Path, p.Content)
	return err
}

func handleRemoveFile(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.PathParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.RemoveFile(uid, p.Path)
}

func handleRenameFile(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.RenameParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.RenameFile(uid, p.From, p.To)
}

func handleAddPackage(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.PackageParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.AddPackage(uid, p.Name, p.Version)
}

func handleRemovePackage(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.PackageParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.RemovePackage(uid, p.Name)
}

func handleUpdateOptions(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	var p protocol.OptionsParams
	if err := decode(req, &p); err != nil {
		return err
	}
	return o.UpdateOptions(uid, p.Section, p.Value)
}

func handleWhoAmI(o *Orchestrator, uid domain.UserID, req protocol.Request) error {
	res, err := o.WhoAmI(uid)
	if err != nil {
		return err
	}
	o.respond(uid, protocol.ResultOf(req.Type, res))
	return nil
}
