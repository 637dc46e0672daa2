package orch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

func TestCreateRoomTwiceConflicts(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	cb := h.connect("b", "")

	h.send("a", protocol.CreateRoom, protocol.RoomParams{RoomID: "ABC123"})
	h.send("b", protocol.CreateRoom, protocol.RoomParams{RoomID: "ABC123"})

	res, ok := cb.find(t, "result:createRoom")
	if !ok || res.Error != "RoomAlreadyExists" || !isNull(res.Result) {
		t.Fatalf("expected RoomAlreadyExists, got %+v", res)
	}
	if users := h.room("ABC123").Users; len(users) != 1 || users[0] != "a" {
		t.Fatalf("original member list modified: %v", users)
	}
	h.checkInvariants()
}

func TestCreateRoomWhileMember(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.send("a", protocol.CreateRoom, protocol.RoomParams{RoomID: "ABC123"})
	ca.reset()

	_, err := h.CreateRoom("a", "ABC123")
	if !errors.Is(err, domain.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	h.send("a", protocol.CreateRoom, protocol.RoomParams{RoomID: "ABC123"})
	if res, _ := ca.find(t, "result:createRoom"); res.Error != "AlreadyMember" {
		t.Fatalf("expected AlreadyMember error, got %+v", res)
	}
}

func TestCreateRoomResponds(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.send("a", protocol.CreateRoom, protocol.RoomParams{RoomID: "NEW001"})

	res, ok := ca.find(t, "result:createRoom")
	if !ok || res.Error != "" {
		t.Fatalf("unexpected response %+v", res)
	}
	var got protocol.RoomIDResult
	if err := json.Unmarshal(res.Result, &got); err != nil || got.RoomID != "NEW001" {
		t.Fatalf("unexpected result %s", res.Result)
	}
	if h.room("NEW001").HostID != "a" {
		t.Error("creator should be host")
	}
	if _, ok := ca.find(t, protocol.EventRoomUpdate); !ok {
		t.Error("expected room state broadcast on create")
	}
	if len(h.dir.announced) == 0 || h.dir.announced[len(h.dir.announced)-1].ID != "NEW001" {
		t.Error("expected the new room to be announced")
	}
}

func TestJoinCreatesAndNotifies(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	cb := h.connect("b", "")

	h.join("a", "ROOM01")
	ca.reset()
	h.join("b", "ROOM01")

	res, ok := cb.find(t, "result:joinRoom")
	if !ok {
		t.Fatal("expected join result")
	}
	var jr protocol.JoinResult
	if err := json.Unmarshal(res.Result, &jr); err != nil {
		t.Fatal(err)
	}
	if jr.RoomID != "ROOM01" || jr.Files == nil || jr.Packages == nil {
		t.Fatalf("unexpected join result %+v", jr)
	}
	if _, ok := jr.Options["bundler"]; !ok {
		t.Errorf("expected default option sections, got %v", jr.Options)
	}

	ev, ok := ca.find(t, protocol.EventNewUser)
	if !ok {
		t.Fatal("existing member should be told about the new user")
	}
	var nu protocol.NewUserEvent
	if err := json.Unmarshal(ev.Payload, &nu); err != nil || nu.NewUser.ID != "b" {
		t.Fatalf("unexpected newUser payload %s", ev.Payload)
	}
	if cb.count(t, protocol.EventNewUser) != 0 {
		t.Error("joiner should not receive its own newUser event")
	}

	st, _ := ca.find(t, protocol.EventRoomUpdate)
	var state protocol.RoomState
	if err := json.Unmarshal(st.Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.HostID != "a" || len(state.Users) != 2 || state.Users[1].ID != "b" {
		t.Fatalf("unexpected room state %+v", state)
	}
	h.checkInvariants()
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.connect("b", "")
	h.join("a", "ROOM01")
	h.join("b", "ROOM01")
	h.join("a", "ROOM02")

	if h.room("ROOM01").Has("a") {
		t.Fatal("user should have left the previous room")
	}
	if h.room("ROOM01").HostID != "b" {
		t.Error("host should pass to the remaining member")
	}
	if u := h.Registry.User("a"); u.CurrentRoom() != "ROOM02" {
		t.Errorf("expected current room ROOM02, got %q", u.CurrentRoom())
	}
	msgs := ca.messages(t)
	sawNull := false
	for _, m := range msgs {
		if m.Type == protocol.EventRoomUpdate && isNull(m.Payload) {
			sawNull = true
		}
	}
	if !sawNull {
		t.Error("expected a null room:update when leaving the previous room")
	}
	h.checkInvariants()
}

func TestRejoinSameRoomKeepsRoom(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.join("a", "SOLO01")
	ca.reset()
	h.join("a", "SOLO01")

	r := h.room("SOLO01")
	if len(r.Users) != 1 || r.Users[0] != "a" {
		t.Fatalf("unexpected members %v", r.Users)
	}
	if _, ok := ca.find(t, "result:joinRoom"); !ok {
		t.Error("expected a join result on rejoin")
	}
	if ev, ok := ca.find(t, protocol.EventRoomUpdate); !ok || isNull(ev.Payload) {
		t.Error("expected the room state to be resent")
	}
	h.checkInvariants()
}

func TestHostLeavesNextJoinedBecomesHost(t *testing.T) {
	h := newHarness(t)
	for _, id := range []domain.UserID{"a", "b", "c"} {
		h.connect(id, "")
		h.join(id, "ROOM01")
	}

	h.send("a", protocol.LeaveRoom, nil)

	r := h.room("ROOM01")
	if r.HostID != "b" {
		t.Fatalf("expected host b, got %s", r.HostID)
	}
	if len(r.Users) != 2 || r.Users[0] != "b" || r.Users[1] != "c" {
		t.Fatalf("unexpected members %v", r.Users)
	}
	h.checkInvariants()
}

func TestLastLeaveDisposesRoom(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.join("a", "ROOM01")
	h.send("a", protocol.LeaveRoom, nil)

	if _, ok := h.Rooms.Get("ROOM01"); ok {
		t.Fatal("room should be gone once its last member left")
	}
	res, ok := ca.find(t, "result:leaveRoom")
	if !ok {
		t.Fatal("expected leave result")
	}
	var got protocol.RoomIDResult
	if err := json.Unmarshal(res.Result, &got); err != nil || got.RoomID != "ROOM01" {
		t.Fatalf("unexpected leave result %s", res.Result)
	}
	if ev, _ := ca.find(t, protocol.EventRoomUpdate); !isNull(ev.Payload) {
		t.Error("expected a final null room:update")
	}
	if len(h.dir.withdrawn) != 1 || h.dir.withdrawn[0] != "ROOM01" {
		t.Errorf("expected ROOM01 withdrawn, got %v", h.dir.withdrawn)
	}

	// the id is reusable with a fresh room
	h.join("a", "ROOM01")
	if r := h.room("ROOM01"); len(r.Files) != 0 || r.HostID != "a" {
		t.Error("expected a fresh room instance")
	}
}

func TestLeaveOutsideRoomIsSilent(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.send("a", protocol.LeaveRoom, nil)
	if len(ca.frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(ca.frames))
	}
}

func TestDisconnectRunsLeaveCascade(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	cb := h.connect("b", "")
	h.join("a", "ROOM01")
	h.join("b", "ROOM01")
	h.send("b", protocol.FollowUser, protocol.TargetParams{TargetUserID: "a"})
	cb.reset()

	h.Disconnect("a")

	r := h.room("ROOM01")
	if r.Has("a") || r.HostID != "b" {
		t.Fatalf("unexpected room after disconnect: users=%v host=%s", r.Users, r.HostID)
	}
	if h.Registry.User("b").Following != "" {
		t.Fatal("follower should be detached")
	}
	if _, ok := cb.find(t, "result:unfollowUser"); !ok {
		t.Error("follower should be told it no longer follows")
	}
	if h.Registry.User("a") != nil {
		t.Error("disconnected user should be unbound")
	}
	h.Disconnect("a")
	h.checkInvariants()
}

func TestTransferHost(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	cb := h.connect("b", "")
	h.join("a", "ROOM01")
	h.join("b", "ROOM01")

	h.send("b", protocol.TransferHost, protocol.HostParams{NewHostID: "b"})
	if h.room("ROOM01").HostID != "a" {
		t.Fatal("non-host must not transfer host")
	}
	cb.reset()

	h.send("a", protocol.TransferHost, protocol.HostParams{NewHostID: "b"})
	if h.room("ROOM01").HostID != "b" {
		t.Fatal("expected host b")
	}
	ev, ok := cb.find(t, protocol.EventRoomUpdate)
	if !ok {
		t.Fatal("expected a room:update after transfer")
	}
	var st protocol.RoomState
	if err := json.Unmarshal(ev.Payload, &st); err != nil || st.HostID != "b" {
		t.Fatalf("unexpected state %s", ev.Payload)
	}
}

func TestTransferHostToNonMember(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	h.join("a", "ROOM01")

	if err := h.TransferHost("a", "ghost"); err != nil {
		t.Fatal(err)
	}
	if h.room("ROOM01").HostID != "ghost" {
		t.Error("transfer is applied without a membership check")
	}
}

func TestBanUser(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "10.0.0.1")
	cb := h.connect("b", "10.0.0.2")
	h.join("a", "ROOM01")
	h.join("b", "ROOM01")

	h.send("b", protocol.BanUser, protocol.TargetParams{TargetUserID: "a"})
	if !h.room("ROOM01").Has("a") {
		t.Fatal("non-host ban must be ignored")
	}

	h.send("a", protocol.BanUser, protocol.TargetParams{TargetUserID: "b"})
	r := h.room("ROOM01")
	if r.Has("b") || !r.IsBanned("10.0.0.2") {
		t.Fatalf("expected b removed and banned, users=%v bans=%v", r.Users, r.BannedIPs)
	}
	if _, ok := cb.find(t, protocol.EventBanned); !ok {
		t.Error("banned user should be notified")
	}

	_, err := h.JoinRoom("b", "ROOM01")
	if !errors.Is(err, ErrBanned) || r.Has("b") {
		t.Fatalf("banned address must not rejoin, err=%v", err)
	}

	h.connect("c", "10.0.0.2")
	h.join("c", "ROOM01")
	if r.Has("c") {
		t.Error("another connection from the banned address must not join")
	}
	h.checkInvariants()
}

func TestRoomInvariantsAcrossSequence(t *testing.T) {
	h := newHarness(t)
	ids := []domain.UserID{"a", "b", "c", "d"}
	for _, id := range ids {
		h.connect(id, "")
	}
	steps := []func(){
		func() { h.join("a", "R1") },
		func() { h.join("b", "R1") },
		func() { h.join("c", "R2") },
		func() { h.send("b", protocol.FollowUser, protocol.TargetParams{TargetUserID: "a"}) },
		func() { h.join("d", "R1") },
		func() { h.send("d", protocol.FollowUser, protocol.TargetParams{TargetUserID: "b"}) },
		func() { h.join("a", "R2") },
		func() { h.send("c", protocol.FollowUser, protocol.TargetParams{TargetUserID: "a"}) },
		func() { h.send("b", protocol.LeaveRoom, nil) },
		func() { h.Disconnect("c") },
		func() { h.send("d", protocol.LeaveRoom, nil) },
		func() { h.send("a", protocol.LeaveRoom, nil) },
	}
	for _, step := range steps {
		step()
		h.checkInvariants()
	}
	if h.Rooms.Len() != 0 {
		t.Fatalf("expected no rooms left, got %d", h.Rooms.Len())
	}
}

func TestWithdrawAllOnShutdown(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	h.connect("b", "")
	h.join("a", "ROOM02")
	h.join("b", "ROOM01")
	h.dir.withdrawn = nil

	if n := h.WithdrawAll(); n != 2 {
		t.Fatalf("expected two rooms withdrawn, got %d", n)
	}
	if len(h.dir.withdrawn) != 2 || h.dir.withdrawn[0] != "ROOM01" || h.dir.withdrawn[1] != "ROOM02" {
		t.Errorf("unexpected withdrawals %v", h.dir.withdrawn)
	}
}
