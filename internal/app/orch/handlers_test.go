package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/directory"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

func TestEveryCommandHasHandler(t *testing.T) {
	for _, k := range protocol.Kinds {
		_, ok := handlers[k]
		switch {
		case k.Transport() || k == protocol.GenerateRoomID:
			if ok {
				t.Errorf("%s should not be in the handler table", k)
			}
		case !ok:
			t.Errorf("no handler for %s", k)
		}
	}
}

func TestBadPayload(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.Handle("a", protocol.Request{Type: protocol.JoinRoom, Payload: []byte(`{"roomId": 5}`)})
	h.Handle("a", protocol.Request{Type: protocol.CreateRoom, Payload: []byte(`{}`)})

	msgs := ca.messages(t)
	if len(msgs) != 2 || msgs[0].Error != protocol.ErrBadPayload || msgs[1].Type != "result:createRoom" {
		t.Fatalf("unexpected responses %+v", msgs)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.Handle("a", protocol.Request{Type: "dance"})
	if len(ca.frames) != 0 {
		t.Fatal("unknown commands produce no frames")
	}
}

func TestGenerateRoomIDInline(t *testing.T) {
	h := newHarness(t)
	ca := h.connect("a", "")
	h.join("a", "ROOM01")
	draws := []domain.RoomID{"ROOM01", "FRESH1"}
	h.IDs.Draw = func() domain.RoomID {
		id := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return id
	}

	if err := h.Submit(context.Background(), "a", protocol.Request{Type: protocol.GenerateRoomID}); err != nil {
		t.Fatal(err)
	}
	res, ok := ca.find(t, "result:generateRoomId")
	if !ok || string(res.Result) != `{"roomId":"FRESH1"}` {
		t.Fatalf("expected a fresh id, got %+v", res)
	}

	ca.reset()
	h.Handle("a", protocol.Request{Type: protocol.GenerateRoomID})
	if len(ca.frames) != 0 {
		t.Error("id generation only goes through Submit")
	}
}

func TestSlowMemberIsKicked(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	ctx, cancel := context.WithCancel(context.Background())
	slow := &recConn{}
	h.conns["b"] = slow
	h.Connect(newSession("b", slow), cancel)
	h.join("a", "ROOM01")
	h.join("b", "ROOM01")

	slow.full = true
	h.send("a", protocol.UpdateCursor, protocol.CursorParams{Path: "/a", Offset: 1})
	if ctx.Err() == nil {
		t.Fatal("expected the slow member's connection to be canceled")
	}

	h.Policy = app.LenientPolicy{}
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	h.Registry.Bind(newSession("c", &recConn{full: true}), cancel2)
	h.join("c", "ROOM01")
	if ctx2.Err() != nil {
		t.Fatal("lenient policy must not kick")
	}
}

func TestClosedPeerFallsBackToSignal(t *testing.T) {
	h := newHarness(t)
	h.connect("a", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws := &recConn{}
	h.conns["b"] = ws
	h.Connect(newSession("b", ws), cancel)
	h.join("a", "ROOM01")
	h.join("b", "ROOM01")

	peer := &recConn{}
	if !h.AttachPeer("b", peer) {
		t.Fatal("attach failed")
	}
	peer.closed = true
	ws.reset()

	h.send("a", protocol.UpdateCursor, protocol.CursorParams{Path: "/a", Offset: 1})
	if ctx.Err() != nil {
		t.Fatal("a closed data channel must not kick a member whose socket is healthy")
	}
	if ws.count(t, protocol.EventCursor) != 1 {
		t.Fatal("the event should arrive over the signal connection")
	}
	sess, _ := h.Registry.Get("b")
	if sess.Peer() != nil {
		t.Error("the closed peer should be detached")
	}
	if !h.room("ROOM01").Has("b") {
		t.Error("b should still be a member")
	}
}

func TestSubmitRunsOnLoop(t *testing.T) {
	h := newHarness(t)
	h.Loop = NewDispatcher(0)
	mem := directory.NewMemory()
	h.Lookup = mem
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Loop.Run(ctx)

	ca := &recConn{}
	if err := h.Run(ctx, func() { h.Connect(newSession("a", ca), nil) }); err != nil {
		t.Fatal(err)
	}

	draws := []domain.RoomID{"REMOTE", "LOCAL1"}
	h.IDs.Draw = func() domain.RoomID {
		id := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return id
	}
	_ = mem.Put(ctx, directory.RoomInfo{ID: "REMOTE", MemberCount: 1})

	if err := h.Submit(ctx, "a", protocol.Request{Type: protocol.GenerateRoomID}); err != nil {
		t.Fatal(err)
	}
	var frames int
	_ = h.Run(ctx, func() { frames = len(ca.frames) })
	if frames != 1 {
		t.Fatalf("expected one response, got %d", frames)
	}
	res, _ := ca.find(t, "result:generateRoomId")
	if string(res.Result) != `{"roomId":"LOCAL1"}` {
		t.Fatalf("ids in the directory count as collisions, got %s", res.Result)
	}
}

func TestDispatcherSerializes(t *testing.T) {
	d := NewDispatcher(4)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(stopped)
	}()

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), func() { counter++ })
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}

	if err := d.Do(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("a panicking task should not stop the loop: %v", err)
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	if err := d.Do(context.Background(), func() {}); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if d.Post(func() {}) {
		t.Error("post after stop should fail")
	}
}
