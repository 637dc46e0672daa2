package orch

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/directory"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

type recConn struct {
	frames []core.Frame
	full   bool
	closed bool
}

func (c *recConn) TrySend(f core.Frame) error {
	if c.closed {
		return core.ErrClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recConn) Close() { c.closed = true }

type wire struct {
	Type    string          `json:"type"`
	Error   string          `json:"error"`
	Result  json.RawMessage `json:"result"`
	Payload json.RawMessage `json:"payload"`
}

func (c *recConn) messages(t *testing.T) []wire {
	t.Helper()
	out := make([]wire, 0, len(c.frames))
	for _, f := range c.frames {
		var w wire
		if err := json.Unmarshal(f, &w); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, w)
	}
	return out
}

// find returns the last message of the given type.
func (c *recConn) find(t *testing.T, typ string) (wire, bool) {
	t.Helper()
	msgs := c.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return msgs[i], true
		}
	}
	return wire{}, false
}

func (c *recConn) count(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, m := range c.messages(t) {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func (c *recConn) reset() { c.frames = nil }

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

type announcer struct {
	announced []directory.RoomInfo
	withdrawn []domain.RoomID
}

func (a *announcer) Announce(info directory.RoomInfo) { a.announced = append(a.announced, info) }
func (a *announcer) Withdraw(id domain.RoomID)        { a.withdrawn = append(a.withdrawn, id) }

type harness struct {
	*Orchestrator
	t     *testing.T
	conns map[domain.UserID]*recConn
	dir   *announcer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	o := New(domain.DefaultOptions())
	dir := &announcer{}
	o.Directory = dir
	return &harness{Orchestrator: o, t: t, conns: map[domain.UserID]*recConn{}, dir: dir}
}

func (h *harness) connect(id domain.UserID, ip string) *recConn {
	h.t.Helper()
	c := &recConn{}
	h.conns[id] = c
	h.Connect(core.NewMemberSession(domain.NewUser(id, ip), c), nil)
	return c
}

func (h *harness) send(id domain.UserID, kind protocol.Kind, payload any) {
	h.t.Helper()
	req := protocol.Request{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			h.t.Fatal(err)
		}
		req.Payload = raw
	}
	h.Handle(id, req)
}

func (h *harness) join(id domain.UserID, room string) {
	h.t.Helper()
	h.send(id, protocol.JoinRoom, protocol.RoomParams{RoomID: room})
}

func (h *harness) room(id domain.RoomID) *domain.Room {
	h.t.Helper()
	r, ok := h.Rooms.Get(id)
	if !ok {
		h.t.Fatalf("room %s not found", id)
	}
	return r
}

// checkInvariants asserts that every registered room is non-empty, its
// host is a member, every member points back at it and follow edges are mutual.
func (h *harness) checkInvariants() {
	h.t.Helper()
	seen := map[domain.UserID]domain.RoomID{}
	for _, r := range h.Rooms.List() {
		if r.Empty() {
			h.t.Fatalf("room %s registered with no users", r.ID)
		}
		if !r.Has(r.HostID) {
			h.t.Fatalf("room %s host %s is not a member", r.ID, r.HostID)
		}
		for _, id := range r.Users {
			if prev, dup := seen[id]; dup {
				h.t.Fatalf("user %s in rooms %s and %s", id, prev, r.ID)
			}
			seen[id] = r.ID
			if u := h.Registry.User(id); u == nil || u.CurrentRoom() != r.ID {
				h.t.Fatalf("user %s does not point at room %s", id, r.ID)
			}
		}
	}
	for id := range h.conns {
		u := h.Registry.User(id)
		if u == nil {
			continue
		}
		if u.Following != "" {
			t := h.Registry.User(u.Following)
			if t == nil || !containsID(t.Followers, u.ID) {
				h.t.Fatalf("%s follows %s but is not among its followers", u.ID, u.Following)
			}
		}
		for _, f := range u.Followers {
			if fu := h.Registry.User(f); fu == nil || fu.Following != u.ID {
				h.t.Fatalf("%s lists follower %s that does not follow it", u.ID, f)
			}
		}
	}
}

func containsID(ids []domain.UserID, id domain.UserID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func domainID(s string) domain.UserID { return domain.UserID(s) }

func newSession(id domain.UserID, c *recConn) core.MemberSession {
	return core.NewMemberSession(domain.NewUser(id, ""), c)
}
