package app

import (
	"sort"

	"github.com/dkeye/Collab/internal/domain"
)

// RoomManager is the Room Registry: the single table of live rooms.
// Like Registry it is confined to the dispatch loop.
type RoomManager struct {
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (m *RoomManager) Get(id domain.RoomID) (*domain.Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

func (m *RoomManager) Exists(id domain.RoomID) bool {
	_, ok := m.rooms[id]
	return ok
}

func (m *RoomManager) Set(r *domain.Room) { m.rooms[r.ID] = r }

func (m *RoomManager) Delete(id domain.RoomID) { delete(m.rooms, id) }

func (m *RoomManager) Len() int { return len(m.rooms) }

// List returns the live rooms ordered by id.
func (m *RoomManager) List() []*domain.Room {
	out := make([]*domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
