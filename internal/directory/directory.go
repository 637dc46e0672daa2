// Package directory keeps a listing of live rooms that other instances
// and the REST surface can read without entering the dispatch loop.
package directory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/Collab/internal/domain"
)

var ErrNotFound = errors.New("room not found")

// RoomInfo is the public summary of a room.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	HostID      domain.UserID `json:"hostId"`
	MemberCount int           `json:"memberCount"`
}

func InfoOf(r *domain.Room) RoomInfo {
	return RoomInfo{ID: r.ID, HostID: r.HostID, MemberCount: len(r.Users)}
}

type Directory interface {
	Put(ctx context.Context, info RoomInfo) error
	Remove(ctx context.Context, id domain.RoomID) error
	Get(ctx context.Context, id domain.RoomID) (RoomInfo, error)
	Exists(ctx context.Context, id domain.RoomID) (bool, error)
	List(ctx context.Context) ([]RoomInfo, error)
}

// Memory is a process-local Directory.
type Memory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]RoomInfo
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[domain.RoomID]RoomInfo)}
}

func (m *Memory) Put(_ context.Context, info RoomInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[info.ID] = info
	return nil
}

func (m *Memory) Remove(_ context.Context, id domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *Memory) Get(_ context.Context, id domain.RoomID) (RoomInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.rooms[id]
	if !ok {
		return RoomInfo{}, ErrNotFound
	}
	return info, nil
}

func (m *Memory) Exists(_ context.Context, id domain.RoomID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[id]
	return ok, nil
}

func (m *Memory) List(_ context.Context) ([]RoomInfo, error) {
	m.mu.RLock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for _, info := range m.rooms {
		out = append(out, info)
	}
	m.mu.RUnlock()
	sortInfos(out)
	return out, nil
}

func sortInfos(infos []RoomInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}
