package core

import "github.com/dkeye/Collab/internal/domain"

// memberSession implements MemberSession by pairing a user with its transports.
type memberSession struct {
	user   *domain.User
	signal SignalConnection
	peer   SignalConnection
}

func NewMemberSession(user *domain.User, signal SignalConnection) MemberSession {
	return &memberSession{user: user, signal: signal}
}

func (m *memberSession) User() *domain.User       { return m.user }
func (m *memberSession) Signal() SignalConnection { return m.signal }
func (m *memberSession) Peer() SignalConnection   { return m.peer }

func (m *memberSession) Transport() SignalConnection {
	if m.peer != nil {
		return m.peer
	}
	return m.signal
}

func (m *memberSession) UpdatePeer(p SignalConnection) MemberSession {
	m.peer = p
	return m
}
