package core

import "github.com/dkeye/Collab/internal/domain"

// MemberSession binds a user and its transport endpoints.
// This is what the relay fans out to.
type MemberSession interface {
	User() *domain.User
	Signal() SignalConnection
	// Peer is the optional data-channel transport, nil until one opens.
	Peer() SignalConnection
	// Transport prefers the peer connection when attached.
	Transport() SignalConnection
	UpdatePeer(SignalConnection) MemberSession
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
	// Stale sessions had a closed peer transport; their frame went over Signal.
	Stale []MemberSession
}
