package directory

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 2 * time.Second

type update struct {
	info   RoomInfo
	remove bool
}

// Publisher forwards room changes to a Directory off the caller's goroutine.
// Announce and Withdraw never block and never lose an update: pending
// changes are coalesced per room, so only the latest one is written.
type Publisher struct {
	dir Directory

	mu      sync.Mutex
	pending map[domain.RoomID]update
	order   []domain.RoomID
	wake    chan struct{}
}

func NewPublisher(dir Directory) *Publisher {
	return &Publisher{
		dir:     dir,
		pending: make(map[domain.RoomID]update),
		wake:    make(chan struct{}, 1),
	}
}

func (p *Publisher) Announce(info RoomInfo) {
	p.enqueue(update{info: info})
}

func (p *Publisher) Withdraw(id domain.RoomID) {
	p.enqueue(update{info: RoomInfo{ID: id}, remove: true})
}

func (p *Publisher) enqueue(u update) {
	p.mu.Lock()
	if _, ok := p.pending[u.info.ID]; !ok {
		p.order = append(p.order, u.info.ID)
	}
	p.pending[u.info.ID] = u
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes pending updates until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *Publisher) flush() {
	p.mu.Lock()
	order, pending := p.order, p.pending
	p.order, p.pending = nil, make(map[domain.RoomID]update)
	p.mu.Unlock()

	for _, id := range order {
		p.apply(pending[id])
	}
}

func (p *Publisher) apply(u update) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	if u.remove {
		err = p.dir.Remove(ctx, u.info.ID)
	} else {
		err = p.dir.Put(ctx, u.info)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "directory").Str("room", string(u.info.ID)).Msg("directory update failed")
	}
}
