package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher runs submitted functions one at a time on a single goroutine.
type Dispatcher struct {
	tasks   chan func()
	stopped chan struct{}
	once    sync.Once
}

func NewDispatcher(queue int) *Dispatcher {
	if queue <= 0 {
		queue = 1024
	}
	return &Dispatcher{
		tasks:   make(chan func(), queue),
		stopped: make(chan struct{}),
	}
}

// Run executes tasks until ctx is done. Tasks still queued are abandoned.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.once.Do(func() { close(d.stopped) })
	for {
		select {
		case fn := <-d.tasks:
			d.exec(fn)
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Dispatcher) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch.dispatcher").Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}

// Do submits fn and waits until it has run.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case d.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-d.stopped:
		return ErrStopped
	}
}

// Post submits fn without waiting for it to run.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case d.tasks <- fn:
		return true
	case <-d.stopped:
		return false
	}
}
