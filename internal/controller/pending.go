package controller

import (
	"context"
	"sync"
)

// Pending is the eventual outcome of submitted work: the document version
// that includes it, or the reason it was rejected.
type Pending struct {
	done    chan struct{}
	once    sync.Once
	version int64
	err     error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(version int64, err error) *Pending {
	p := newPending()
	p.resolve(version, err)
	return p
}

func (p *Pending) resolve(version int64, err error) {
	p.once.Do(func() {
		p.version = version
		p.err = err
		close(p.done)
	})
}

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the outcome is known or ctx ends.
func (p *Pending) Wait(ctx context.Context) (int64, error) {
	select {
	case <-p.done:
		return p.version, p.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
