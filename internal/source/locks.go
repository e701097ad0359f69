package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// pathLocks hands out one mutex per checkout path so concurrent
// goroutines never sync the same checkout at once.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) forPath(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	return m
}

// lockCheckout guards a checkout against other gitsource processes with
// a sidecar lock file next to the checkout directory. The sidecar sits
// outside the directory so a fresh clone still finds its target absent.
// Blocks until the lock is acquired or ctx ends.
func lockCheckout(ctx context.Context, dir string) (*flock.Flock, error) {
	fl := flock.New(dir + ".lock")
	locked, err := fl.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", fl.Path())
	}
	return fl, nil
}
