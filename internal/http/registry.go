package http

import (
	"errors"
	"sync"

	"studiocharts/internal/animate"
)

var errTooManyStreams = errors.New("too many animation streams")

// runRegistry tracks the animator of every open stream so a reload or a
// shutdown can stop them all.
type runRegistry struct {
	mu   sync.Mutex
	next uint64
	max  int
	runs map[uint64]*animate.Animator
}

func newRunRegistry(max int) *runRegistry {
	return &runRegistry{max: max, runs: make(map[uint64]*animate.Animator)}
}

// add registers a and returns the function removing it again.
func (r *runRegistry) add(a *animate.Animator) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.runs) >= r.max {
		return nil, errTooManyStreams
	}
	r.next++
	id := r.next
	r.runs[id] = a

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.runs, id)
	}, nil
}

// CancelAll cancels every registered animator and returns how many were
// running.
func (r *runRegistry) CancelAll() int {
	r.mu.Lock()
	animators := make([]*animate.Animator, 0, len(r.runs))
	for _, a := range r.runs {
		animators = append(animators, a)
	}
	r.mu.Unlock()

	n := 0
	for _, a := range animators {
		if a.State() == animate.Running {
			n++
		}
		a.Cancel()
	}
	return n
}

func (r *runRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
