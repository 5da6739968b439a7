package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// workflowSlot admits at most one run of a workflow at a time. Each run holds a
// token; only the holder of the current token can release the slot.
type workflowSlot struct {
	mu     sync.Mutex
	token  string
	cancel context.CancelFunc
}

// acquire claims the slot and returns the run token and a context that is
// cancelled by cancel(). ok is false when another run holds the slot.
func (s *workflowSlot) acquire(parent context.Context) (string, context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return "", nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	s.token = uuid.NewString()
	s.cancel = cancel
	return s.token, ctx, true
}

func (s *workflowSlot) release(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || s.token != token {
		return
	}
	s.cancel()
	s.token = ""
	s.cancel = nil
}

func (s *workflowSlot) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// cancelRun stops the current run, if any. The run still releases its own token.
func (s *workflowSlot) cancelRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}
