package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audiotranslator/internal/domain"
)

// DefaultInterval is the delay between status requests.
const DefaultInterval = time.Second

var (
	// ErrStopped is returned when the caller stops watching the job.
	ErrStopped = errors.New("stopped watching job")
	// ErrDeadline is returned when the job did not finish before the deadline.
	ErrDeadline = errors.New("job did not finish before the polling deadline")
)

// JobError is a terminal error state reported by the backend.
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return "job failed"
	}
	return e.Message
}

// TransportError wraps a failed status request. Polling does not resume after it.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("status request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FetchFunc queries a status endpoint once.
type FetchFunc func(ctx context.Context) (domain.JobStatus, error)

// ObserveFunc receives every non-terminal status.
type ObserveFunc func(status domain.JobStatus)

// Driver repeatedly fetches a job status until it reaches a terminal state.
type Driver struct {
	Interval time.Duration
	// Deadline bounds the whole run; zero means no deadline.
	Deadline time.Duration
}

func New(interval time.Duration, deadline time.Duration) Driver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if deadline < 0 {
		deadline = 0
	}
	return Driver{Interval: interval, Deadline: deadline}
}

// Run polls until completed, error, transport failure, cancellation or deadline.
// The first fetch happens one interval after Run is called.
func (d Driver) Run(ctx context.Context, fetch FetchFunc, observe ObserveFunc) (domain.JobStatus, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var deadline <-chan time.Time
	if d.Deadline > 0 {
		timer := time.NewTimer(d.Deadline)
		defer timer.Stop()
		deadline = timer.C
	}

	// The backend flips a job to processing after the submit call returns, so an
	// immediate fetch can still see the previous job's terminal status.
	ticker := time.NewTimer(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.JobStatus{}, ErrStopped
		case <-deadline:
			return domain.JobStatus{}, ErrDeadline
		case <-ticker.C:
		}

		status, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.JobStatus{}, ErrStopped
			}
			return domain.JobStatus{}, &TransportError{Err: err}
		}

		switch status.State {
		case domain.JobCompleted:
			return status, nil
		case domain.JobError:
			return status, &JobError{Message: status.Error}
		}

		if observe != nil {
			observe(status)
		}
		ticker.Reset(interval)
	}
}
