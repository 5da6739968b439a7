package backendsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Listener is a running simulated backend.
type Listener struct {
	server   *http.Server
	listener net.Listener
	done     chan error
}

// Listen serves a new simulated backend on addr. Use "127.0.0.1:0" for a free port.
func Listen(addr string, opts Options) (*Listener, error) {
	sim := New(opts)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &Listener{
		server: &http.Server{
			Handler:           sim.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		done:     make(chan error, 1),
	}
	go func() {
		err := l.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			sim.opts.Log.Error(fmt.Sprintf("simulated backend stopped: %v", err))
		}
		l.done <- err
		close(l.done)
	}()
	sim.opts.Log.Info(fmt.Sprintf("simulated backend listening on %s", l.URL()))
	return l, nil
}

// URL is the base URL clients should use.
func (l *Listener) URL() string {
	return "http://" + l.listener.Addr().String()
}

// Wait blocks until the server stops.
func (l *Listener) Wait() error {
	return <-l.done
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

func (l *Listener) Close() error {
	return l.server.Close()
}
