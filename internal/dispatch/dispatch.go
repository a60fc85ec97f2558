// Package dispatch runs commands against a single engine Backend.
//
// An Actor owns the Backend for its whole lifetime: the backend is built on
// the actor's goroutine and never leaves it. Producers hold a Handle and
// call Submit, which enqueues the command on a FIFO queue and blocks until
// that command's reply arrives. Commands execute one at a time, in enqueue
// order, so the Backend needs no locking.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bawdo/datashell/internal/command"
	"github.com/bawdo/datashell/internal/engine"
)

// DefaultQueueSize is the number of commands that may wait in the queue
// before Submit blocks.
const DefaultQueueSize = 64

// ErrClosed is returned when submitting to an actor whose queue is closed.
var ErrClosed = errors.New("dispatch: submission queue is closed")

// State is the lifecycle state of an Actor.
type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// workItem pairs a command with its private, single-use reply channel.
type workItem struct {
	id     string
	cmd    command.Command
	caller context.Context // only consulted to detect an abandoned reply
	reply  chan string
	queued time.Time
}

// Actor is the single worker that owns a Backend.
type Actor struct {
	queue     chan workItem
	queueSize int
	logger    *slog.Logger
	exit      func(int)

	mu     sync.RWMutex // guards closed against sends racing close(queue)
	closed bool

	state     atomic.Int32
	draining  atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Option configures an Actor.
type Option func(*Actor)

// WithQueueSize sets how many commands may wait before Submit blocks.
func WithQueueSize(n int) Option {
	return func(a *Actor) {
		if n >= 0 {
			a.queueSize = n
		}
	}
}

// WithLogger sets the actor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Actor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithExit replaces os.Exit as the fail-fast hook used when a Handle finds
// the queue closed.
func WithExit(fn func(int)) Option {
	return func(a *Actor) {
		if fn != nil {
			a.exit = fn
		}
	}
}

// Start launches the actor goroutine and builds the backend on it. It
// returns once the backend exists, or with the constructor's error.
func Start(newBackend func() (engine.Backend, error), opts ...Option) (*Actor, error) {
	a := &Actor{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
		exit:      os.Exit,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan workItem, a.queueSize)

	ready := make(chan error, 1)
	go a.run(newBackend, ready)
	if err := <-ready; err != nil {
		return nil, fmt.Errorf("start backend: %w", err)
	}
	return a, nil
}

// Handle returns a submission handle. Handles are cheap and may be shared
// by any number of goroutines.
func (a *Actor) Handle() *Handle {
	return &Handle{actor: a}
}

// State reports what the actor is doing right now.
func (a *Actor) State() State {
	return State(a.state.Load())
}

// Done is closed once the actor has stopped.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Close stops accepting commands, waits for every queued command to run,
// then closes the backend if it is an io.Closer.
func (a *Actor) Close() error {
	a.closeOnce.Do(func() {
		a.draining.Store(true)
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
		a.logger.Info("dispatch: draining", "queued", len(a.queue))
	})
	<-a.done
	return a.closeErr
}

func (a *Actor) run(newBackend func() (engine.Backend, error), ready chan<- error) {
	defer close(a.done)

	backend, err := newBackend()
	if err != nil {
		a.state.Store(int32(StateStopped))
		ready <- err
		return
	}
	ready <- nil
	a.logger.Info("dispatch: started", "queue_size", a.queueSize)

	// Commands run to completion once dequeued; nothing cancels this context.
	ctx := context.Background()
	for item := range a.queue {
		a.state.Store(int32(StateExecuting))
		a.execute(ctx, backend, item)
		if a.draining.Load() {
			a.state.Store(int32(StateDraining))
		} else {
			a.state.Store(int32(StateIdle))
		}
	}

	if c, ok := backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.closeErr = fmt.Errorf("close backend: %w", err)
		}
	}
	a.state.Store(int32(StateStopped))
	a.logger.Info("dispatch: stopped")
}

// execute runs one command. Engine errors become the reply text; a panic
// closes the reply channel without a value.
func (a *Actor) execute(ctx context.Context, backend engine.Backend, item workItem) {
	start := time.Now()
	log := a.logger.With("id", item.id, "command", item.cmd.Name())
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch: command panicked", "panic", r)
			close(item.reply)
		}
	}()

	log.Debug("dispatch: executing", "waited", start.Sub(item.queued))
	out, err := item.cmd.Execute(ctx, backend)
	if err != nil {
		log.Info("dispatch: command failed", "error", err)
		out = RenderError(err)
	}
	log.Debug("dispatch: finished", "took", time.Since(start))
	a.deliver(log, item, out)
}

// deliver hands out to the waiting producer. The reply channel is buffered,
// so this never blocks; an abandoned reply is only logged.
func (a *Actor) deliver(log *slog.Logger, item workItem, out string) {
	if err := item.caller.Err(); err != nil {
		log.Warn("dispatch: reply abandoned by caller", "error", err)
		return
	}
	select {
	case item.reply <- out:
	default:
		log.Warn("dispatch: reply already delivered")
	}
}

func (a *Actor) enqueue(ctx context.Context, item workItem) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const errorReplyPrefix = "Error: "

// RenderError is the reply text for a command that failed in the engine.
func RenderError(err error) string {
	return fmt.Sprintf("%s%v\n", errorReplyPrefix, err)
}

// IsErrorReply reports whether reply was produced by RenderError.
func IsErrorReply(reply string) bool {
	return strings.HasPrefix(reply, errorReplyPrefix)
}

// Handle is the producer side of an Actor.
type Handle struct {
	actor *Actor
}

// Submit runs cmd and blocks until its reply arrives. The boolean is false
// when no reply could be produced.
func (h *Handle) Submit(cmd command.Command) (string, bool) {
	return h.SubmitContext(context.Background(), cmd)
}

// SubmitContext is Submit with a deadline. When ctx ends first the command
// is abandoned: it still runs if it was queued, but its reply is dropped.
//
// Submitting to a closed actor is a configuration error; the process exits
// with status 1.
func (h *Handle) SubmitContext(ctx context.Context, cmd command.Command) (string, bool) {
	a := h.actor
	item := workItem{
		id:     ulid.Make().String(),
		cmd:    cmd,
		caller: ctx,
		reply:  make(chan string, 1),
		queued: time.Now(),
	}

	if err := a.enqueue(ctx, item); err != nil {
		if errors.Is(err, ErrClosed) {
			a.logger.Error("dispatch: cannot submit", "command", cmd.Name(), "error", err)
			a.exit(1)
		}
		return "", false
	}

	select {
	case out, ok := <-item.reply:
		return out, ok
	case <-ctx.Done():
		return "", false
	case <-a.done:
		// The actor drains before stopping, so a reply may already be buffered.
		select {
		case out, ok := <-item.reply:
			return out, ok
		default:
			return "", false
		}
	}
}
