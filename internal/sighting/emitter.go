package sighting

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Sink consumes sighting events (stdout, file, webhook).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// EmitterConfig controls queue and worker sizing. Zero values pick the
// defaults below.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

const (
	defaultQueueSize       = 1000
	defaultShutdownTimeout = 2 * time.Second
	deliveryTimeout        = 5 * time.Second
)

// Emitter buffers sighting events and fans them out to sinks from background
// workers. Emit never blocks: when the queue is full the event is dropped
// and counted.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	shutdownTimeout time.Duration

	enqueued atomic.Uint64
	dropped  atomic.Uint64

	mu        sync.RWMutex // guards closed vs. concurrent Emit sends
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEmitter starts the delivery workers.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	em := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	em.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go em.run()
	}
	return em
}

// Emit enqueues the event for asynchronous delivery. Drops (queue full or
// emitter closed) are silent apart from the counter; losing a sighting event
// must never fail the upload that produced it.
func (e *Emitter) Emit(ctx context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}

	select {
	case e.queue <- ev:
		e.enqueued.Add(1)
	default:
		e.dropped.Add(1)
	}
}

// Enqueued and Dropped expose delivery counters for tests and diagnostics.
func (e *Emitter) Enqueued() uint64 { return e.enqueued.Load() }
func (e *Emitter) Dropped() uint64  { return e.dropped.Load() }

// Close stops accepting events, gives the workers until the shutdown timeout
// to drain the queue, then closes each sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()

		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
		defer cancel()

		drained := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			log.Printf("sighting: shutdown timeout, %d event(s) abandoned", len(e.queue))
		}

		for _, s := range e.sinks {
			if err := s.Close(ctx); err != nil {
				log.Printf("sighting: closing sink %s: %v", s.Name(), err)
			}
		}
	})
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for ev := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		for _, s := range e.sinks {
			if err := s.Deliver(ctx, ev); err != nil {
				log.Printf("sighting: sink %s failed: %v", s.Name(), err)
			}
		}
		cancel()
	}
}
