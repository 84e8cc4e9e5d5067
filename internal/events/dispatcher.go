package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/metrics"
)

// ErrDispatcherClosed is returned by Run when called twice.
var ErrDispatcherClosed = errors.New("dispatcher already ran")

// Sink receives delivered events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Dispatcher is the asynchronous Publisher. Publish enqueues without
// blocking; a full queue drops the event and counts it. Run drains the
// queue into every sink, retrying each sink independently.
type Dispatcher struct {
	queue chan Event
	sinks []Sink
	opts  DispatcherOptions
	log   *logger.Logger

	once sync.Once
}

// NewDispatcher creates a Dispatcher fanning out to sinks.
func NewDispatcher(opts DispatcherOptions, log *logger.Logger, sinks ...Sink) *Dispatcher {
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Dispatcher{
		queue: make(chan Event, opts.BufferSize),
		sinks: sinks,
		opts:  opts,
		log:   log.Component("events"),
	}
}

// Publish enqueues events for delivery.
func (d *Dispatcher) Publish(events ...Event) {
	for _, e := range events {
		select {
		case d.queue <- e:
			metrics.RecordEventPublished(string(e.Type))
		default:
			metrics.RecordEventDropped()
			d.log.Warn("Event queue full, dropping event", logger.Fields{
				"event_id":   e.ID.String(),
				"event_type": string(e.Type),
			})
		}
	}
}

// Run delivers queued events until ctx is cancelled, then flushes whatever
// is still queued using a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	ran := false
	d.once.Do(func() { ran = true })
	if !ran {
		return ErrDispatcherClosed
	}

	for {
		select {
		case e := <-d.queue:
			d.dispatch(ctx, e)
		case <-ctx.Done():
			d.flush()
			return nil
		}
	}
}

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-d.queue:
			d.dispatch(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, e Event) {
	for _, sink := range d.sinks {
		d.deliver(ctx, sink, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, e Event) {
	var err error
	attempt := 1
	for ; ; attempt++ {
		err = sink.Deliver(ctx, e)
		metrics.RecordEventDelivery(sink.Name(), err)
		if err == nil {
			return
		}
		if attempt == d.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(d.opts.RetryDelay * time.Duration(attempt)):
			continue
		case <-ctx.Done():
		}
		break
	}
	d.log.Error("Event delivery failed", err, logger.Fields{
		"sink":       sink.Name(),
		"event_id":   e.ID.String(),
		"event_type": string(e.Type),
		"attempts":   attempt,
	})
}
