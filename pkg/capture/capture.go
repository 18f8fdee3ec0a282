// Package capture runs the camera read loop: it owns the frame source,
// converts every frame to the display format, publishes it latest-wins and
// forwards the raw frame to an optional archive sink.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Properties describes what the device reports when it is opened.
type Properties struct {
	Width  int
	Height int
	FPS    float64
}

// Source is a blocking frame producer, owned by exactly one Loop.
type Source interface {
	Read() (frame.Frame, error)
	Properties() Properties
	Close() error
}

// Sink archives raw frames. Writes are best-effort.
type Sink interface {
	Write(f frame.Frame) error
	Close() error
}

// Publisher receives converted frames. It must never block.
type Publisher interface {
	Publish(f frame.Frame)
}

// Options tunes the loop.
type Options struct {
	// Throttle is slept after each frame. Zero disables it.
	Throttle time.Duration
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Read       uint64
	Published  uint64
	Skipped    uint64
	SinkErrors uint64
}

// Loop is the capture goroutine and its join point.
type Loop struct {
	src  Source
	sink Sink
	pub  Publisher
	opts Options
	log  zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error

	read       atomic.Uint64
	published  atomic.Uint64
	skipped    atomic.Uint64
	sinkErrors atomic.Uint64
}

// New prepares a loop. sink may be nil.
func New(src Source, sink Sink, pub Publisher, opts Options, log zerolog.Logger) *Loop {
	return &Loop{
		src:  src,
		sink: sink,
		pub:  pub,
		opts: opts,
		log:  log.With().Str("component", "capture").Logger(),
		done: make(chan struct{}),
	}
}

// Start spawns the capture goroutine. It may be called once.
func (l *Loop) Start(ctx context.Context) {
	l.once.Do(func() {
		ctx, l.cancel = context.WithCancel(ctx)
		go l.run(ctx)
	})
}

// Stop asks the loop to exit after its current frame. It does not wait.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
}

// Done is closed once the loop has exited and released its source and sink.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the loop exits and returns the fatal error that ended
// it, or nil after a requested stop.
func (l *Loop) Wait() error {
	<-l.done
	return l.err
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Read:       l.read.Load(),
		Published:  l.published.Load(),
		Skipped:    l.skipped.Load(),
		SinkErrors: l.sinkErrors.Load(),
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer l.release()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			l.log.Debug().Msg("stop requested")
			return
		default:
		}

		raw, err := l.src.Read()
		if err != nil {
			if errors.Is(err, frame.ErrEmpty) {
				l.skipped.Add(1)
				continue
			}
			l.err = errors.Wrap(err, "camera read failed")
			l.log.Error().Err(err).Msg("camera read failed, capture stopped")
			return
		}
		l.read.Add(1)

		seq++
		raw.Seq = seq
		if raw.Timestamp.IsZero() {
			raw.Timestamp = time.Now()
		}

		rgba, err := frame.ToRGBA(raw)
		if err != nil {
			l.skipped.Add(1)
			l.log.Warn().Err(err).Uint64("seq", seq).Msg("dropping unconvertible frame")
			continue
		}
		l.pub.Publish(rgba)
		l.published.Add(1)

		if l.sink != nil && !raw.Empty() {
			if err := l.sink.Write(raw); err != nil {
				l.sinkErrors.Add(1)
				l.log.Warn().Err(err).Uint64("seq", seq).Msg("video sink write failed")
			}
		}

		if l.opts.Throttle > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.opts.Throttle):
			}
		}
	}
}

func (l *Loop) release() {
	if l.sink != nil {
		if err := l.sink.Close(); err != nil {
			l.log.Warn().Err(err).Msg("closing video sink")
		}
	}
	if err := l.src.Close(); err != nil {
		l.log.Warn().Err(err).Msg("closing camera")
	}
}
