package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource produces 2x1 BGR frames until failAfter reads, then errors.
type fakeSource struct {
	mu        sync.Mutex
	reads     int
	failAfter int
	emptyAt   map[int]bool
	delay     time.Duration
	closed    atomic.Bool
}

func (s *fakeSource) Read() (frame.Frame, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.failAfter > 0 && s.reads > s.failAfter {
		return frame.Frame{}, errors.New("device unplugged")
	}
	if s.emptyAt[s.reads] {
		return frame.Frame{}, frame.ErrEmpty
	}
	v := byte(s.reads)
	return frame.Frame{Width: 2, Height: 1, Format: frame.FormatBGR, Pix: []byte{v, 0, 0, v, 0, 0}}, nil
}

func (s *fakeSource) Properties() Properties {
	return Properties{Width: 2, Height: 1, FPS: 30}
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeSink struct {
	writes atomic.Int64
	fail   bool
	closed atomic.Bool
}

func (s *fakeSink) Write(f frame.Frame) error {
	s.writes.Add(1)
	if f.Format != frame.FormatBGR {
		return errors.New("sink expects native frames")
	}
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.closed.Store(true)
	return nil
}

func TestLoopStopReleasesResources(t *testing.T) {
	src := &fakeSource{delay: time.Millisecond}
	sink := &fakeSink{}
	hub := latest.NewHub[frame.Frame]()
	sub := hub.Subscribe("test")

	loop := New(src, sink, hub, Options{}, zerolog.Nop())
	loop.Start(context.Background())

	select {
	case <-sub.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
	f, ok := sub.TryRecv()
	require.True(t, ok)
	assert.Equal(t, frame.FormatRGBA, f.Format)
	assert.Len(t, f.Pix, 8)

	loop.Stop()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit within one read interval")
	}
	require.NoError(t, loop.Wait())
	assert.True(t, src.closed.Load(), "camera released before join returns")
	assert.True(t, sink.closed.Load(), "sink released before join returns")
}

func TestLoopReadErrorIsFatal(t *testing.T) {
	src := &fakeSource{failAfter: 3}
	hub := latest.NewHub[frame.Frame]()

	loop := New(src, nil, hub, Options{}, zerolog.Nop())
	loop.Start(context.Background())

	err := loop.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.Equal(t, uint64(3), loop.Stats().Published)
	assert.True(t, src.closed.Load())
}

func TestLoopSkipsEmptyFrames(t *testing.T) {
	src := &fakeSource{failAfter: 4, emptyAt: map[int]bool{2: true}}
	hub := latest.NewHub[frame.Frame]()

	loop := New(src, nil, hub, Options{}, zerolog.Nop())
	loop.Start(context.Background())
	require.Error(t, loop.Wait())

	st := loop.Stats()
	assert.Equal(t, uint64(3), st.Published)
	assert.Equal(t, uint64(1), st.Skipped)
}

func TestLoopSinkFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{failAfter: 5}
	sink := &fakeSink{fail: true}
	hub := latest.NewHub[frame.Frame]()

	loop := New(src, sink, hub, Options{}, zerolog.Nop())
	loop.Start(context.Background())
	err := loop.Wait()

	require.Error(t, err, "only the read error ends the loop")
	assert.Equal(t, uint64(5), loop.Stats().Published)
	assert.Equal(t, uint64(5), loop.Stats().SinkErrors)
	assert.Equal(t, int64(5), sink.writes.Load())
}

func TestLoopFramesAreSequenced(t *testing.T) {
	src := &fakeSource{failAfter: 50}
	hub := latest.NewHub[frame.Frame]()
	sub := hub.Subscribe("ordered")

	loop := New(src, nil, hub, Options{}, zerolog.Nop())
	loop.Start(context.Background())

	var last uint64
	for {
		select {
		case <-sub.Ready():
			if f, ok := sub.TryRecv(); ok {
				require.Greater(t, f.Seq, last)
				last = f.Seq
			}
			continue
		case <-loop.Done():
		}
		break
	}
	if f, ok := sub.TryRecv(); ok {
		require.Greater(t, f.Seq, last)
	}
	require.Error(t, loop.Wait())
}

func TestLoopThrottleObservesStop(t *testing.T) {
	src := &fakeSource{}
	hub := latest.NewHub[frame.Frame]()

	loop := New(src, nil, hub, Options{Throttle: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("throttle sleep ignored cancellation")
	}
	assert.NoError(t, loop.Wait())
}
