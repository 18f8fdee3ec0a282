package calib

import (
	"image"
	"testing"
	"time"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerHarness struct {
	t       *testing.T
	frames  *latest.Hub[frame.Frame]
	variant *fakeVariant
	solver  *fakeSolver
	ctrl    *Controller
	status  *latest.Slot[Status]
	last    Status
	seen    bool
}

func newControllerHarness(t *testing.T, required int, solver *fakeSolver) *controllerHarness {
	t.Helper()
	h := &controllerHarness{
		t:       t,
		frames:  latest.NewHub[frame.Frame](),
		variant: &fakeVariant{},
		solver:  solver,
	}
	h.ctrl = NewController(ControllerConfig{
		Variants: []Variant{h.variant},
		Solver:   solver,
		Frames:   h.frames,
		Size:     image.Pt(640, 480),
		Policy:   Policy{Required: required},
		Criteria: DefaultCriteria(),
		Window:   DefaultWindow(),
		Log:      zerolog.Nop(),
	})
	h.status = h.ctrl.Statuses().Subscribe("test")
	t.Cleanup(h.ctrl.Close)
	return h
}

// waitFor polls the status slot like a UI tick would. Like a UI, it keeps
// the last status it received, so a status already seen still matches.
func (h *controllerHarness) waitFor(match func(Status) bool) Status {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := h.status.TryRecv(); ok {
			h.last, h.seen = st, true
		}
		if h.seen && match(h.last) {
			return h.last
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatal("timed out waiting for status")
	return Status{}
}

// feed publishes valid frames one at a time, waiting for each to be counted.
func (h *controllerHarness) feed(from, to int) {
	h.t.Helper()
	for i := from; i <= to; i++ {
		h.frames.Publish(patternFrame(uint64(i), true))
		want := i
		h.waitFor(func(st Status) bool { return st.Samples >= want })
	}
}

func chessboard6x9() Request {
	return Request{Kind: Chessboard, Params: Params{Rows: 6, Cols: 9}}
}

func TestControllerEndToEnd(t *testing.T) {
	h := newControllerHarness(t, 10, &fakeSolver{})

	id, err := h.ctrl.Start(chessboard6x9())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, h.ctrl.Active())
	assert.Equal(t, 1, h.frames.Len(), "session subscribes its own frame slot")

	h.feed(1, 10)
	final := h.waitFor(func(st Status) bool { return st.State.Terminal() })

	assert.Equal(t, Completed, final.State)
	assert.Equal(t, id, final.SessionID)
	require.NotNil(t, final.Result)
	assert.Len(t, final.Result.Distortion, 5)
	assert.Equal(t, 10, h.solver.Samples())

	h.ctrl.Wait()
	assert.False(t, h.ctrl.Active())
	assert.Equal(t, 0, h.frames.Len(), "session slot released")
}

func TestControllerRejectsWhileBusy(t *testing.T) {
	h := newControllerHarness(t, 10, &fakeSolver{})

	first, err := h.ctrl.Start(chessboard6x9())
	require.NoError(t, err)

	_, err = h.ctrl.Start(chessboard6x9())
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Equal(t, 1, h.frames.Len(), "no second session subscribed")

	h.feed(1, 2)
	st := h.waitFor(func(st Status) bool { return st.Samples == 2 })
	assert.Equal(t, first, st.SessionID, "active session unaffected")
}

func TestControllerCancelThenRestartStartsEmpty(t *testing.T) {
	h := newControllerHarness(t, 10, &fakeSolver{})

	first, err := h.ctrl.Start(chessboard6x9())
	require.NoError(t, err)
	h.feed(1, 9)

	assert.True(t, h.ctrl.Cancel())
	final := h.waitFor(func(st Status) bool { return st.State.Terminal() })
	assert.Equal(t, Cancelled, final.State)
	assert.Equal(t, first, final.SessionID)
	assert.Equal(t, 0, h.solver.Calls())

	second, err := h.ctrl.Start(chessboard6x9())
	require.NoError(t, err, "terminal status means the controller is free")
	assert.NotEqual(t, first, second)

	h.frames.Publish(patternFrame(100, true))
	st := h.waitFor(func(st Status) bool { return st.SessionID == second && st.Samples > 0 })
	assert.Equal(t, 1, st.Samples, "no samples leak across sessions")
}

func TestControllerCancelWithoutSession(t *testing.T) {
	h := newControllerHarness(t, 10, &fakeSolver{})
	assert.False(t, h.ctrl.Cancel())
	h.ctrl.Wait()
}

func TestControllerUnknownVariant(t *testing.T) {
	h := newControllerHarness(t, 10, &fakeSolver{})

	_, err := h.ctrl.Start(Request{Kind: MarkerBoard, Params: Params{Rows: 2, Cols: 2}})
	assert.True(t, errors.Is(err, ErrUnknownVariant))
	assert.False(t, h.ctrl.Active())
}

func TestControllerInvalidTarget(t *testing.T) {
	h := newControllerHarness(t, 10, &fakeSolver{})

	_, err := h.ctrl.Start(Request{Kind: Chessboard, Params: Params{Rows: 1, Cols: 9}})
	assert.True(t, errors.Is(err, ErrInvalidTarget))
	assert.False(t, h.ctrl.Active())
	assert.Equal(t, 0, h.frames.Len())
}

func TestControllerSolverFailureAllowsRetry(t *testing.T) {
	solver := &fakeSolver{fail: true}
	h := newControllerHarness(t, 1, solver)

	_, err := h.ctrl.Start(chessboard6x9())
	require.NoError(t, err)
	h.frames.Publish(patternFrame(1, true))

	final := h.waitFor(func(st Status) bool { return st.State.Terminal() })
	assert.Equal(t, Failed, final.State)
	assert.NotEmpty(t, final.Reason)

	_, err = h.ctrl.Start(chessboard6x9())
	assert.NoError(t, err)
}

func TestControllerRestartNeverShowsOldTerminalStatus(t *testing.T) {
	h := newControllerHarness(t, 1, &fakeSolver{})

	for i := 0; i < 200; i++ {
		first, err := h.ctrl.Start(chessboard6x9())
		require.NoError(t, err)
		h.frames.Publish(patternFrame(uint64(i), true))

		deadline := time.Now().Add(2 * time.Second)
		for h.ctrl.Active() {
			require.True(t, time.Now().Before(deadline), "first session did not finish")
			time.Sleep(10 * time.Microsecond)
		}

		second, err := h.ctrl.Start(chessboard6x9())
		require.NoError(t, err)
		h.waitFor(func(st Status) bool { return st.SessionID == second && st.State == Capturing })

		time.Sleep(200 * time.Microsecond)
		if st, ok := h.status.TryRecv(); ok {
			h.last = st
		}
		require.Equal(t, second, h.last.SessionID, "iteration %d: newest status belongs to %s", i, first)
		require.Equal(t, Capturing, h.last.State)

		require.True(t, h.ctrl.Cancel())
		h.waitFor(func(st Status) bool { return st.SessionID == second && st.State == Cancelled })
		h.ctrl.Wait()
	}
}
