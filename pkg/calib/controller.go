package calib

import (
	"context"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Request is a typed start request from the UI.
type Request struct {
	Kind   Kind
	Params Params
}

// ControllerConfig wires the collaborators shared by every session.
type ControllerConfig struct {
	Variants []Variant
	Refiner  Refiner // optional
	Solver   Solver
	Frames   *latest.Hub[frame.Frame]
	Size     image.Point
	Policy   Policy
	Criteria Criteria
	Window   Window
	Log      zerolog.Logger
}

// Controller starts at most one session at a time on its own goroutine and
// relays its progress through a latest-wins status hub.
type Controller struct {
	cfg      ControllerConfig
	variants map[Kind]Variant
	statuses *latest.Hub[Status]
	log      zerolog.Logger

	mu     sync.Mutex
	active *run
	last   *run
}

type run struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController registers the variants by kind. A later variant of the same
// kind replaces an earlier one.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		cfg:      cfg,
		variants: make(map[Kind]Variant, len(cfg.Variants)),
		statuses: latest.NewHub[Status](),
		log:      cfg.Log.With().Str("component", "controller").Logger(),
	}
	for _, v := range cfg.Variants {
		c.variants[v.Kind()] = v
	}
	return c
}

// Statuses is the status fan-out. Subscribers see every transition unless
// they fall behind, in which case they see the newest.
func (c *Controller) Statuses() *latest.Hub[Status] {
	return c.statuses
}

// Start validates req and launches a session. It returns ErrBusy without
// side effects while another session is alive.
func (c *Controller) Start(req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.log.Warn().Str("active", c.active.id).Msg("start rejected, session already running")
		return "", ErrBusy
	}

	v, ok := c.variants[req.Kind]
	if !ok {
		return "", errors.Wrapf(ErrUnknownVariant, "%s", req.Kind)
	}
	target, err := v.Target(req.Params)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	sub := c.cfg.Frames.Subscribe(subscriberName(id))
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{id: id, cancel: cancel, done: make(chan struct{})}
	c.active = r
	c.last = r

	sess := NewSession(SessionConfig{
		ID:       id,
		Target:   target,
		Detector: v,
		Refiner:  c.cfg.Refiner,
		Solver:   c.cfg.Solver,
		Frames:   sub,
		Size:     c.cfg.Size,
		Policy:   c.cfg.Policy,
		Criteria: c.cfg.Criteria,
		Window:   c.cfg.Window,
		Report:   c.relay,
		Log:      c.cfg.Log,
	})

	c.log.Info().
		Str("session", id).
		Stringer("variant", req.Kind).
		Int("rows", req.Params.Rows).
		Int("cols", req.Params.Cols).
		Msg("calibration started")

	go c.execute(ctx, r, sess)
	return id, nil
}

// Cancel stops the active session. It reports false when none is running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return false
	}
	c.log.Info().Str("session", c.active.id).Msg("cancel requested")
	c.active.cancel()
	return true
}

// Active reports whether a session is alive.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Wait joins the most recently started session goroutine, if any.
func (c *Controller) Wait() {
	c.mu.Lock()
	r := c.last
	c.mu.Unlock()

	if r != nil {
		<-r.done
	}
}

// Close cancels and joins the active session.
func (c *Controller) Close() {
	c.Cancel()
	c.Wait()
}

func (c *Controller) execute(ctx context.Context, r *run, sess *Session) {
	defer close(r.done)
	defer r.cancel()

	final := sess.Run(ctx)
	c.cfg.Frames.Unsubscribe(subscriberName(r.id))

	// Freeing the slot and publishing happen under one lock: a UI reacting
	// to the terminal status can start again at once, and no later session's
	// status can be overwritten by it.
	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.statuses.Publish(final)
	c.mu.Unlock()

	c.log.Info().Str("session", r.id).Stringer("state", final.State).Msg("calibration finished")
}

// relay forwards progress; terminal statuses are published by execute.
func (c *Controller) relay(st Status) {
	if st.State.Terminal() {
		return
	}
	c.statuses.Publish(st)
}

func subscriberName(id string) string {
	return "calibration-" + id
}
