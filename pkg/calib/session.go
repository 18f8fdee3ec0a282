package calib

import (
	"context"
	"image"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
	"github.com/rs/zerolog"
)

// DefaultRequired is the number of samples collected before solving.
const DefaultRequired = 10

// Policy decides when enough samples have been collected.
type Policy struct {
	Required int
	// MinSpread rejects a detection whose centroid lies closer than this many
	// pixels to an accepted sample's centroid. Zero accepts every detection.
	MinSpread float64
}

// SessionConfig wires one session.
type SessionConfig struct {
	ID       string
	Target   Target
	Detector Detector
	Refiner  Refiner // optional
	Solver   Solver
	Frames   *latest.Slot[frame.Frame]
	Size     image.Point
	Policy   Policy
	Criteria Criteria
	Window   Window
	Report   func(Status) // optional, called on the session goroutine
	Log      zerolog.Logger
}

// Session collects samples of one target and solves once. It is single-use.
type Session struct {
	cfg     SessionConfig
	state   State
	samples SampleSet
	log     zerolog.Logger
}

// NewSession builds a session in the Idle state.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Policy.Required <= 0 {
		cfg.Policy.Required = DefaultRequired
	}
	return &Session{
		cfg:   cfg,
		state: Idle,
		log: cfg.Log.With().
			Str("component", "calibration").
			Str("session", cfg.ID).
			Str("variant", cfg.Target.Kind().String()).
			Logger(),
	}
}

// State returns the current state. Only safe on the Run goroutine or after
// Run has returned.
func (s *Session) State() State { return s.state }

// Samples exposes the sample set once Run has returned.
func (s *Session) Samples() *SampleSet { return &s.samples }

// Run drives the state machine to a terminal state and returns the final
// status. Cancelling ctx while capturing ends the session Cancelled and
// discards its samples.
func (s *Session) Run(ctx context.Context) Status {
	if s.state != Idle {
		st := s.status()
		st.Reason = "session already used"
		return st
	}
	s.transition(Capturing)

	for s.samples.Len() < s.cfg.Policy.Required {
		select {
		case <-ctx.Done():
			s.samples.reset()
			return s.finish(Cancelled, nil, "")
		case <-s.cfg.Frames.Ready():
		}
		// Both cases may be ready; cancellation wins.
		if ctx.Err() != nil {
			s.samples.reset()
			return s.finish(Cancelled, nil, "")
		}

		f, ok := s.cfg.Frames.TryRecv()
		if !ok {
			continue
		}
		if s.consider(f) {
			s.report()
		}
	}

	s.transition(Solving)
	res, err := s.cfg.Solver.Solve(&s.samples, s.cfg.Size, s.cfg.Criteria)
	if err != nil {
		s.log.Error().Err(err).Int("samples", s.samples.Len()).Msg("calibration solve failed")
		return s.finish(Failed, nil, err.Error())
	}

	s.log.Info().
		Interface("camera_matrix", res.CameraMatrix).
		Floats64("distortion", res.Distortion).
		Float64("rms", res.RMS).
		Msg("calibration complete")
	return s.finish(Completed, &res, "")
}

// consider runs detection on one frame and accepts it as a sample when
// every check passes. Rejections are silent.
func (s *Session) consider(f frame.Frame) bool {
	t := s.cfg.Target
	pts, found := s.cfg.Detector.Detect(f, t)
	if !found {
		return false
	}
	if len(pts) != t.Len() {
		s.log.Debug().Int("want", t.Len()).Int("got", len(pts)).Msg("detection has wrong point count")
		return false
	}

	if s.cfg.Refiner != nil {
		refined, err := s.cfg.Refiner.Refine(f, pts, s.cfg.Window, s.cfg.Criteria)
		if err != nil || len(refined) != len(pts) {
			s.log.Debug().Err(err).Uint64("seq", f.Seq).Msg("sub-pixel refinement failed")
			return false
		}
		pts = refined
	}

	if r := s.cfg.Policy.MinSpread; r > 0 && s.samples.near(centroid(pts), r) {
		s.log.Debug().Uint64("seq", f.Seq).Msg("sample too close to an accepted one")
		return false
	}

	if err := s.samples.add(t.Points(), pts); err != nil {
		s.log.Debug().Err(err).Msg("sample rejected")
		return false
	}
	s.log.Debug().Int("samples", s.samples.Len()).Uint64("seq", f.Seq).Msg("sample accepted")
	return true
}

func (s *Session) transition(to State) {
	s.log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("state change")
	s.state = to
	s.report()
}

func (s *Session) finish(to State, res *Result, reason string) Status {
	s.log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("state change")
	s.state = to
	st := s.status()
	st.Result = res
	st.Reason = reason
	if s.cfg.Report != nil {
		s.cfg.Report(st)
	}
	return st
}

func (s *Session) report() {
	if s.cfg.Report != nil {
		s.cfg.Report(s.status())
	}
}

func (s *Session) status() Status {
	return Status{
		SessionID: s.cfg.ID,
		Kind:      s.cfg.Target.Kind(),
		State:     s.state,
		Samples:   s.samples.Len(),
		Required:  s.cfg.Policy.Required,
	}
}
