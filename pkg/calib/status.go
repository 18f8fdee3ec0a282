package calib

import "fmt"

// State is a session's position in Idle -> Capturing -> Solving -> terminal.
type State int8

const (
	Idle State = iota
	Capturing
	Solving
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Solving:
		return "solving"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Status is what the UI learns about a session.
type Status struct {
	SessionID string
	Kind      Kind
	State     State
	Samples   int
	Required  int
	Result    *Result
	Reason    string
}

// String renders the status line shown under the video.
func (s Status) String() string {
	switch s.State {
	case Idle:
		return "Idle"
	case Capturing:
		return fmt.Sprintf("Captured frames: %d/%d", s.Samples, s.Required)
	case Solving:
		return fmt.Sprintf("Solving with %d frames...", s.Samples)
	case Completed:
		if s.Result != nil {
			return fmt.Sprintf("Calibration complete (RMS %.3f)", s.Result.RMS)
		}
		return "Calibration complete"
	case Failed:
		return "Calibration failed: " + s.Reason
	case Cancelled:
		return "Calibration cancelled"
	}
	return s.State.String()
}
