package monitor

import (
	"bytes"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
)

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type resultResponse struct {
	CameraMatrix [3][3]float64 `json:"camera_matrix"`
	Distortion   []float64     `json:"distortion"`
	RMS          float64       `json:"rms"`
}

type statusResponse struct {
	Session  string          `json:"session,omitempty"`
	Variant  string          `json:"variant"`
	State    string          `json:"state"`
	Text     string          `json:"text"`
	Samples  int             `json:"samples"`
	Required int             `json:"required"`
	Active   bool            `json:"active"`
	Reason   string          `json:"reason,omitempty"`
	Result   *resultResponse `json:"result,omitempty"`
	Capture  *captureInfo    `json:"capture,omitempty"`
	Stream   streamInfo      `json:"stream"`
}

// streamInfo describes the frame hub fan-out.
type streamInfo struct {
	Published   uint64 `json:"published"`
	Subscribers int    `json:"subscribers"`
}

type captureInfo struct {
	Read       uint64 `json:"frames_read"`
	Published  uint64 `json:"frames_published"`
	Skipped    uint64 `json:"frames_skipped"`
	SinkErrors uint64 `json:"sink_errors"`
}

// startRequest mirrors calib.Params; omitted fields keep the defaults.
type startRequest struct {
	Variant      string  `json:"variant"`
	Rows         int     `json:"rows"`
	Cols         int     `json:"cols"`
	SquareSize   float64 `json:"square_size"`
	MarkerLength float64 `json:"marker_length"`
	SeparationX  float64 `json:"separation_x"`
	SeparationY  float64 `json:"separation_y"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	st, _ := s.snapshot()

	resp := statusResponse{
		Session:  st.SessionID,
		Variant:  st.Kind.String(),
		State:    st.State.String(),
		Text:     st.String(),
		Samples:  st.Samples,
		Required: st.Required,
		Active:   s.cfg.Controller.Active(),
		Reason:   st.Reason,
		Stream: streamInfo{
			Published:   s.cfg.Frames.Published(),
			Subscribers: s.cfg.Frames.Len(),
		},
	}
	if st.Result != nil {
		resp.Result = &resultResponse{
			CameraMatrix: st.Result.CameraMatrix,
			Distortion:   st.Result.Distortion,
			RMS:          st.Result.RMS,
		}
	}
	if s.cfg.Stats != nil {
		stats := s.cfg.Stats()
		resp.Capture = &captureInfo{
			Read:       stats.Read,
			Published:  stats.Published,
			Skipped:    stats.Skipped,
			SinkErrors: stats.SinkErrors,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFrame(c *gin.Context) {
	_, f := s.snapshot()
	if f.Empty() {
		abort(c, http.StatusServiceUnavailable, "no_frame", "no frame has been captured yet")
		return
	}

	img, err := rgbaImage(f)
	if err != nil {
		abort(c, http.StatusInternalServerError, "bad_frame", err.Error())
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		abort(c, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

func (s *Server) handleStart(c *gin.Context) {
	def := s.cfg.Defaults
	body := startRequest{
		Variant:      def.Kind.String(),
		Rows:         def.Params.Rows,
		Cols:         def.Params.Cols,
		SquareSize:   def.Params.SquareSize,
		MarkerLength: def.Params.MarkerLength,
		SeparationX:  def.Params.SeparationX,
		SeparationY:  def.Params.SeparationY,
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			abort(c, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}

	kind, err := calib.ParseKind(body.Variant)
	if err != nil {
		abort(c, http.StatusBadRequest, "unknown_variant", err.Error())
		return
	}

	id, err := s.cfg.Controller.Start(calib.Request{
		Kind: kind,
		Params: calib.Params{
			Rows:         body.Rows,
			Cols:         body.Cols,
			SquareSize:   body.SquareSize,
			MarkerLength: body.MarkerLength,
			SeparationX:  body.SeparationX,
			SeparationY:  body.SeparationY,
		},
	})
	switch {
	case errors.Is(err, calib.ErrBusy):
		abort(c, http.StatusConflict, "busy", err.Error())
		return
	case errors.Is(err, calib.ErrUnknownVariant), errors.Is(err, calib.ErrInvalidTarget):
		abort(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}

	s.log.Info().Str("session", id).Str("variant", kind.String()).Msg("calibration started remotely")
	c.JSON(http.StatusAccepted, gin.H{"session": id, "variant": kind.String()})
}

func (s *Server) handleCancel(c *gin.Context) {
	if !s.cfg.Controller.Cancel() {
		abort(c, http.StatusNotFound, "no_session", "no calibration is running")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func abort(c *gin.Context, code int, kind, msg string) {
	c.AbortWithStatusJSON(code, errorResponse{
		Error:     kind,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// rgbaImage views an RGBA frame as an image without copying.
func rgbaImage(f frame.Frame) (*image.RGBA, error) {
	if f.Format != frame.FormatRGBA {
		return nil, errors.Errorf("frame format %s", f.Format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, nil
}
