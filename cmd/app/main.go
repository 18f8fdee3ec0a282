package main

import (
	"context"
	"flag"
	"image"
	"os"
	"time"

	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/camera"
	"github.com/intothevoid/calibcam/pkg/capture"
	"github.com/intothevoid/calibcam/pkg/config"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
	"github.com/intothevoid/calibcam/pkg/monitor"
	"github.com/intothevoid/calibcam/pkg/render"
	"github.com/intothevoid/calibcam/pkg/ui"
	"github.com/intothevoid/calibcam/pkg/vision"
	"github.com/rs/zerolog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	cameraIndex := flag.Int("camera", 0, "camera device index (overrides config)")
	output := flag.String("output", "", "video archive path, empty to disable (overrides config)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	// 1. Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			cfg.Camera.Index = *cameraIndex
		case "output":
			cfg.Capture.Output = *output
		}
	})
	if lvl, err := cfg.LogLevel(); err == nil {
		log = log.Level(lvl)
	}

	// 2. Initialize the Camera
	stream, err := camera.Open(cfg.Camera.Index, camera.Resolution{Width: cfg.Camera.Width, Height: cfg.Camera.Height})
	if err != nil {
		log.Fatal().Err(err).Int("camera", cfg.Camera.Index).Msg("could not open camera")
	}
	props := stream.Properties()
	log.Info().Int("width", props.Width).Int("height", props.Height).Float64("fps", props.FPS).Msg("camera opened")

	fps := props.FPS
	if fps <= 0 {
		fps = cfg.Camera.FallbackFPS
	}

	var sink capture.Sink
	if cfg.Capture.Output != "" {
		vs, err := camera.OpenSink(cfg.Capture.Output, cfg.Capture.Codec, fps, props.Width, props.Height)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Capture.Output).Msg("recording disabled")
		} else {
			sink = vs
			log.Info().Str("path", cfg.Capture.Output).Str("codec", cfg.Capture.Codec).Msg("recording")
		}
	}

	// 3. Capture loop and calibration
	frames := latest.NewHub[frame.Frame]()
	loop := capture.New(stream, sink, frames, capture.Options{Throttle: cfg.Capture.Throttle}, log)

	markers, err := vision.NewMarkerBoardVariant(cfg.Calibration.Dictionary)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid marker dictionary")
	}
	ctrl := calib.NewController(calib.ControllerConfig{
		Variants: []calib.Variant{vision.ChessboardVariant{}, vision.CircleGridVariant{}, markers},
		Refiner:  vision.SubPixRefiner{},
		Solver:   vision.Solver{},
		Frames:   frames,
		Size:     image.Pt(props.Width, props.Height),
		Policy:   cfg.Policy(),
		Criteria: cfg.Criteria(),
		Window:   cfg.Window(),
		Log:      log,
	})
	defaults := calib.Request{Kind: cfg.Kind(), Params: cfg.Params()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Monitor.Addr != "" {
		srv := monitor.New(monitor.Config{
			Addr:       cfg.Monitor.Addr,
			Controller: ctrl,
			Statuses:   ctrl.Statuses(),
			Frames:     frames,
			Defaults:   defaults,
			Stats:      loop.Stats,
			Log:        log,
		})
		defer srv.Close()
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("monitor stopped")
			}
		}()
	}

	// 4. Setup the Fyne UI App
	myApp := app.New()
	window := myApp.NewWindow("Calibcam - camera calibration")

	display := ui.NewVideoDisplay(props.Width, props.Height)
	panel := ui.NewPanel(defaults)
	panel.OnStart = ctrl.Start
	panel.OnCancel = func() { ctrl.Cancel() }

	bridge := render.New(frames.Subscribe("display"), props.Width, props.Height)
	statuses := ctrl.Statuses().Subscribe("display")

	loop.Start(ctx)

	// 5. The UI ticker
	interval := render.TickInterval(fps, cfg.UI.TickMargin)
	log.Debug().Dur("interval", interval).Msg("ui tick")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		captureDone := loop.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-captureDone:
				captureDone = nil
				if err := loop.Wait(); err != nil {
					ctrl.Cancel()
					msg := "Camera error: " + err.Error()
					fyne.Do(func() { panel.Halt(msg) })
				}
			case <-ticker.C:
				fyne.Do(func() {
					if img, ok := bridge.Pull(); ok {
						display.UpdateFrame(img)
					}
					if st, ok := statuses.TryRecv(); ok {
						panel.SetStatus(st)
					}
				})
			}
		}
	}()

	// 6. Layout and Run
	window.SetContent(container.NewBorder(nil, panel.Content(), nil, nil, display))
	window.Resize(fyne.NewSize(cfg.UI.Width, cfg.UI.Height))
	window.ShowAndRun()

	// Window closed
	cancel()
	ctrl.Close()
	loop.Stop()
	if err := loop.Wait(); err != nil {
		log.Warn().Err(err).Msg("capture ended with an error")
	}
	frames.Unsubscribe("display")
	ctrl.Statuses().Unsubscribe("display")
	st := loop.Stats()
	log.Info().
		Uint64("frames", st.Read).
		Uint64("rendered", bridge.Rendered()).
		Uint64("frame_drops", bridge.Dropped()).
		Msg("Camera stopped and resources released")
}
