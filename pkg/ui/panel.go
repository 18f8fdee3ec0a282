package ui

import (
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/pkg/errors"
)

var variantOptions = []string{
	calib.Chessboard.String(),
	calib.CircleGrid.String(),
	calib.MarkerBoard.String(),
}

// Panel holds the calibration controls under the video: variant, grid
// size, marker spacing, start/cancel and the status line.
type Panel struct {
	// OnStart receives a validated request. A returned error is shown in
	// the status line.
	OnStart  func(calib.Request) (string, error)
	OnCancel func()

	defaults calib.Params

	variant *widget.Select
	rows    *widget.Entry
	cols    *widget.Entry
	locX    *widget.Entry
	locY    *widget.Entry
	start   *widget.Button
	cancel  *widget.Button
	status  *widget.Label
	content fyne.CanvasObject

	halted bool
}

// NewPanel prefills the controls from def.
func NewPanel(def calib.Request) *Panel {
	p := &Panel{defaults: def.Params}

	p.rows = numberEntry(strconv.Itoa(def.Params.Rows))
	p.cols = numberEntry(strconv.Itoa(def.Params.Cols))
	p.locX = numberEntry(formatFloat(def.Params.SeparationX))
	p.locY = numberEntry(formatFloat(def.Params.SeparationY))

	p.variant = widget.NewSelect(variantOptions, p.variantChanged)
	p.start = widget.NewButton("Start calibration", p.startTapped)
	p.cancel = widget.NewButton("Cancel", p.cancelTapped)
	p.cancel.Disable()
	p.status = widget.NewLabel(calib.Status{}.String())

	p.variant.SetSelected(def.Kind.String())

	form := container.NewGridWithColumns(8,
		widget.NewLabel("Rows"), p.rows,
		widget.NewLabel("Cols"), p.cols,
		widget.NewLabel("Loc X"), p.locX,
		widget.NewLabel("Loc Y"), p.locY,
	)
	p.content = container.NewVBox(
		container.NewHBox(p.variant, p.start, p.cancel),
		form,
		p.status,
	)
	return p
}

func (p *Panel) Content() fyne.CanvasObject {
	return p.content
}

// Request reads the controls into a typed start request.
func (p *Panel) Request() (calib.Request, error) {
	kind, err := calib.ParseKind(p.variant.Selected)
	if err != nil {
		return calib.Request{}, err
	}

	params := p.defaults
	if params.Rows, err = parseInt("rows", p.rows.Text); err != nil {
		return calib.Request{}, err
	}
	if params.Cols, err = parseInt("cols", p.cols.Text); err != nil {
		return calib.Request{}, err
	}
	if kind == calib.MarkerBoard {
		if params.SeparationX, err = parseFloat("loc x", p.locX.Text); err != nil {
			return calib.Request{}, err
		}
		if params.SeparationY, err = parseFloat("loc y", p.locY.Text); err != nil {
			return calib.Request{}, err
		}
	}
	return calib.Request{Kind: kind, Params: params}, nil
}

// SetStatus shows st and enables the buttons that make sense for it.
// After Halt it does nothing.
func (p *Panel) SetStatus(st calib.Status) {
	if p.halted {
		return
	}
	p.status.SetText(st.String())
	switch st.State {
	case calib.Capturing:
		p.start.Disable()
		p.cancel.Enable()
	case calib.Solving:
		p.start.Disable()
		p.cancel.Disable()
	default:
		p.start.Enable()
		p.cancel.Disable()
	}
}

// Halt shows a final message and disables every control. Used when the
// camera is gone and nothing can be calibrated any more.
func (p *Panel) Halt(msg string) {
	p.halted = true
	p.status.SetText(msg)
	p.start.Disable()
	p.cancel.Disable()
	p.variant.Disable()
}

func (p *Panel) variantChanged(name string) {
	if name == calib.MarkerBoard.String() {
		p.locX.Enable()
		p.locY.Enable()
		return
	}
	p.locX.Disable()
	p.locY.Disable()
}

func (p *Panel) startTapped() {
	req, err := p.Request()
	if err != nil {
		p.status.SetText("Cannot start: " + err.Error())
		return
	}
	if p.OnStart == nil {
		return
	}
	if _, err := p.OnStart(req); err != nil {
		p.status.SetText("Cannot start: " + err.Error())
		return
	}
	// Start stays disabled until a terminal status arrives.
	p.start.Disable()
	p.cancel.Enable()
}

func (p *Panel) cancelTapped() {
	if p.OnCancel != nil {
		p.OnCancel()
	}
}

func numberEntry(text string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(text)
	return e
}

func parseInt(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Errorf("%s must be a whole number", field)
	}
	return n, nil
}

func parseFloat(field, s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, errors.Errorf("%s must be a non-negative number", field)
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
