package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// VideoDisplay shows the frames handed over by the render bridge. It must
// only be touched from the fyne main goroutine.
type VideoDisplay struct {
	widget.BaseWidget

	image *canvas.Image
}

// NewVideoDisplay sizes the widget to the camera's native resolution and
// starts with a blank picture.
func NewVideoDisplay(width, height int) *VideoDisplay {
	v := &VideoDisplay{}
	v.ExtendBaseWidget(v)

	v.image = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, width, height)))
	v.image.FillMode = canvas.ImageFillContain
	v.image.ScaleMode = canvas.ImageScaleFastest
	v.image.SetMinSize(fyne.NewSize(float32(width), float32(height)))
	return v
}

// UpdateFrame swaps in img and redraws. The bridge reuses one buffer, so
// the same pointer arrives on every tick; the refresh re-uploads it.
func (v *VideoDisplay) UpdateFrame(img image.Image) {
	v.image.Image = img
	v.image.Refresh()
}

func (v *VideoDisplay) CreateRenderer() fyne.WidgetRenderer {
	return &videoRenderer{v}
}

// videoRenderer implements the logic to draw the widget
type videoRenderer struct {
	v *VideoDisplay
}

func (r *videoRenderer) Destroy() {}

func (r *videoRenderer) MinSize() fyne.Size {
	return r.v.image.MinSize()
}

func (r *videoRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.v.image}
}

func (r *videoRenderer) Refresh() {
	r.v.image.Refresh()
}

func (r *videoRenderer) Layout(s fyne.Size) {
	r.v.image.Resize(s)
}
