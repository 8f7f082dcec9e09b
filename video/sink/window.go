package sink

import (
	"gocv.io/x/gocv"

	"edgecam/video/source"
)

// Window shows images in a titled highgui window. It is also the source of
// key presses, since highgui only processes events while waiting for keys.
type Window struct {
	window  *gocv.Window
	sizeSet bool
}

func NewWindow(name string) *Window {
	return &Window{
		window: gocv.NewWindow(name),
	}
}

func (w *Window) Put(input source.Image) {
	if !w.sizeSet {
		w.window.ResizeWindow(input.Mat.Cols(), input.Mat.Rows())
		w.sizeSet = true
	}
	w.window.IMShow(input.Mat)
}

// WaitKey waits up to delay milliseconds for a key press and returns its
// code, or -1.
func (w *Window) WaitKey(delay int) int {
	return w.window.WaitKey(delay)
}

func (w *Window) Close() {
	w.window.Close()
}
