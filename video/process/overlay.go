package process

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"edgecam/video/source"
)

var (
	colorLabel = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBG    = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// DrawLabel draws the frame number and capture time in the top left corner
// of img, in place.
func DrawLabel(img *source.Image, frame int) {
	text := fmt.Sprintf("#%d - %s", frame, img.Time.Format("2006-01-02 15:04:05.000 MST"))

	font := gocv.FontHersheySimplex
	scale := 0.5
	thickness := 1

	sz := gocv.GetTextSize(text, font, scale, thickness)

	pad := 2

	gocv.Rectangle(&img.Mat, image.Rectangle{Max: image.Point{X: sz.X + pad*2, Y: sz.Y + pad*2}}, colorBG, -1)

	gocv.PutText(&img.Mat, text, image.Point{X: pad, Y: sz.Y + pad}, font, scale, colorLabel, thickness)
}
