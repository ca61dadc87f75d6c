package covers

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"folio/internal/logging"
)

const (
	defaultCoverWidth  = 300
	defaultCoverHeight = 400
)

// Default renders a placeholder cover for books without embedded artwork.
// The hue is derived from the title so the same book always gets the same
// color, with a vertical gradient and a thin highlight border. Always
// returns a valid PNG.
func Default(title string) []byte {
	sum := uint32(0)
	for _, b := range []byte(title) {
		sum += uint32(b)
	}
	hue := float64(sum % 360)
	r, g, b := hsvToRGB(hue, 0.3, 0.4)

	img := image.NewRGBA(image.Rect(0, 0, defaultCoverWidth, defaultCoverHeight))
	for y := 0; y < defaultCoverHeight; y++ {
		factor := 1.0 - (float64(y)/float64(defaultCoverHeight))*0.3
		row := color.RGBA{
			R: uint8(float64(r) * factor),
			G: uint8(float64(g) * factor),
			B: uint8(float64(b) * factor),
			A: 255,
		}
		for x := 0; x < defaultCoverWidth; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	border := color.RGBA{R: 255, G: 255, B: 255, A: 60}
	for x := 0; x < defaultCoverWidth; x++ {
		img.SetRGBA(x, 0, border)
		img.SetRGBA(x, defaultCoverHeight-1, border)
	}
	for y := 0; y < defaultCoverHeight; y++ {
		img.SetRGBA(0, y, border)
		img.SetRGBA(defaultCoverWidth-1, y, border)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		// Encoding an in-memory RGBA cannot fail short of OOM.
		logging.Error("Encoding default cover: %v", err)
		return nil
	}
	return buf.Bytes()
}

// hsvToRGB converts HSV (h in degrees, s and v in 0..1) to 8-bit RGB.
func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return uint8((rf + m) * 255), uint8((gf + m) * 255), uint8((bf + m) * 255)
}
