package tracking

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ToYCbCr scales src to size and converts it to a 4:2:0 YCbCr image, the
// layout camera sensors deliver.
func ToYCbCr(src image.Image, size image.Point, offset image.Point) *image.YCbCr {
	rgba := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	srcRect := src.Bounds()
	// pan the source window by offset, wrapping around the edges
	if offset != (image.Point{}) {
		w, h := srcRect.Dx(), srcRect.Dy()
		ox := ((offset.X % w) + w) % w
		oy := ((offset.Y % h) + h) % h
		tiled := image.NewRGBA(image.Rect(0, 0, w, h))
		for _, q := range []image.Point{{0, 0}, {w, 0}, {0, h}, {w, h}} {
			dst := image.Rect(q.X-ox, q.Y-oy, q.X-ox+w, q.Y-oy+h)
			draw.Draw(tiled, dst, src, srcRect.Min, draw.Src)
		}
		src = tiled
		srcRect = tiled.Bounds()
	}
	draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, srcRect, draw.Src, nil)

	out := image.NewYCbCr(rgba.Bounds(), image.YCbCrSubsampleRatio420)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			i := rgba.PixOffset(x, y)
			yy, cb, cr := color.RGBToYCbCr(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
			out.Y[out.YOffset(x, y)] = yy
			if x%2 == 0 && y%2 == 0 {
				ci := out.COffset(x, y)
				out.Cb[ci] = cb
				out.Cr[ci] = cr
			}
		}
	}
	return out
}

// DefaultBackground is a checkerboard used when no picture is configured.
func DefaultBackground(size image.Point) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	const cell = 32
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			c := color.RGBA{R: 70, G: 80, B: 90, A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.RGBA{R: 180, G: 170, B: 150, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
