package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// prepare normalizes a card photo for OCR: grayscale, mild contrast and
// sharpening, and upscaling when the frame is small.
func prepare(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 15)
	out = imaging.Sharpen(out, 0.7)
	if out.Bounds().Dy() < 900 {
		out = imaging.Resize(out, 0, 1200, imaging.Lanczos)
	}
	return out
}

// normalizePolarity flips light-on-dark regions to dark-on-light, which is
// what Tesseract expects. Collector lines on dark card frames need this.
func normalizePolarity(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	var sum, n int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += int((r + g + bl) / 3 >> 8)
			n++
		}
	}
	if n > 0 && sum/n < 128 {
		return imaging.Invert(img)
	}
	return img
}

// binarize applies a global threshold on a grayscale frame.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			gray := uint8((r + g + bl) / 3 >> 8)
			var v uint8 = 255
			if gray <= threshold {
				v = 0
			}
			out.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// adaptiveThreshold binarizes against a windowed mean, which holds up
// better than a global threshold across foil glare and uneven lighting.
func adaptiveThreshold(img image.Image, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2

	// summed-area table over luminance
	ints := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rowSum += int((r + g + b) / 3 >> 8)
			idx := y*w + x
			if y == 0 {
				ints[idx] = rowSum
			} else {
				ints[idx] = ints[(y-1)*w+x] + rowSum
			}
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(x-half, 0), max(y-half, 0)
			x1, y1 := min(x+half, w-1), min(y+half, h-1)
			sum := ints[y1*w+x1] - ints[y0*w+x1] - ints[y1*w+x0] + ints[y0*w+x0]
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			r, g, b, _ := img.At(x, y).RGBA()
			pix := int((r + g + b) / 3 >> 8)
			th := mean - bias
			if th < 0 {
				th = 0
			}
			c := color.NRGBA{255, 255, 255, 255}
			if pix < th {
				c = color.NRGBA{0, 0, 0, 255}
			}
			out.Set(x, y, c)
		}
	}
	return out
}
