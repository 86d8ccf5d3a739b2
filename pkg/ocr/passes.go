package ocr

import (
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Card regions as fractions of the frame. The title band sits just under
// the top border; the collector line hugs the bottom-left corner.
var (
	titleRegion     = region{x0: 0.05, y0: 0.045, x1: 0.75, y1: 0.095}
	collectorRegion = region{x0: 0.05, y0: 0.945, x1: 0.35, y1: 0.985}
)

const (
	titleWhitelist     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789',-. "
	collectorWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789/★ "
	regionUpscale      = 3
)

type region struct {
	x0, y0, x1, y1 float64
}

type cardPasses struct {
	full      string
	title     string
	collector string
}

// runCardPasses preprocesses the photo and runs the three OCR passes. The
// full-frame pass tolerates failure of the targeted region passes; those
// just come back empty.
func runCardPasses(path string) (cardPasses, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return cardPasses{}, err
	}

	prepared := prepare(img)
	var out cardPasses
	out.full, err = recognizeImage(prepared, gosseract.PSM_AUTO, "")
	if err != nil {
		return cardPasses{}, err
	}

	title := adaptiveThreshold(upscale(crop(prepared, titleRegion)), 25, 10)
	if text, err := recognizeImage(title, gosseract.PSM_SINGLE_LINE, titleWhitelist); err == nil {
		out.title = text
	}
	collector := binarize(normalizePolarity(upscale(crop(prepared, collectorRegion))), 160)
	if text, err := recognizeImage(collector, gosseract.PSM_SINGLE_BLOCK, collectorWhitelist); err == nil {
		out.collector = text
	}
	return out, nil
}

// recognizeImage writes the frame to a temp file and runs one Tesseract
// pass over it.
func recognizeImage(img image.Image, psm gosseract.PageSegMode, whitelist string) (string, error) {
	tmp, err := os.CreateTemp("", "cardocr-*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	_ = tmp.Close()
	if err := imaging.Save(img, tmp.Name()); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	_ = client.SetPageSegMode(psm)
	if whitelist != "" {
		_ = client.SetWhitelist(whitelist)
	}
	if err := client.SetImage(tmp.Name()); err != nil {
		return "", err
	}
	return client.Text()
}

func crop(img image.Image, r region) *image.NRGBA {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	return imaging.Crop(img, image.Rect(
		b.Min.X+int(r.x0*w), b.Min.Y+int(r.y0*h),
		b.Min.X+int(r.x1*w), b.Min.Y+int(r.y1*h),
	))
}

func upscale(img *image.NRGBA) *image.NRGBA {
	return imaging.Resize(img, img.Bounds().Dx()*regionUpscale, 0, imaging.Lanczos)
}
