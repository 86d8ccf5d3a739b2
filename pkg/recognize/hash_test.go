package recognize

import (
	"image"
	"image/color"
	"testing"
)

// testImage renders a deterministic gradient with a configurable split so
// pairs of images can be made identical, similar, or very different.
func testImage(split int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.Gray{Y: 30}
			if x >= split {
				c = color.Gray{Y: 220}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestAverageHashIdenticalImages(t *testing.T) {
	a := AverageHash(testImage(32))
	b := AverageHash(testImage(32))
	if a != b {
		t.Fatalf("identical images hashed differently: %x vs %x", a, b)
	}
	if a.Distance(b) != 0 {
		t.Fatalf("identical hashes have nonzero distance %d", a.Distance(b))
	}
}

func TestAverageHashDistinguishesImages(t *testing.T) {
	left := AverageHash(testImage(16))
	right := AverageHash(testImage(48))
	if d := left.Distance(right); d == 0 {
		t.Fatalf("distinct images collapsed to the same hash")
	}
}

func TestHashDistanceBounds(t *testing.T) {
	var zero, full ImageHash
	full = ^full
	if d := zero.Distance(full); d != HashBits {
		t.Fatalf("expected max distance %d got %d", HashBits, d)
	}
	if d := zero.Distance(zero); d != 0 {
		t.Fatalf("expected zero distance got %d", d)
	}
}
