package recognize

import (
	"image"
	"math/bits"

	"github.com/disintegration/imaging"
)

// HashBits is the size of the perceptual hash in bits.
const HashBits = 64

// ImageHash is a 64-bit average-luminance perceptual hash: the image is
// shrunk to 8x8 grayscale and each bit records whether that block is
// brighter than the mean. Coarse enough to survive compression, lighting
// shifts and slight rotation; compared by Hamming distance.
type ImageHash uint64

// AverageHash computes the perceptual hash of an image.
func AverageHash(img image.Image) ImageHash {
	small := imaging.Grayscale(imaging.Resize(img, 8, 8, imaging.Lanczos))

	var lum [64]uint32
	var sum uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r, _, _, _ := small.At(x, y).RGBA()
			lum[y*8+x] = r
			sum += uint64(r)
		}
	}
	mean := uint32(sum / 64)

	var h ImageHash
	for i, v := range lum {
		if v > mean {
			h |= 1 << uint(i)
		}
	}
	return h
}

// Distance returns the number of bits differing between two hashes.
func (h ImageHash) Distance(o ImageHash) int {
	return bits.OnesCount64(uint64(h ^ o))
}
