package inference

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// DecodeImage decodes JPEG or PNG bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}
	return img, nil
}

// Preprocess applies the bilateral filter, resizes img to size x size and
// returns its RGB values scaled to [0, 1] in NHWC order (batch of one).
func Preprocess(img image.Image, size int) []float32 {
	filtered := BilateralFilter(img, FilterDiameter, FilterSigmaColor, FilterSigmaSpace)
	resized := resize.Resize(uint(size), uint(size), filtered, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	out := make([]float32, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := (y*width + x) * 3
			out[i] = float32(r>>8) / 255.0
			out[i+1] = float32(g>>8) / 255.0
			out[i+2] = float32(b>>8) / 255.0
		}
	}
	return out
}
