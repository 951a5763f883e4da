package inference

import (
	"image"
	"image/draw"
	"math"
)

// Bilateral filter parameters applied before resizing, matching the
// training pipeline.
const (
	FilterDiameter   = 9
	FilterSigmaColor = 75.0
	FilterSigmaSpace = 75.0
)

// BilateralFilter smooths img while keeping edges. Neighbours within a disc
// of the given diameter are weighted by distance and by the summed
// per-channel intensity difference, as OpenCV's bilateralFilter does for
// 8-bit RGB input. Borders are reflected without repeating the edge pixel.
func BilateralFilter(img image.Image, diameter int, sigmaColor, sigmaSpace float64) *image.NRGBA {
	b := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	width, height := b.Dx(), b.Dy()
	radius := diameter / 2
	if radius < 1 || width < 2 || height < 2 {
		return src
	}

	type offset struct {
		dx, dy int
		w      float64
	}
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	var kernel []offset
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if math.Sqrt(r2) > float64(radius) {
				continue
			}
			kernel = append(kernel, offset{dx: dx, dy: dy, w: math.Exp(r2 * spaceCoeff)})
		}
	}

	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	colorWeight := make([]float64, 3*256)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	dst := image.NewNRGBA(src.Bounds())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ci := src.PixOffset(x, y)
			r0, g0, b0 := int(src.Pix[ci]), int(src.Pix[ci+1]), int(src.Pix[ci+2])

			var sumR, sumG, sumB, sumW float64
			for _, k := range kernel {
				ni := src.PixOffset(reflect101(x+k.dx, width), reflect101(y+k.dy, height))
				r, g, bl := int(src.Pix[ni]), int(src.Pix[ni+1]), int(src.Pix[ni+2])

				w := k.w * colorWeight[abs(r-r0)+abs(g-g0)+abs(bl-b0)]
				sumR += w * float64(r)
				sumG += w * float64(g)
				sumB += w * float64(bl)
				sumW += w
			}

			dst.Pix[ci] = uint8(math.Round(sumR / sumW))
			dst.Pix[ci+1] = uint8(math.Round(sumG / sumW))
			dst.Pix[ci+2] = uint8(math.Round(sumB / sumW))
			dst.Pix[ci+3] = 0xff
		}
	}
	return dst
}

// reflect101 maps i into [0, n) as gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
