package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// WhitenItemBackground composites an item photo over a pure white background
// using a blurred luminance mask, so catalog shots get a clean, soft edge
// instead of a hard cutout.
// - threshold: brightness (0-255) at which a pixel counts as background.
// - blurSigma: strength of the Gaussian blur on the mask; 3.0-5.0 works well.
func WhitenItemBackground(imageBytes []byte, threshold uint8, blurSigma float64) ([]byte, error) {
	originalImg, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := originalImg.Bounds()
	width, height := bounds.Max.X, bounds.Max.Y

	// hard mask: white = background to replace, black = foreground to keep
	mask := image.NewGray(bounds)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := originalImg.At(x, y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)

			luminance := 0.299*float64(r8) + 0.587*float64(g8) + 0.114*float64(b8)
			if luminance >= float64(threshold) {
				mask.SetGray(x, y, color.Gray{Y: 255})
			} else {
				mask.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	// feather the mask so the transition to white has no hard edge
	blurredMask := imaging.Blur(mask, blurSigma)

	out := image.NewNRGBA(bounds)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := originalImg.At(x, y).RGBA()
			r8, g8, b8, a8 := uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)

			maskValue := float64(blurredMask.NRGBAAt(x, y).R) / 255.0
			blend := func(channel uint8) uint8 {
				return uint8(float64(channel)*(1.0-maskValue) + 255.0*maskValue)
			}
			out.SetNRGBA(x, y, color.NRGBA{R: blend(r8), G: blend(g8), B: blend(b8), A: a8})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image to png: %w", err)
	}
	return buf.Bytes(), nil
}
