package pipeline

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/doorwatch/doorwatch/internal/detect"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropJPEG re-encodes the region of frame (itself a JPEG-encoded image)
// inside box as its own JPEG, clipped to the image bounds. A degenerate
// or out-of-bounds box falls back to the full frame, mirroring the
// Python prototype's "crop = image" fallback when the clipped region
// comes out empty (spec.md §4.5: "crop the frame to the chosen box,
// clipped to image bounds").
func cropJPEG(frame []byte, box detect.Box) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	x1 := clampInt(int(box.X1), b.Min.X, b.Max.X)
	y1 := clampInt(int(box.Y1), b.Min.Y, b.Max.Y)
	x2 := clampInt(int(box.X2), b.Min.X, b.Max.X)
	y2 := clampInt(int(box.Y2), b.Min.Y, b.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return frame, nil
	}

	si, ok := img.(subImager)
	if !ok {
		return frame, nil
	}
	sub := si.SubImage(image.Rect(x1, y1, x2, y2))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sub, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
