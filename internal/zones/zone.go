// Package zones stores operator-configured door rectangles per camera and
// implements the overlap geometry the counting engine depends on.
package zones

// Zone is a rectangle on the image plane, in the same units as the
// detection boxes tested against it (pixels on the /detect path).
// Coordinates tolerate swapped corners; Min/Max are computed on read so a
// caller that passes (x2,x1) gets the same geometry as (x1,x2).
type Zone struct {
	ID       string
	Name     string
	CameraID string
	X1, Y1   float64
	X2, Y2   float64
}

func (z Zone) bounds() (minX, minY, maxX, maxY float64) {
	minX, maxX = z.X1, z.X2
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = z.Y1, z.Y2
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return
}

func (z Zone) area() float64 {
	minX, minY, maxX, maxY := z.bounds()
	w := maxX - minX
	h := maxY - minY
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ContainsPoint tests zone membership for a single point in the zone's own
// units, with the zone's corners min/max-normalized first.
func (z Zone) ContainsPoint(x, y float64) bool {
	minX, minY, maxX, maxY := z.bounds()
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

// Box is an axis-aligned rectangle, same coordinate system as the zone it's
// tested against (both normalized or both pixel — OverlapRatio only cares
// about ratios, so the unit cancels).
type Box struct {
	X1, Y1 float64
	X2, Y2 float64
}

func (b Box) bounds() (minX, minY, maxX, maxY float64) {
	minX, maxX = b.X1, b.X2
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = b.Y1, b.Y2
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return
}

func (b Box) area() float64 {
	minX, minY, maxX, maxY := b.bounds()
	w := maxX - minX
	h := maxY - minY
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// OverlapRatio returns area(zone ∩ box) / area(box), 0 when the areas are
// degenerate or disjoint.
func OverlapRatio(z Zone, b Box) float64 {
	boxArea := b.area()
	if boxArea == 0 {
		return 0
	}

	zMinX, zMinY, zMaxX, zMaxY := z.bounds()
	bMinX, bMinY, bMaxX, bMaxY := b.bounds()

	ix1 := max(zMinX, bMinX)
	iy1 := max(zMinY, bMinY)
	ix2 := min(zMaxX, bMaxX)
	iy2 := min(zMaxY, bMaxY)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	return (iw * ih) / boxArea
}

// PersonInZoneWithTolerance is the zone-residency test: true once the box's
// overlap with the zone reaches 1-tolerance.
func PersonInZoneWithTolerance(z Zone, b Box, tolerance float64) bool {
	return OverlapRatio(z, b) >= 1-tolerance
}
