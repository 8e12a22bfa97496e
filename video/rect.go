package video

// Rect is a rectangle in pixels. Source crop rectangles are always
// origin-anchored; destination rectangles are in screen space.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Transposed returns the rectangle with width and height swapped.
// Used when a 90/270 degree rotation changes the raster orientation.
func (r Rect) Transposed() Rect {
	return Rect{X: r.X, Y: r.Y, W: r.H, H: r.W}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}
