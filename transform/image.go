// Package transform defines the composable value types describing how a
// layer's image and audio are modified before compositing.
package transform

// Rect is a normalized rectangle (coordinates and sizes in [0,1] of the
// output surface).
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Image describes the geometric and photometric parameters of a layer.
//
// Composition via Combine is associative but not commutative: the
// receiver acts as the parent (outer) transform.
type Image struct {
	Opacity float64
	Gain    float64
	PosX    float64
	PosY    float64
	ScaleX  float64
	ScaleY  float64
	Clip    Rect
}

// DefaultImage is the identity of Combine.
func DefaultImage() Image {
	return Image{
		Opacity: 1,
		Gain:    1,
		PosX:    0,
		PosY:    0,
		ScaleX:  1,
		ScaleY:  1,
		Clip:    Rect{X: 0, Y: 0, W: 1, H: 1},
	}
}

// Combine composes the receiver (parent) with a child transform.
func (t Image) Combine(child Image) Image {
	return Image{
		Opacity: t.Opacity * child.Opacity,
		Gain:    t.Gain * child.Gain,
		PosX:    t.PosX + child.PosX*t.ScaleX,
		PosY:    t.PosY + child.PosY*t.ScaleY,
		ScaleX:  t.ScaleX * child.ScaleX,
		ScaleY:  t.ScaleY * child.ScaleY,
		Clip:    t.combineClip(child),
	}
}

var unitRect = Rect{X: 0, Y: 0, W: 1, H: 1}

// combineClip maps the child clip rectangle into the parent's space and
// intersects it with the parent clip. The unit rectangle covers the
// whole output surface and therefore passes through unchanged.
func (t Image) combineClip(child Image) Rect {
	if child.Clip == unitRect {
		return t.Clip
	}
	mapped := Rect{
		X: t.PosX + child.Clip.X*t.ScaleX,
		Y: t.PosY + child.Clip.Y*t.ScaleY,
		W: child.Clip.W * t.ScaleX,
		H: child.Clip.H * t.ScaleY,
	}
	if t.Clip == unitRect {
		return mapped
	}
	return intersect(t.Clip, mapped)
}

func intersect(a, b Rect) Rect {
	x0 := max(a.X, b.X)
	y0 := max(a.Y, b.Y)
	x1 := min(a.X+a.W, b.X+b.W)
	y1 := min(a.Y+a.H, b.Y+b.H)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (t Image) Equal(other Image) bool {
	return t == other
}

// Interpolate produces the intermediate transform between t and dest at
// progress k ∈ [0,1].
func (t Image) Interpolate(dest Image, k float64) Image {
	return Image{
		Opacity: lerp(t.Opacity, dest.Opacity, k),
		Gain:    lerp(t.Gain, dest.Gain, k),
		PosX:    lerp(t.PosX, dest.PosX, k),
		PosY:    lerp(t.PosY, dest.PosY, k),
		ScaleX:  lerp(t.ScaleX, dest.ScaleX, k),
		ScaleY:  lerp(t.ScaleY, dest.ScaleY, k),
		Clip: Rect{
			X: lerp(t.Clip.X, dest.Clip.X, k),
			Y: lerp(t.Clip.Y, dest.Clip.Y, k),
			W: lerp(t.Clip.W, dest.Clip.W, k),
			H: lerp(t.Clip.H, dest.Clip.H, k),
		},
	}
}

func lerp(a, b, k float64) float64 {
	return a + (b-a)*k
}
