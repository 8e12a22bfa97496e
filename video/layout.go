package video

import "fmt"

// ScanlineAlign is the minimum scanline alignment in bytes required by the
// display engine. It matches the padding the upstream buffer pool already
// provides, so the common case needs no repacking.
const ScanlineAlign = 16

// StartAddrAlign is the required alignment of a plane's start address in
// video memory.
const StartAddrAlign = 16

// Plane is the position of one plane inside a frame buffer.
type Plane struct {
	// Offset is the byte offset of the plane from the buffer start.
	Offset int
	// Stride is the scanline stride in bytes.
	Stride int
}

// PlaneLayout is the per-plane layout of a frame buffer for a negotiated
// format. Offsets are strictly increasing and every stride is a multiple
// of ScanlineAlign.
type PlaneLayout struct {
	Planes []Plane
	// Size is the total byte footprint covered by all planes.
	Size int
}

// Negotiation is the result of a successful capability query. It is
// consulted once per format change and stays immutable for the stream.
type Negotiation struct {
	Format Format
	Width  int
	Height int
	Layout PlaneLayout
	// Align is the start address alignment requirement in bytes.
	Align int
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

func ceilDiv(v, d int) int {
	return (v + d - 1) / d
}

// Negotiate reports whether the hardware overlay can present the given
// format and dimensions, and derives the plane layout the frame buffer
// must satisfy.
//
// Odd source widths are rejected for all 4:2:0 subsampled formats: the
// chroma plane math rounds in a way that produces a visible artifact
// column at the right edge of the scaled area. Y444 and the packed
// formats accept odd widths.
func Negotiate(format Format, width, height int) (*Negotiation, error) {
	if !format.Supported() {
		return nil, fmt.Errorf("video: format %s not supported by hardware overlay", format)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("video: invalid source dimensions %dx%d", width, height)
	}

	info := format.Info()
	if info.Subsampled420 && width&1 == 1 {
		return nil, fmt.Errorf("video: odd width %d not supported for %s", width, format)
	}

	layout := deriveLayout(format, width, height)
	return &Negotiation{
		Format: format,
		Width:  width,
		Height: height,
		Layout: layout,
		Align:  StartAddrAlign,
	}, nil
}

// MatchesStrides reports whether the given upstream scanline strides
// already satisfy the negotiated layout, so the caller can skip a
// repacking copy and stream the buffer directly.
func (n *Negotiation) MatchesStrides(strides ...int) bool {
	if len(strides) != len(n.Layout.Planes) {
		return false
	}
	for i, s := range strides {
		if s != n.Layout.Planes[i].Stride {
			return false
		}
	}
	return true
}

func deriveLayout(format Format, width, height int) PlaneLayout {
	info := format.Info()

	var strides, heights []int
	switch {
	case info.Family == FamilyPacked:
		strides = []int{alignUp(width*info.BytesPerPixel, ScanlineAlign)}
		heights = []int{height}
	case info.Family == FamilySemiPlanar:
		// Chroma rows hold width/2 interleaved UV pairs, one byte each.
		luma := alignUp(width, ScanlineAlign)
		strides = []int{luma, luma}
		heights = []int{height, ceilDiv(height, 2)}
	case info.Subsampled420:
		luma := alignUp(width, ScanlineAlign)
		chroma := alignUp(width/2, ScanlineAlign)
		strides = []int{luma, chroma, chroma}
		heights = []int{height, ceilDiv(height, 2), ceilDiv(height, 2)}
	default:
		// Y444: three full-resolution planes.
		full := alignUp(width, ScanlineAlign)
		strides = []int{full, full, full}
		heights = []int{height, height, height}
	}

	layout := PlaneLayout{Planes: make([]Plane, len(strides))}
	offset := 0
	for i := range strides {
		offset = alignUp(offset, StartAddrAlign)
		layout.Planes[i] = Plane{Offset: offset, Stride: strides[i]}
		offset += strides[i] * heights[i]
	}
	layout.Size = offset
	return layout
}
