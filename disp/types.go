package disp

import "github.com/visiona/overlaysink/video"

// PixelFormat is the display engine's framebuffer format selector.
type PixelFormat int

const (
	PixelFormatARGB8888 PixelFormat = iota
	PixelFormatYUV420Planar
	PixelFormatYUV422Planar
	PixelFormatYUV444Planar
	PixelFormatYUV420SemiUV
	PixelFormatYUV420SemiVU
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatARGB8888:
		return "ARGB8888"
	case PixelFormatYUV420Planar:
		return "YUV420P"
	case PixelFormatYUV422Planar:
		return "YUV422P"
	case PixelFormatYUV444Planar:
		return "YUV444P"
	case PixelFormatYUV420SemiUV:
		return "YUV420SP_UV"
	case PixelFormatYUV420SemiVU:
		return "YUV420SP_VU"
	default:
		return "unknown"
	}
}

// ColorSpace selects the YUV-to-RGB conversion matrix applied by the
// display engine.
type ColorSpace int

const (
	ColorSpaceBT601 ColorSpace = iota
	ColorSpaceBT709
)

func (c ColorSpace) String() string {
	if c == ColorSpaceBT709 {
		return "BT709"
	}
	return "BT601"
}

// BT709HeightThreshold is the destination height at or above which the
// BT.709 matrix is selected instead of BT.601.
const BT709HeightThreshold = 720

// ColorSpaceFor derives the color space from the destination window height.
func ColorSpaceFor(destHeight int) ColorSpace {
	if destHeight < BT709HeightThreshold {
		return ColorSpaceBT601
	}
	return ColorSpaceBT709
}

// Size is a per-plane width/height pair in hardware units.
type Size struct {
	Width  int
	Height int
}

// FixedRect is a crop rectangle in the display engine's 32.32 fixed-point
// format. X and Y are integer pixel coordinates; Width and Height carry
// the fractional encoding.
type FixedRect struct {
	X      int
	Y      int
	Width  uint64
	Height uint64
}

// FixedCoord encodes an integer pixel count as a 32.32 fixed-point value.
func FixedCoord(v int) uint64 {
	return uint64(v) << 32
}

// AlphaMode selects how the layer's alpha is applied.
type AlphaMode int

const (
	// AlphaModePixel uses per-pixel alpha from the framebuffer.
	AlphaModePixel AlphaMode = iota
	// AlphaModeGlobal applies AlphaValue uniformly to the layer.
	AlphaModeGlobal
)

// LayerConfig is the hardware-facing layer configuration. It is built
// fresh for every frame and never mutated across frames; the builder
// reconstructs every field so no stale state can leak between frames.
//
// LayerConfig is generation-independent: Encode serializes it into the
// field layout a particular display engine generation expects.
type LayerConfig struct {
	// Addr holds the physical base address of each plane. Unused plane
	// slots are zero.
	Addr [3]uint64
	// Size holds each plane's dimensions in hardware units (plane width
	// is the scanline stride divided by the per-pixel byte stride).
	Size [3]Size
	// Format is the display engine's framebuffer format code.
	Format PixelFormat
	// Crop selects the source sub-region, fixed-point encoded. It always
	// covers the decoded source resolution in this design.
	Crop FixedRect
	// Screen is the destination window in screen space. The layer scaler
	// maps Crop onto Screen.
	Screen video.Rect
	// ColorSpace is derived from the destination height.
	ColorSpace ColorSpace
	ZOrder     int
	AlphaMode  AlphaMode
	AlphaValue uint8
	Enabled    bool
}
