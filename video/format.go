package video

import "fmt"

// Format identifies a pixel format the overlay hardware can present.
//
// The set is closed: it mirrors the display engine's framebuffer format
// support and is negotiated once per stream. A format change requires a
// new negotiation (and hides the layer until the next frame).
type Format int

const (
	// FormatUnknown is the zero value and is never negotiable.
	FormatUnknown Format = iota
	// FormatI420 is planar 4:2:0 YUV with Cb before Cr.
	FormatI420
	// FormatYV12 is planar 4:2:0 YUV with Cr before Cb.
	FormatYV12
	// FormatY444 is planar 4:4:4 YUV (three full-resolution planes).
	FormatY444
	// FormatNV12 is semi-planar 4:2:0 YUV with interleaved UV chroma.
	FormatNV12
	// FormatNV21 is semi-planar 4:2:0 YUV with interleaved VU chroma.
	FormatNV21
	// FormatYUY2 is packed 4:2:2 YUV, 2 bytes per pixel.
	FormatYUY2
	// FormatAYUV is packed 4:4:4:4 AYUV, 4 bytes per pixel.
	FormatAYUV
	// FormatBGRx is packed 32-bit RGB, 4 bytes per pixel.
	FormatBGRx
)

// Family groups formats by plane organization.
type Family int

const (
	FamilyPlanar Family = iota
	FamilySemiPlanar
	FamilyPacked
)

// FormatInfo describes the memory layout of a Format.
type FormatInfo struct {
	Family Family
	// Planes is the number of separately addressed planes.
	Planes int
	// Subsampled420 is true for 4:2:0 chroma subsampling.
	Subsampled420 bool
	// BytesPerPixel is the per-pixel byte stride of plane 0.
	BytesPerPixel int
}

var formatInfos = map[Format]FormatInfo{
	FormatI420: {Family: FamilyPlanar, Planes: 3, Subsampled420: true, BytesPerPixel: 1},
	FormatYV12: {Family: FamilyPlanar, Planes: 3, Subsampled420: true, BytesPerPixel: 1},
	FormatY444: {Family: FamilyPlanar, Planes: 3, BytesPerPixel: 1},
	FormatNV12: {Family: FamilySemiPlanar, Planes: 2, Subsampled420: true, BytesPerPixel: 1},
	FormatNV21: {Family: FamilySemiPlanar, Planes: 2, Subsampled420: true, BytesPerPixel: 1},
	FormatYUY2: {Family: FamilyPacked, Planes: 1, BytesPerPixel: 2},
	FormatAYUV: {Family: FamilyPacked, Planes: 1, BytesPerPixel: 4},
	FormatBGRx: {Family: FamilyPacked, Planes: 1, BytesPerPixel: 4},
}

// SupportedFormats lists the formats the hardware overlay can present.
// Formats that tolerate odd source widths are listed first.
var SupportedFormats = []Format{
	FormatYV12,
	FormatI420,
	FormatNV12,
	FormatNV21,
	FormatAYUV,
	FormatBGRx,
	FormatYUY2,
	FormatY444,
}

// Info returns the layout description for the format.
// The zero FormatInfo is returned for FormatUnknown.
func (f Format) Info() FormatInfo {
	return formatInfos[f]
}

// Supported reports whether the hardware overlay can present the format.
func (f Format) Supported() bool {
	_, ok := formatInfos[f]
	return ok
}

// RotationCapable reports whether the rotation stage accepts the format.
//
// Only 4:2:0 formats can be routed through the rotation engine. Y444 and
// the packed formats are presented unrotated even when a rotation angle
// is configured.
func (f Format) RotationCapable() bool {
	info, ok := formatInfos[f]
	return ok && info.Subsampled420
}

func (f Format) String() string {
	switch f {
	case FormatI420:
		return "I420"
	case FormatYV12:
		return "YV12"
	case FormatY444:
		return "Y444"
	case FormatNV12:
		return "NV12"
	case FormatNV21:
		return "NV21"
	case FormatYUY2:
		return "YUY2"
	case FormatAYUV:
		return "AYUV"
	case FormatBGRx:
		return "BGRx"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}
