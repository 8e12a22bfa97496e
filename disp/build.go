package disp

import (
	"fmt"

	"github.com/visiona/overlaysink/video"
)

// OverlayZOrder places the video layer above the console framebuffer.
const OverlayZOrder = 11

// OpaqueAlpha is the global alpha applied to every video frame.
const OpaqueAlpha = 0xff

// pixelFormatFor maps a negotiated video format to the display engine's
// framebuffer format code. The packed YUV formats are presented through
// the engine's planar format selectors, which accept the interleaved
// layouts at the matching subsampling.
func pixelFormatFor(format video.Format) (PixelFormat, error) {
	switch format {
	case video.FormatI420, video.FormatYV12:
		return PixelFormatYUV420Planar, nil
	case video.FormatNV12:
		return PixelFormatYUV420SemiUV, nil
	case video.FormatNV21:
		return PixelFormatYUV420SemiVU, nil
	case video.FormatY444, video.FormatAYUV:
		return PixelFormatYUV444Planar, nil
	case video.FormatYUY2:
		return PixelFormatYUV422Planar, nil
	case video.FormatBGRx:
		return PixelFormatARGB8888, nil
	default:
		return 0, fmt.Errorf("disp: no framebuffer format for %s", format)
	}
}

// BuildLayerConfig translates a negotiated frame description into a fresh
// hardware layer configuration.
//
// base is the physical address of plane 0. srcW and srcH are the decoded
// source dimensions (the crop rectangle always covers the full source).
// dest is the destination window in screen space; the hardware scaler maps
// source onto destination, so they may differ in size and aspect.
//
// BuildLayerConfig never fails for a format accepted by video.Negotiate.
func BuildLayerConfig(neg *video.Negotiation, base uint64, srcW, srcH int, dest video.Rect) (LayerConfig, error) {
	code, err := pixelFormatFor(neg.Format)
	if err != nil {
		return LayerConfig{}, err
	}

	cfg := LayerConfig{
		Format: code,
		Crop: FixedRect{
			Width:  FixedCoord(srcW),
			Height: FixedCoord(srcH),
		},
		Screen:     dest,
		ColorSpace: ColorSpaceFor(dest.H),
		ZOrder:     OverlayZOrder,
		AlphaMode:  AlphaModeGlobal,
		AlphaValue: OpaqueAlpha,
		Enabled:    true,
	}

	planes := neg.Layout.Planes
	info := neg.Format.Info()
	// Plane width in hardware units is the scanline stride divided by the
	// per-pixel byte stride, so any pool padding is carried through and
	// the engine's fetch width matches the buffer rows exactly.
	lumaWidth := planes[0].Stride / info.BytesPerPixel

	switch neg.Format {
	case video.FormatI420:
		cfg.Addr[0] = base
		cfg.Addr[1] = base + uint64(planes[1].Offset)
		cfg.Addr[2] = base + uint64(planes[2].Offset)
		cfg.Size[0] = Size{Width: lumaWidth, Height: srcH}
		cfg.Size[1] = Size{Width: srcW / 2, Height: srcH / 2}
		cfg.Size[2] = Size{Width: srcW / 2, Height: srcH / 2}

	case video.FormatYV12:
		// The engine addresses Cr before Cb for 4:2:0 planar. YV12 stores
		// Cr first in memory, so plane 1 and plane 2 swap relative to I420.
		cfg.Addr[0] = base
		cfg.Addr[1] = base + uint64(planes[2].Offset)
		cfg.Addr[2] = base + uint64(planes[1].Offset)
		cfg.Size[0] = Size{Width: lumaWidth, Height: srcH}
		cfg.Size[1] = Size{Width: srcW / 2, Height: srcH / 2}
		cfg.Size[2] = Size{Width: srcW / 2, Height: srcH / 2}

	case video.FormatNV12, video.FormatNV21:
		// Interleave order (UV vs VU) is pure format-code selection; the
		// addressing is identical for both.
		cfg.Addr[0] = base
		cfg.Addr[1] = base + uint64(planes[1].Offset)
		cfg.Size[0] = Size{Width: lumaWidth, Height: srcH}
		cfg.Size[1] = Size{Width: lumaWidth / 2, Height: srcH / 2}

	case video.FormatY444:
		cfg.Addr[0] = base
		cfg.Addr[1] = base + uint64(planes[1].Offset)
		cfg.Addr[2] = base + uint64(planes[2].Offset)
		cfg.Size[0] = Size{Width: lumaWidth, Height: srcH}
		cfg.Size[1] = Size{Width: lumaWidth, Height: srcH}
		cfg.Size[2] = Size{Width: lumaWidth, Height: srcH}

	default:
		// Packed single-plane formats.
		cfg.Addr[0] = base
		cfg.Size[0] = Size{Width: lumaWidth, Height: srcH}
	}

	return cfg, nil
}
