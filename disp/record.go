package disp

import "github.com/visiona/overlaysink/video"

// Generation identifies the display engine hardware generation, which
// determines the field layout of the layer configuration record the
// control channel expects. The semantic content is identical across
// generations; only the serialization differs.
type Generation int

const (
	// GenDE1 is the first-generation engine: a single width/height pair,
	// an integer source window, and scaler work-mode selection.
	GenDE1 Generation = iota + 1
	// GenDE2 is the second-generation engine: per-plane size structs, a
	// fixed-point crop rectangle and an explicit color-space selector.
	GenDE2
)

func (g Generation) String() string {
	switch g {
	case GenDE1:
		return "DE1"
	case GenDE2:
		return "DE2"
	default:
		return "unknown"
	}
}

// Record is a generation-specific layer configuration as accepted by the
// display control channel. Concrete types are DE1Record and DE2Record.
type Record interface {
	Generation() Generation
	// Layer returns the layer and channel the record addresses.
	Layer() (layerID, channelID int)
}

// DE1Record is the first-generation field layout: separate per-plane
// address array plus a single plane size, integer source window, and a
// scaler work mode flag.
type DE1Record struct {
	LayerID   int
	ChannelID int

	Addr   [3]uint64
	Size   Size
	Format PixelFormat

	SrcWin    video.Rect
	ScreenWin video.Rect

	AlphaMode   AlphaMode
	AlphaValue  uint8
	PreMultiply bool
	ZOrder      int
	// ScalerMode engages the layer scaler so SrcWin can differ from
	// ScreenWin in size.
	ScalerMode bool
	Enabled    bool
}

func (r *DE1Record) Generation() Generation { return GenDE1 }
func (r *DE1Record) Layer() (int, int) { return r.LayerID, r.ChannelID }

// DE2Record is the second-generation field layout: per-plane size array,
// fixed-point crop, color space, buffer mode and scan flags.
type DE2Record struct {
	LayerID   int
	ChannelID int

	Addr   [3]uint64
	Size   [3]Size
	Format PixelFormat

	Crop       FixedRect
	ScreenWin  video.Rect
	ColorSpace ColorSpace

	AlphaMode  AlphaMode
	AlphaValue uint8
	ZOrder     int
	// BufferMode is always true for video overlays (the alternative,
	// color mode, fills the layer with a constant).
	BufferMode  bool
	Progressive bool
	Enabled     bool
}

func (r *DE2Record) Generation() Generation { return GenDE2 }
func (r *DE2Record) Layer() (int, int) { return r.LayerID, r.ChannelID }

// Encode serializes a LayerConfig into the record layout for the given
// hardware generation. The builder is generation-independent; this is the
// only place generation differences appear.
func Encode(gen Generation, cfg LayerConfig, layerID, channelID int) Record {
	switch gen {
	case GenDE1:
		return &DE1Record{
			LayerID:   layerID,
			ChannelID: channelID,
			Addr:      cfg.Addr,
			Size:      cfg.Size[0],
			Format:    cfg.Format,
			SrcWin: video.Rect{
				X: cfg.Crop.X,
				Y: cfg.Crop.Y,
				W: int(cfg.Crop.Width >> 32),
				H: int(cfg.Crop.Height >> 32),
			},
			ScreenWin:  cfg.Screen,
			AlphaMode:  cfg.AlphaMode,
			AlphaValue: cfg.AlphaValue,
			ZOrder:     cfg.ZOrder,
			ScalerMode: true,
			Enabled:    cfg.Enabled,
		}
	default:
		return &DE2Record{
			LayerID:     layerID,
			ChannelID:   channelID,
			Addr:        cfg.Addr,
			Size:        cfg.Size,
			Format:      cfg.Format,
			Crop:        cfg.Crop,
			ScreenWin:   cfg.Screen,
			ColorSpace:  cfg.ColorSpace,
			AlphaMode:   cfg.AlphaMode,
			AlphaValue:  cfg.AlphaValue,
			ZOrder:      cfg.ZOrder,
			BufferMode:  true,
			Progressive: true,
			Enabled:     cfg.Enabled,
		}
	}
}

// Channel is the display control channel contract.
//
// Implementations must guarantee:
//   - SetLayerConfig applies the whole record atomically or rejects it;
//     a rejected record leaves the previous configuration active.
//   - SetLayerEnable toggles visibility without touching the rest of the
//     layer configuration.
//   - ScreenWidth/ScreenHeight report the active display mode.
type Channel interface {
	SetLayerConfig(rec Record) error
	SetLayerEnable(layerID, channelID int, enabled bool) error
	ScreenWidth() (int, error)
	ScreenHeight() (int, error)
}
