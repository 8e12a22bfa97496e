package overlaysink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/visiona/overlaysink/disp"
	"github.com/visiona/overlaysink/internal/layer"
	"github.com/visiona/overlaysink/internal/rotate"
	"github.com/visiona/overlaysink/transform"
	"github.com/visiona/overlaysink/video"
)

var (
	// ErrNotOpened is returned when a frame arrives before Open.
	ErrNotOpened = errors.New("overlaysink: sink not opened")
	// ErrOverlayUnavailable is returned per frame when layer reservation
	// failed at open time; the caller should fall back to direct
	// framebuffer writes.
	ErrOverlayUnavailable = errors.New("overlaysink: hardware overlay unavailable")
	// ErrNotNegotiated is returned when a frame arrives before Prepare.
	ErrNotNegotiated = errors.New("overlaysink: no format negotiated")
	// ErrFormatMismatch is returned when a frame does not match the
	// negotiated format or dimensions.
	ErrFormatMismatch = errors.New("overlaysink: frame does not match negotiated format")
)

// Sink presents decoded video frames through a hardware overlay layer,
// bypassing software blitting. Frames that require rotation are routed
// through a rotation accelerator into a double-buffered output before
// the layer is pointed at them.
//
// The sink is synchronous and single-threaded: every operation executes
// to completion on the thread that delivers the frame. Open, Prepare,
// Show and Close must be called from that one thread; Stats may be
// called from it at any point.
//
// Lifecycle: New → Open → Prepare → Show (per frame, Prepare again on
// format change) → Close.
type Sink struct {
	cfg Config

	layer *layer.Manager
	rot   *rotate.Pipeline

	opened           bool
	overlayAvailable bool
	neg              *video.Negotiation

	framesShown  atomic.Uint64
	framesFailed atomic.Uint64
}

// New validates the configuration and creates a sink. Fail-fast: wiring
// errors surface at construction, not at the first frame.
func New(cfg Config) (*Sink, error) {
	if cfg.Display == nil {
		return nil, fmt.Errorf("overlaysink: display channel is required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("overlaysink: physical memory adapter is required")
	}
	switch cfg.Rotation {
	case transform.ModeNone, transform.ModeRotate90, transform.ModeRotate180,
		transform.ModeRotate270, transform.ModeMirrorH, transform.ModeMirrorV:
	default:
		return nil, fmt.Errorf("overlaysink: invalid rotation mode %d", cfg.Rotation)
	}
	if cfg.Generation == 0 {
		cfg.Generation = disp.GenDE2
	}
	if cfg.Generation != disp.GenDE1 && cfg.Generation != disp.GenDE2 {
		return nil, fmt.Errorf("overlaysink: unknown display generation %d", cfg.Generation)
	}
	if cfg.TransformTimeout == 0 {
		cfg.TransformTimeout = DefaultTransformTimeout
	}

	slog.Info("overlaysink: sink created",
		"generation", cfg.Generation.String(),
		"layer_id", cfg.LayerID,
		"channel_id", cfg.ChannelID,
		"rotation", cfg.Rotation.String(),
	)

	return &Sink{cfg: cfg}, nil
}

// Open probes the hardware: it reserves the overlay layer and acquires a
// rotation backend. Capability absence is non-fatal: a failed layer
// reservation leaves the sink open with the overlay marked unavailable,
// and a missing rotation device disables rotation only.
func (s *Sink) Open() error {
	if s.opened {
		return fmt.Errorf("overlaysink: already opened")
	}

	s.layer = layer.New(s.cfg.Display, s.cfg.Generation, s.cfg.LayerID, s.cfg.ChannelID)
	if err := s.layer.Reserve(); err != nil {
		slog.Error("overlaysink: layer reservation failed, hardware overlay disabled", "error", err)
		s.overlayAvailable = false
	} else {
		s.overlayAvailable = true
		slog.Info("overlaysink: hardware overlay available")
	}

	tr := s.cfg.Transform
	if tr != nil {
		if err := tr.RequestChannel(); err != nil {
			slog.Error("overlaysink: transform channel request failed, hardware rotation disabled", "error", err)
			tr = nil
		} else if err := tr.SetTimeout(s.cfg.TransformTimeout); err != nil {
			slog.Error("overlaysink: transform timeout setup failed, hardware rotation disabled", "error", err)
			_ = tr.Release()
			tr = nil
		}
	}
	s.rot = rotate.New(s.cfg.Memory, tr, s.cfg.Blit)

	if s.cfg.Rotation != transform.ModeNone && s.rot.Backend() == rotate.BackendNone {
		slog.Warn("overlaysink: rotation configured but no rotation device found",
			"rotation", s.cfg.Rotation.String(),
		)
	}

	s.opened = true
	return nil
}

// OverlayAvailable reports whether the hardware overlay was successfully
// reserved at open time.
func (s *Sink) OverlayAvailable() bool { return s.overlayAvailable }

// Prepare negotiates a new stream format. It must be called before the
// first frame and again on every upstream format change. The layer is
// hidden before the new format takes effect, since a format change can
// alter the plane count and layout and the old configuration must not
// stay visible mid-transition.
func (s *Sink) Prepare(format video.Format, width, height int) error {
	if !s.opened {
		return ErrNotOpened
	}

	neg, err := video.Negotiate(format, width, height)
	if err != nil {
		return fmt.Errorf("overlaysink: negotiation failed: %w", err)
	}

	if s.overlayAvailable {
		s.layer.Hide()
	}
	s.neg = neg

	slog.Info("overlaysink: format prepared",
		"format", format.String(),
		"source", fmt.Sprintf("%dx%d", width, height),
		"buffer_bytes", neg.Layout.Size,
	)
	return nil
}

// Show presents one frame. Errors are local to the frame: a failed frame
// leaves the layer state and the negotiation untouched, and the next
// frame is processed normally.
func (s *Sink) Show(frame Frame) error {
	if !s.opened {
		return ErrNotOpened
	}
	if !s.overlayAvailable {
		return ErrOverlayUnavailable
	}
	if s.neg == nil {
		return ErrNotNegotiated
	}
	if frame.Format != s.neg.Format || frame.Width != s.neg.Width || frame.Height != s.neg.Height {
		s.framesFailed.Add(1)
		return fmt.Errorf("%w: got %s %dx%d, negotiated %s %dx%d",
			ErrFormatMismatch,
			frame.Format, frame.Width, frame.Height,
			s.neg.Format, s.neg.Width, s.neg.Height,
		)
	}

	if err := s.show(frame); err != nil {
		s.framesFailed.Add(1)
		return err
	}
	s.framesShown.Add(1)
	return nil
}

func (s *Sink) show(frame Frame) error {
	base, srcW, srcH, err := s.resolveSource(frame)
	if err != nil {
		return err
	}

	cfg, err := disp.BuildLayerConfig(s.neg, base, srcW, srcH, frame.Dest)
	if err != nil {
		return err
	}

	if s.cfg.Rotation != transform.ModeNone {
		if !frame.Format.RotationCapable() {
			// The rotation stage only handles 4:2:0; Y444 and packed
			// frames are presented unrotated.
			slog.Debug("overlaysink: rotation disabled for format",
				"format", frame.Format.String(),
				"seq", frame.Seq,
			)
		} else if err := s.rot.Apply(&cfg, frame.Format, s.cfg.Rotation, video.Rect{W: srcW, H: srcH}); err != nil {
			return fmt.Errorf("overlaysink: rotation failed: %w", err)
		}
	}

	if err := s.layer.Apply(cfg); err != nil {
		return fmt.Errorf("overlaysink: frame %d rejected: %w", frame.Seq, err)
	}

	slog.Debug("overlaysink: frame shown",
		"seq", frame.Seq,
		"trace_id", frame.TraceID,
		"base", fmt.Sprintf("0x%08x", base),
	)
	return nil
}

// resolveSource picks the physical addressing strategy for the frame.
//
// Pre-contiguous frames carry their physical address and true content
// dimensions (the delivered buffer may be padded beyond the negotiated
// alignment). Non-contiguous frames are flushed from cache and their CPU
// mapping is translated to a physical address through the allocator.
func (s *Sink) resolveSource(frame Frame) (base uint64, srcW, srcH int, err error) {
	srcW, srcH = s.neg.Width, s.neg.Height

	if frame.Contiguous {
		if frame.Phys == 0 {
			return 0, 0, 0, fmt.Errorf("overlaysink: contiguous frame %d has no physical address", frame.Seq)
		}
		if w, h, err := s.cfg.Memory.ActualSize(); err == nil && w > 0 && h > 0 {
			srcW, srcH = w, h
		}
		return frame.Phys, srcW, srcH, nil
	}

	if err := s.cfg.Memory.FlushCache(frame.Data); err != nil {
		return 0, 0, 0, fmt.Errorf("overlaysink: cache flush failed for frame %d: %w", frame.Seq, err)
	}
	base, err = s.cfg.Memory.PhysAddr(frame.Data)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("overlaysink: address translation failed for frame %d: %w", frame.Seq, err)
	}
	return base, srcW, srcH, nil
}

// Close hides and releases the layer, frees the rotation buffers and
// returns the transform channel. Idempotent.
func (s *Sink) Close() error {
	if !s.opened {
		return nil
	}

	if s.layer != nil {
		s.layer.Release()
	}
	if s.rot != nil {
		s.rot.Close()
	}
	if s.cfg.Transform != nil && s.rot != nil && s.rot.Backend() == rotate.BackendTransform {
		if err := s.cfg.Transform.Release(); err != nil {
			slog.Error("overlaysink: transform channel release failed", "error", err)
		}
	}

	s.opened = false
	s.neg = nil

	slog.Info("overlaysink: sink closed",
		"frames_shown", s.framesShown.Load(),
		"frames_failed", s.framesFailed.Load(),
	)
	return nil
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() SinkStats {
	stats := SinkStats{
		FramesShown:      s.framesShown.Load(),
		FramesFailed:     s.framesFailed.Load(),
		OverlayAvailable: s.overlayAvailable,
	}
	if s.layer != nil {
		stats.LayerVisible = s.layer.Visible()
	}
	if s.rot != nil {
		stats.FramesRotated = s.rot.Rotated()
		stats.RotateResubmits = s.rot.Resubmits()
		stats.RotationBackend = s.rot.Backend().String()
	}
	if s.neg != nil {
		stats.Format = s.neg.Format.String()
	}
	return stats
}
