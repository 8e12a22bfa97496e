package gstsink

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/overlaysink"
	"github.com/visiona/overlaysink/video"
)

// BridgeConfig configures the appsink bridge.
type BridgeConfig struct {
	// Sink is the presentation sink the bridge feeds (required). The
	// bridge calls Prepare once at attach time and Show per sample.
	Sink *overlaysink.Sink

	// Format, Width and Height describe the stream the pipeline is
	// locked to (see CapsString).
	Format video.Format
	Width  int
	Height int

	// Dest is the on-screen destination window.
	Dest video.Rect

	// ContiguousInput marks the upstream decoder as delivering
	// physically contiguous buffers prefixed with a private header
	// (see ParsePrivateHeader). When false, buffers are plain CPU
	// memory and the sink translates addresses itself.
	ContiguousInput bool
}

// Bridge connects an appsink to an overlay sink. GStreamer drives it
// from the streaming thread; the overlay sink's single-thread contract
// holds because appsink serializes new-sample callbacks.
type Bridge struct {
	cfg BridgeConfig

	frameSeq     uint64
	framesIn     uint64
	framesFailed uint64
}

// BridgeStats is a snapshot of bridge counters.
type BridgeStats struct {
	FramesIn     uint64
	FramesFailed uint64
}

// NewBridge validates the configuration and negotiates the stream format
// on the sink.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("gstsink: sink is required")
	}
	if err := cfg.Sink.Prepare(cfg.Format, cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("gstsink: prepare failed: %w", err)
	}
	return &Bridge{cfg: cfg}, nil
}

// Attach installs the bridge as the appsink's new-sample callback.
func (b *Bridge) Attach(sink *app.Sink) {
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: b.onNewSample,
	})
}

// Stats returns a snapshot of bridge counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		FramesIn:     atomic.LoadUint64(&b.framesIn),
		FramesFailed: atomic.LoadUint64(&b.framesFailed),
	}
}

// onNewSample pulls one sample and presents it. A failed frame is
// dropped with a warning rather than terminating the stream; one bad
// buffer must not kill the pipeline.
func (b *Bridge) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstsink: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstsink: sample carries no buffer, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstsink: empty buffer received, skipping frame")
		return gst.FlowOK
	}

	frame, err := b.buildFrame(data)
	buffer.Unmap()
	if err != nil {
		atomic.AddUint64(&b.framesFailed, 1)
		slog.Warn("gstsink: dropping malformed frame", "error", err)
		return gst.FlowOK
	}

	atomic.AddUint64(&b.framesIn, 1)

	if err := b.cfg.Sink.Show(frame); err != nil {
		atomic.AddUint64(&b.framesFailed, 1)
		slog.Warn("gstsink: frame presentation failed",
			"seq", frame.Seq,
			"trace_id", frame.TraceID,
			"error", err,
		)
		return gst.FlowOK
	}

	slog.Debug("gstsink: frame presented",
		"seq", frame.Seq,
		"size_bytes", len(data),
		"trace_id", frame.TraceID,
	)
	return gst.FlowOK
}

// buildFrame assembles a presentation frame from the mapped buffer.
//
// Contiguous input: the private header at the front of the mapping names
// the physical address the display engine reads; the payload itself is
// not copied. Non-contiguous input: the pixel data is copied out of the
// GStreamer buffer (which is reused after the callback returns) and the
// sink translates its address per frame.
func (b *Bridge) buildFrame(data []byte) (overlaysink.Frame, error) {
	frame := overlaysink.Frame{
		Seq:       atomic.AddUint64(&b.frameSeq, 1),
		Timestamp: time.Now(),
		Format:    b.cfg.Format,
		Width:     b.cfg.Width,
		Height:    b.cfg.Height,
		Dest:      b.cfg.Dest,
		TraceID:   uuid.New().String(),
	}

	if b.cfg.ContiguousInput {
		header, err := ParsePrivateHeader(data)
		if err != nil {
			return overlaysink.Frame{}, err
		}
		frame.Phys = uint64(header.PhysY)
		frame.Contiguous = true
		return frame, nil
	}

	frame.Data = make([]byte, len(data))
	copy(frame.Data, data)
	return frame, nil
}
