package overlaysink

import (
	"time"

	"github.com/visiona/overlaysink/disp"
	"github.com/visiona/overlaysink/physmem"
	"github.com/visiona/overlaysink/transform"
	"github.com/visiona/overlaysink/video"
)

// Frame is one decoded video frame handed to the sink for presentation.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the frame source.
	Seq uint64
	// Timestamp is when the frame was decoded.
	Timestamp time.Time
	// Format must match the currently negotiated format.
	Format video.Format
	// Width and Height are the decoded source dimensions.
	Width  int
	Height int
	// Data is the CPU mapping of the frame memory, laid out per the
	// negotiated plane layout.
	Data []byte
	// Phys is the physical address of the frame memory. Only meaningful
	// when Contiguous is true.
	Phys uint64
	// Contiguous indicates the frame memory is already physically
	// contiguous, so the sink can address it directly without cache
	// maintenance or address translation.
	Contiguous bool
	// Dest is the destination window in screen space. The hardware layer
	// scales the source onto it.
	Dest video.Rect
	// TraceID is a unique identifier for distributed tracing.
	TraceID string
}

// Config configures an overlay sink.
type Config struct {
	// Display is the display control channel (required).
	Display disp.Channel
	// Memory is the physically contiguous memory adapter (required).
	Memory physmem.Ops
	// Transform is the rotation engine channel, nil when the device is
	// absent.
	Transform transform.Channel
	// Blit is the alternate rotation backend, nil when absent. Ignored
	// when Transform is present.
	Blit transform.BlitChannel

	// Generation selects the display engine record layout. Defaults to
	// disp.GenDE2.
	Generation disp.Generation
	// LayerID and ChannelID address the hardware layer to reserve.
	LayerID   int
	ChannelID int

	// Rotation is the fixed rotation applied to every frame of the
	// stream. transform.ModeNone disables the rotation stage.
	Rotation transform.Mode

	// TransformTimeout is handed to the transform engine at open time.
	// Defaults to 200ms, matching the device default.
	TransformTimeout time.Duration
}

// DefaultTransformTimeout is the transform engine timeout used when the
// config leaves it zero.
const DefaultTransformTimeout = 200 * time.Millisecond

// SinkStats is a snapshot of sink counters.
type SinkStats struct {
	// FramesShown is the number of frames successfully presented.
	FramesShown uint64
	// FramesFailed is the number of frames that failed presentation.
	FramesFailed uint64
	// FramesRotated is the number of frames routed through the rotation
	// pipeline.
	FramesRotated uint64
	// RotateResubmits counts timed-out rotation jobs that were committed
	// again.
	RotateResubmits uint64
	// OverlayAvailable is false when layer reservation failed at open
	// time and the caller must use a fallback path.
	OverlayAvailable bool
	// LayerVisible reports the current layer visibility.
	LayerVisible bool
	// RotationBackend names the selected rotation backend.
	RotationBackend string
	// Format is the currently negotiated format, empty before Prepare.
	Format string
}
