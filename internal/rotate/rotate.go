// Package rotate owns the optional hardware rotation stage: backend
// selection, the double-buffered output discipline and the descriptor
// rewrite that points the display engine at the rotated frame.
package rotate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/visiona/overlaysink/disp"
	"github.com/visiona/overlaysink/physmem"
	"github.com/visiona/overlaysink/transform"
	"github.com/visiona/overlaysink/video"
)

// Backend identifies which rotation accelerator was found at open time.
type Backend int

const (
	BackendNone Backend = iota
	BackendTransform
	BackendBlit
)

func (b Backend) String() string {
	switch b {
	case BackendTransform:
		return "transform"
	case BackendBlit:
		return "blit"
	default:
		return "none"
	}
}

const (
	// busyPollInterval is the sleep between completion queries while the
	// transform engine reports busy. The engine exposes only a poll
	// interface, so this is a bounded spin rather than a blocking wait.
	busyPollInterval = time.Millisecond

	// maxResubmits bounds how often a timed-out job is committed again
	// before the frame is failed. The engine's state is invalid after a
	// timeout, so each retry restarts the job from scratch.
	maxResubmits = 3

	// bufferAlign is the plane dimension alignment the accelerators
	// require for both source and destination rasters.
	bufferAlign = 32
)

var (
	// ErrNoBackend is returned when rotation is requested but no
	// accelerator was found at open time.
	ErrNoBackend = errors.New("rotate: no rotation backend available")
	// ErrUnsupportedFormat is returned when the selected backend cannot
	// rotate the negotiated format.
	ErrUnsupportedFormat = errors.New("rotate: format not supported by rotation backend")
)

func align32(v int) int {
	return (v + bufferAlign - 1) &^ (bufferAlign - 1)
}

// Pipeline drives rotation jobs through whichever accelerator backend the
// hardware provides and owns the two ping-pong output buffers.
//
// The alternation index is the sole synchronization discipline: the job
// for frame k writes buffer k%2 and the display configuration of frame k
// reads that same buffer, while the display engine is still scanning the
// buffer written by frame k-1. Correctness relies on the backend's
// synchronous completion guarantee; there is no fence between job
// completion and the display engine sampling the buffer.
//
// Pipeline is not safe for concurrent use; frames are submitted by a
// single thread.
type Pipeline struct {
	mem  physmem.Ops
	tr   transform.Channel
	blit transform.BlitChannel

	backend Backend

	bufs   [2]*physmem.Buffer
	bufLen int
	cur    int

	rotated   uint64
	resubmits uint64
}

// New selects a rotation backend from the probed channels. The transform
// engine is preferred when both are present; either may be nil.
func New(mem physmem.Ops, tr transform.Channel, blit transform.BlitChannel) *Pipeline {
	p := &Pipeline{mem: mem, tr: tr, blit: blit}
	switch {
	case tr != nil:
		p.backend = BackendTransform
	case blit != nil:
		p.backend = BackendBlit
	}
	return p
}

// Backend returns the selected accelerator backend.
func (p *Pipeline) Backend() Backend { return p.backend }

// Rotated returns how many frames have been routed through the pipeline.
func (p *Pipeline) Rotated() uint64 { return p.rotated }

// Resubmits returns how many timed-out jobs were committed again.
func (p *Pipeline) Resubmits() uint64 { return p.resubmits }

// Apply rotates the frame described by cfg and rewrites cfg in place so
// its plane addresses and sizes point into the rotated output buffer.
// srcRect is the true content rectangle of the source raster (it may be
// smaller than the aligned plane dimensions when the buffer carries
// padding).
//
// On success the alternation index advances, so the next frame writes
// the other buffer of the pair.
func (p *Pipeline) Apply(cfg *disp.LayerConfig, format video.Format, mode transform.Mode, srcRect video.Rect) error {
	if mode == transform.ModeNone {
		return nil
	}
	if p.backend == BackendNone {
		return ErrNoBackend
	}

	frameFmt, err := p.frameFormat(format)
	if err != nil {
		return err
	}

	alignW := align32(cfg.Size[0].Width)
	alignH := align32(cfg.Size[0].Height)
	if err := p.ensureBuffers(alignW, alignH); err != nil {
		return err
	}

	job := p.buildJob(cfg, frameFmt, mode, srcRect, alignW, alignH)

	switch p.backend {
	case BackendTransform:
		err = p.runTransform(job)
	case BackendBlit:
		err = p.blit.Submit(job)
		if err != nil {
			err = fmt.Errorf("rotate: blit submit failed: %w", err)
		}
	}
	if err != nil {
		return err
	}

	p.rewrite(cfg, job, frameFmt, mode)
	p.cur ^= 1
	p.rotated++
	return nil
}

// frameFormat maps the negotiated format to the accelerator-side format,
// enforcing the per-backend whitelist.
func (p *Pipeline) frameFormat(format video.Format) (transform.FrameFormat, error) {
	if p.backend == BackendBlit {
		// The blit engine rotates only YV12 and NV21 source rasters.
		switch format {
		case video.FormatYV12:
			return transform.FrameYUV420Planar, nil
		case video.FormatNV21:
			return transform.FrameYUV420SemiVU, nil
		default:
			return 0, fmt.Errorf("%w: %s on blit backend", ErrUnsupportedFormat, format)
		}
	}
	switch format {
	case video.FormatI420, video.FormatYV12:
		return transform.FrameYUV420Planar, nil
	case video.FormatNV12:
		return transform.FrameYUV420SemiUV, nil
	case video.FormatNV21:
		return transform.FrameYUV420SemiVU, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ensureBuffers lazily allocates the ping-pong pair on the first rotated
// frame, sized for the maximum aligned 4:2:0 footprint. Both buffers are
// zeroed and flushed so the accelerator and the display engine observe
// consistent memory regardless of cache coherency topology.
func (p *Pipeline) ensureBuffers(alignW, alignH int) error {
	if p.bufs[0] != nil && p.bufs[1] != nil {
		return nil
	}

	size := alignW * alignH * 3 / 2
	for i := range p.bufs {
		buf, err := p.mem.Alloc(size)
		if err != nil {
			// Never keep a half-allocated pair around.
			if i == 1 {
				_ = p.mem.Free(p.bufs[0])
				p.bufs[0] = nil
			}
			return fmt.Errorf("rotate: no physical memory for rotation buffers: %w", err)
		}
		clear(buf.Data)
		if err := p.mem.FlushCache(buf.Data); err != nil {
			slog.Warn("rotate: cache flush failed on rotation buffer", "index", i, "error", err)
		}
		p.bufs[i] = buf
	}
	p.bufLen = size

	slog.Info("rotate: rotation buffers allocated",
		"buffer_bytes", size,
		"aligned", fmt.Sprintf("%dx%d", alignW, alignH),
		"backend", p.backend.String(),
	)
	return nil
}

// buildJob derives the full transform job for the current frame. The
// destination raster keeps the source orientation for 180 degrees and
// mirrors, and is transposed for 90/270.
func (p *Pipeline) buildJob(cfg *disp.LayerConfig, frameFmt transform.FrameFormat, mode transform.Mode, srcRect video.Rect, alignW, alignH int) transform.Job {
	job := transform.Job{
		Mode:    mode,
		SrcRect: srcRect,
	}

	job.Src.Format = frameFmt
	job.Src.Addr = cfg.Addr
	if frameFmt == transform.FrameYUV420Planar {
		job.Src.Pitch = [3]int{alignW, alignW / 2, alignW / 2}
		job.Src.Height = [3]int{alignH, alignH / 2, alignH / 2}
	} else {
		job.Src.Pitch = [3]int{alignW, alignW}
		job.Src.Height = [3]int{alignH, alignH / 2}
	}

	dstBase := p.bufs[p.cur].Phys
	job.Dst.Format = frameFmt
	job.Dst.Addr[0] = dstBase
	job.Dst.Addr[1] = dstBase + uint64(alignW*alignH)
	if frameFmt == transform.FrameYUV420Planar {
		job.Dst.Addr[2] = dstBase + uint64(alignW*alignH*5/4)
	}

	pitch, height := alignW, alignH
	if mode.Transposed() {
		pitch, height = alignH, alignW
	}
	if frameFmt == transform.FrameYUV420Planar {
		job.Dst.Pitch = [3]int{pitch, pitch / 2, pitch / 2}
		job.Dst.Height = [3]int{height, height / 2, height / 2}
	} else {
		job.Dst.Pitch = [3]int{pitch, pitch}
		job.Dst.Height = [3]int{height, height / 2}
	}
	job.DstRect = video.Rect{W: pitch, H: height}

	return job
}

// rewrite points the frame descriptor at the rotated output so the display
// engine reads the buffer the just-completed job wrote.
func (p *Pipeline) rewrite(cfg *disp.LayerConfig, job transform.Job, frameFmt transform.FrameFormat, mode transform.Mode) {
	cfg.Addr = job.Dst.Addr

	pitch := job.Dst.Pitch[0]
	height := job.Dst.Height[0]
	cfg.Size[0] = disp.Size{Width: pitch, Height: height}
	cfg.Size[1] = disp.Size{Width: pitch / 2, Height: height / 2}
	if frameFmt == transform.FrameYUV420Planar {
		cfg.Size[2] = disp.Size{Width: pitch / 2, Height: height / 2}
	} else {
		cfg.Size[2] = disp.Size{}
	}

	if mode.Transposed() {
		cfg.Crop.Width, cfg.Crop.Height = cfg.Crop.Height, cfg.Crop.Width
	}
}

// runTransform drives the commit/poll protocol: busy answers are polled
// at busyPollInterval, a timeout invalidates the engine state and the
// identical job is committed again, up to maxResubmits times.
func (p *Pipeline) runTransform(job transform.Job) error {
	for attempt := 0; attempt <= maxResubmits; attempt++ {
		if attempt > 0 {
			p.resubmits++
			slog.Warn("rotate: transform timed out, resubmitting job",
				"attempt", attempt,
				"mode", job.Mode.String(),
			)
		}

		if err := p.tr.Commit(job); err != nil {
			return fmt.Errorf("rotate: transform commit failed: %w", err)
		}

		status, err := p.awaitTransform()
		if err != nil {
			return err
		}
		if status == transform.StatusComplete {
			return nil
		}
	}
	return fmt.Errorf("rotate: transform job did not complete after %d resubmissions", maxResubmits)
}

func (p *Pipeline) awaitTransform() (transform.Status, error) {
	for {
		status, err := p.tr.Query()
		if err != nil {
			return 0, fmt.Errorf("rotate: transform query failed: %w", err)
		}
		if status == transform.StatusBusy {
			time.Sleep(busyPollInterval)
			continue
		}
		return status, nil
	}
}

// Close releases the ping-pong buffers. Safe to call when rotation was
// never engaged.
func (p *Pipeline) Close() {
	for i, buf := range p.bufs {
		if buf == nil {
			continue
		}
		if err := p.mem.Free(buf); err != nil {
			slog.Error("rotate: failed to free rotation buffer", "index", i, "error", err)
		}
		p.bufs[i] = nil
	}
	p.bufLen = 0
}
