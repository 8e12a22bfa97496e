// Package transform defines the rotation accelerator contracts: the
// transform engine with its commit/poll protocol and the blit engine
// with its single synchronous submit call. Both backends rotate a frame
// into a destination buffer; which one exists depends on the hardware
// generation and is probed once at open time.
package transform

import (
	"time"

	"github.com/visiona/overlaysink/video"
)

// Mode is the rotation or mirror operation applied to a frame.
type Mode int

const (
	ModeNone Mode = iota
	ModeRotate90
	ModeRotate180
	ModeRotate270
	ModeMirrorH
	ModeMirrorV
)

// Transposed reports whether the operation swaps the raster's width and
// height. 180 degrees and mirrors keep the source orientation.
func (m Mode) Transposed() bool {
	return m == ModeRotate90 || m == ModeRotate270
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRotate90:
		return "rot90"
	case ModeRotate180:
		return "rot180"
	case ModeRotate270:
		return "rot270"
	case ModeMirrorH:
		return "mirror-h"
	case ModeMirrorV:
		return "mirror-v"
	default:
		return "invalid"
	}
}

// FrameFormat is the accelerator-side pixel format of a job frame.
type FrameFormat int

const (
	FrameYUV420Planar FrameFormat = iota
	FrameYUV420SemiUV
	FrameYUV420SemiVU
)

// Frame describes one side of a transform job: plane addresses, pitches
// and heights in the accelerator's addressing units.
type Frame struct {
	Format FrameFormat
	Addr   [3]uint64
	Pitch  [3]int
	Height [3]int
}

// Job is one rotation request. It is submitted and awaited synchronously;
// there is no cancellation for an in-flight job.
type Job struct {
	Mode    Mode
	Src     Frame
	SrcRect video.Rect
	Dst     Frame
	DstRect video.Rect
}

// Status is the transform engine's answer to a completion query.
type Status int

const (
	StatusComplete Status = 0
	StatusBusy     Status = 1
	StatusTimeout  Status = -1
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusBusy:
		return "busy"
	case StatusTimeout:
		return "timeout"
	default:
		return "invalid"
	}
}

// Channel is the transform engine contract.
//
// The engine exposes only a poll interface: after Commit, the caller must
// Query in a loop until the job completes or the engine reports a timeout.
// After a timeout the engine's internal state is invalid and the job must
// be committed again from scratch.
type Channel interface {
	// RequestChannel acquires a hardware transform channel.
	RequestChannel() error
	// SetTimeout configures how long the engine waits for a committed job
	// before Query reports StatusTimeout.
	SetTimeout(d time.Duration) error
	// Commit submits a job to the acquired channel.
	Commit(job Job) error
	// Query reports the state of the last committed job.
	Query() (Status, error)
	// Release returns the hardware channel.
	Release() error
}

// BlitChannel is the alternate rotation backend available on hardware
// generations that ship a blit engine instead of a transform engine. A
// submit is fully synchronous: when it returns without error the
// destination buffer is written. The blit engine accepts only a subset
// of source formats; see the rotation pipeline for the whitelist.
type BlitChannel interface {
	Submit(job Job) error
}
