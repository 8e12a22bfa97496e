// Package disp builds hardware layer configurations for the display
// engine and serializes them for the two supported engine generations.
//
// BuildLayerConfig is the frame descriptor builder: it translates a
// negotiated format, the frame's plane layout and a physical base address
// into a fresh LayerConfig every frame. Encode turns that single semantic
// representation into the generation-specific record the control channel
// expects, so the per-format builder logic is never duplicated per
// generation.
package disp
