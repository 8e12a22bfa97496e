// Package video models the pixel formats the hardware overlay can present
// and the buffer layout constraints the display engine imposes on them.
//
// The central entry point is Negotiate, the overlay capability negotiator:
// it is consulted once per upstream format change and answers (a) whether
// the overlay can present the format at all, and (b) the plane offsets and
// scanline strides the frame buffer must follow so the display engine can
// scan it directly from memory without a repacking copy.
package video
