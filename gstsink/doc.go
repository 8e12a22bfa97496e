// Package gstsink bridges a GStreamer appsink into an overlay sink. It
// translates appsink samples into presentation frames, parses the
// decoder's private buffer header on physically contiguous buffers, and
// keeps per-stream drop and error counters.
package gstsink
