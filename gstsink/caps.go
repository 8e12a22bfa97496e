package gstsink

import (
	"fmt"

	"github.com/visiona/overlaysink/video"
)

// gstFormatNames maps presentation formats to the GStreamer video/x-raw
// format field.
var gstFormatNames = map[video.Format]string{
	video.FormatI420: "I420",
	video.FormatYV12: "YV12",
	video.FormatY444: "Y444",
	video.FormatNV12: "NV12",
	video.FormatNV21: "NV21",
	video.FormatYUY2: "YUY2",
	video.FormatAYUV: "AYUV",
	video.FormatBGRx: "BGRx",
}

var formatsByGstName = func() map[string]video.Format {
	m := make(map[string]video.Format, len(gstFormatNames))
	for f, name := range gstFormatNames {
		m[name] = f
	}
	return m
}()

// CapsString builds the caps filter string that locks the pipeline to
// the negotiated format and dimensions.
func CapsString(format video.Format, width, height int) (string, error) {
	name, ok := gstFormatNames[format]
	if !ok {
		return "", fmt.Errorf("gstsink: no caps name for format %s", format)
	}
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d", name, width, height), nil
}

// FormatFromCapsName resolves a video/x-raw format field to a
// presentation format.
func FormatFromCapsName(name string) (video.Format, error) {
	f, ok := formatsByGstName[name]
	if !ok {
		return video.FormatUnknown, fmt.Errorf("gstsink: unsupported caps format %q", name)
	}
	return f, nil
}
