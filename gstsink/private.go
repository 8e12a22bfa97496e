package gstsink

import (
	"encoding/binary"
	"fmt"
)

// PrivateHeaderSize is the size in bytes of the decoder's private buffer
// header. The decoder prepends it to every physically contiguous output
// buffer.
const PrivateHeaderSize = 8

// PrivateHeader is the decoder's private buffer descriptor: the bus and
// CPU addresses of the luma plane. The SoC is a 32-bit platform, so both
// addresses are 32-bit little-endian words.
type PrivateHeader struct {
	PhysY uint32
	VirtY uint32
}

// ParsePrivateHeader decodes the private header from the front of a
// contiguous buffer mapping.
func ParsePrivateHeader(data []byte) (PrivateHeader, error) {
	if len(data) < PrivateHeaderSize {
		return PrivateHeader{}, fmt.Errorf("gstsink: buffer too small for private header: %d bytes", len(data))
	}
	h := PrivateHeader{
		PhysY: binary.LittleEndian.Uint32(data[0:4]),
		VirtY: binary.LittleEndian.Uint32(data[4:8]),
	}
	if h.PhysY == 0 {
		return PrivateHeader{}, fmt.Errorf("gstsink: private header carries a null physical address")
	}
	return h, nil
}
