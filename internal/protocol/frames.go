package protocol

import (
	"encoding/binary"
	"fmt"
)

// MaxFrameSize bounds one frame payload. Anything larger is treated as a
// framing error and is fatal to the connection.
const MaxFrameSize = 1 << 20

// Frame prefixes a payload with its 4-byte big-endian length.
func Frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// Preamble is the plaintext connect header sent before the first frame:
// "API\x00" followed by the framed supported version range.
func Preamble(minVersion, maxVersion int) []byte {
	body := fmt.Sprintf("v%d..%d", minVersion, maxVersion)
	return append([]byte("API\x00"), Frame([]byte(body))...)
}

// ParseHandshake reads the server's reply to the preamble: its version
// followed by the session time string.
func ParseHandshake(payload []byte) (version int, serverTime string, err error) {
	r := newFieldReader(payload, Defaults{})
	version = r.int()
	serverTime = r.str()
	if r.err != nil {
		return 0, "", fmt.Errorf("handshake reply: %w", r.err)
	}
	if version <= 0 {
		return 0, "", fmt.Errorf("handshake reply: bad server version %d", version)
	}
	return version, serverTime, nil
}

// FrameBuffer accumulates raw socket bytes and yields complete frame
// payloads. It keeps partial frames across reads.
type FrameBuffer struct {
	data []byte
}

func (b *FrameBuffer) Write(p []byte) {
	b.data = append(b.data, p...)
}

// Next returns the next complete payload, or nil if more bytes are needed.
// A length prefix above MaxFrameSize is a framing error.
func (b *FrameBuffer) Next() ([]byte, error) {
	if len(b.data) < 4 {
		return nil, nil
	}
	size := binary.BigEndian.Uint32(b.data[:4])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds limit %d", size, MaxFrameSize)
	}
	end := 4 + int(size)
	if len(b.data) < end {
		return nil, nil
	}
	payload := make([]byte, size)
	copy(payload, b.data[4:end])
	b.data = b.data[end:]
	return payload, nil
}

// Reset drops any buffered partial frame (used between sessions).
func (b *FrameBuffer) Reset() {
	b.data = nil
}
