package discord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcodes of the local RPC socket protocol. Every frame on the wire is a
// little-endian int32 opcode, a little-endian int32 payload length, and a
// JSON payload of that length.
const (
	opHandshake int32 = 0
	opFrame     int32 = 1
	opClose     int32 = 2
	opPing      int32 = 3
	opPong      int32 = 4
)

const maxFramePayload = 64 * 1024

var (
	errShortHeader     = errors.New("short frame header")
	errPayloadTooLarge = errors.New("frame payload too large")
)

func readFrame(r io.Reader) (int32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, errShortHeader
		}
		return 0, nil, err
	}

	op := int32(binary.LittleEndian.Uint32(header[0:4]))
	length := int32(binary.LittleEndian.Uint32(header[4:8]))
	if length < 0 || length > maxFramePayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", errPayloadTooLarge, length)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return op, payload, nil
}

func writeFrame(w io.Writer, op int32, payload []byte) error {
	if len(payload) > maxFramePayload {
		return fmt.Errorf("%w: %d bytes", errPayloadTooLarge, len(payload))
	}
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	_, err := w.Write(buf)
	return err
}
