package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxFrameSize bounds a single frame when no limit is configured.
const DefaultMaxFrameSize = 64 << 10

// ErrFrameTooLarge is returned by ReadFrame when the declared length exceeds
// the limit. The stream is unusable afterwards.
var ErrFrameTooLarge = errors.New("frame too large")

// AppendFrame appends msg to dst prefixed with its length as an unsigned
// varint (the same layout as protobuf's delimited encoding).
func AppendFrame(dst, msg []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(msg)))
	return append(dst, msg...)
}

// ReadFrame reads one length-prefixed frame from r.
//
// Precondition: limit > 0.
// Postcondition: Returns exactly one frame's payload, io.EOF on a clean end
// of stream before any prefix byte, io.ErrUnexpectedEOF on a truncated frame,
// or ErrFrameTooLarge.
func ReadFrame(r *bufio.Reader, limit int) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading frame length: %w", err)
	}
	if size > uint64(limit) {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFrameTooLarge, size, limit)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return buf, nil
}
