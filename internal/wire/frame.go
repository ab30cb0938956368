// Package wire implements the server's binary protocol: a length-prefixed
// frame carrying a request's argument vector or a response's status and
// value, encoded little-endian throughout — the same buffer-mutation style
// friggdb/encoding/record.go uses for its on-disk records, applied here to
// bytes going over the wire instead of to disk.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single frame's payload (spec §6: 32 MiB).
const MaxFrameSize = 32 << 20

// ReadFrame reads one length-prefixed frame from r and returns its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "reading frame payload")
	}
	return payload, nil
}

// WriteFrame writes payload to w prefixed with its little-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
