package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxArgs bounds the argument count a single request frame may carry
// (spec §6: 200k).
const MaxArgs = 200_000

// DecodeArgs parses a request frame's payload into its argument vector:
// nstr:u32 followed by nstr (slen:u32|bytes) strings.
func DecodeArgs(frame []byte) ([][]byte, error) {
	if len(frame) < 4 {
		return nil, errors.New("frame too short for argument count")
	}
	n := binary.LittleEndian.Uint32(frame[:4])
	if n > MaxArgs {
		return nil, errors.Errorf("argument count %d exceeds max %d", n, MaxArgs)
	}
	frame = frame[4:]

	args := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(frame) < 4 {
			return nil, errors.New("truncated argument length")
		}
		slen := binary.LittleEndian.Uint32(frame[:4])
		frame = frame[4:]

		if uint32(len(frame)) < slen {
			return nil, errors.New("truncated argument data")
		}
		args = append(args, frame[:slen])
		frame = frame[slen:]
	}
	if len(frame) != 0 {
		return nil, errors.Errorf("%d trailing bytes after %d arguments", len(frame), n)
	}
	return args, nil
}

// EncodeArgs serializes an argument vector into a request frame's payload.
func EncodeArgs(args [][]byte) []byte {
	size := 4
	for _, a := range args {
		size += 4 + len(a)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(args)))
	off := 4
	for _, a := range args {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(a)))
		off += 4
		off += copy(buf[off:], a)
	}
	return buf
}
