package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArgsRoundTrip(t *testing.T) {
	args := [][]byte{[]byte("set"), []byte("key"), []byte("value with spaces")}
	got, err := DecodeArgs(EncodeArgs(args))
	require.NoError(t, err)
	assert.Equal(t, args, got)
}

func TestDecodeArgsEmptyVector(t *testing.T) {
	got, err := DecodeArgs(EncodeArgs(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeArgsRejectsTooManyArgs(t *testing.T) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], MaxArgs+1)
	_, err := DecodeArgs(buf[:])
	assert.Error(t, err)
}

func TestDecodeArgsRejectsTruncation(t *testing.T) {
	payload := EncodeArgs([][]byte{[]byte("get"), []byte("key")})

	_, err := DecodeArgs(payload[:3])
	assert.Error(t, err, "short argument count")

	_, err = DecodeArgs(payload[:len(payload)-1])
	assert.Error(t, err, "short argument data")
}

func TestDecodeArgsRejectsTrailingBytes(t *testing.T) {
	payload := EncodeArgs([][]byte{[]byte("get"), []byte("key")})
	payload = append(payload, 0xCC)

	_, err := DecodeArgs(payload)
	assert.Error(t, err)
}
