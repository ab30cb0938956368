package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The literal frame layouts clients depend on: a status-only reply is
// exactly 4 bytes of payload, a string reply is status plus the raw bytes.
func TestEncodeResponseLayout(t *testing.T) {
	payload := EncodeResponse(StatusOK, Nil())
	assert.Len(t, payload, 4)

	payload = EncodeResponse(StatusOK, Str([]byte("bar")))
	require.Len(t, payload, 7)
	assert.Equal(t, []byte("bar"), payload[4:])

	payload = EncodeResponse(StatusNX, Nil())
	require.Len(t, payload, 4)
	status, body, err := DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, StatusNX, status)
	assert.Empty(t, body)
}

func TestEncodeResponseScalars(t *testing.T) {
	status, body, err := DecodeResponse(EncodeResponse(StatusOK, Int(-7)))
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	n, rest, err := ReadInt(body)
	require.NoError(t, err)
	assert.Equal(t, int64(-7), n)
	assert.Empty(t, rest)

	_, body, err = DecodeResponse(EncodeResponse(StatusOK, Double(1.5)))
	require.NoError(t, err)
	f, rest, err := ReadDouble(body)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
	assert.Empty(t, rest)
}

func TestEncodeResponseStringArray(t *testing.T) {
	v := Arr([]Value{Str([]byte("user:1")), Str([]byte("user:2"))})
	_, body, err := DecodeResponse(EncodeResponse(StatusOK, v))
	require.NoError(t, err)

	count, body, err := ReadCount(body)
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	var got []string
	for i := uint32(0); i < count; i++ {
		var s []byte
		s, body, err = ReadString(body)
		require.NoError(t, err)
		got = append(got, string(s))
	}
	assert.Equal(t, []string{"user:1", "user:2"}, got)
	assert.Empty(t, body)
}

// ZQUERY's reply alternates fixed-width scores with length-prefixed names.
func TestEncodeResponseScoreNamePairs(t *testing.T) {
	v := Arr([]Value{
		Double(2), Str([]byte("b")),
		Double(3), Str([]byte("c")),
	})
	_, body, err := DecodeResponse(EncodeResponse(StatusOK, v))
	require.NoError(t, err)

	count, body, err := ReadCount(body)
	require.NoError(t, err)
	require.Equal(t, uint32(4), count)

	type row struct {
		score float64
		name  string
	}
	var rows []row
	for i := uint32(0); i < count; i += 2 {
		var (
			score float64
			name  []byte
		)
		score, body, err = ReadDouble(body)
		require.NoError(t, err)
		name, body, err = ReadString(body)
		require.NoError(t, err)
		rows = append(rows, row{score, string(name)})
	}
	assert.Equal(t, []row{{2, "b"}, {3, "c"}}, rows)
	assert.Empty(t, body)
}

func TestDecodeResponseTooShort(t *testing.T) {
	_, _, err := DecodeResponse([]byte{1, 2})
	assert.Error(t, err)
}
