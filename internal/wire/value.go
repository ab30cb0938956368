package wire

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Tag identifies a reply Value's shape.
type Tag byte

const (
	TagNil Tag = iota
	TagInt
	TagDouble
	TagStr
	TagArr
)

// Value is a reply value: exactly one of its fields is meaningful, selected
// by Tag. It doubles as every reply shape the command set needs —
// GET/ZSCORE's scalar replies and KEYS/ZQUERY's array replies — without a
// separate type per command.
//
// The serialized body carries no type tags: a client knows the shape from
// the command it sent. Nil serializes to nothing, Int and Double to 8
// little-endian bytes, a scalar Str to its raw bytes, and an Arr to a u32
// element count with each string element length-prefixed (numeric elements
// stay fixed-width, so they need no prefix).
type Value struct {
	Tag    Tag
	Int    int64
	Double float64
	Str    []byte
	Arr    []Value
}

func Nil() Value             { return Value{Tag: TagNil} }
func Int(n int64) Value      { return Value{Tag: TagInt, Int: n} }
func Double(f float64) Value { return Value{Tag: TagDouble, Double: f} }
func Str(b []byte) Value     { return Value{Tag: TagStr, Str: b} }
func Arr(vs []Value) Value   { return Value{Tag: TagArr, Arr: vs} }

// EncodeResponse serializes a status code and reply value into a response
// frame's payload: status:u32 followed by the value's body.
func EncodeResponse(status uint32, v Value) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf[:4], status)
	return appendBody(buf, v, false)
}

func appendBody(buf []byte, v Value, inArray bool) []byte {
	switch v.Tag {
	case TagNil:
	case TagInt:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
	case TagDouble:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Double))
	case TagStr:
		if inArray {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Str)))
		}
		buf = append(buf, v.Str...)
	case TagArr:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Arr)))
		for _, e := range v.Arr {
			buf = appendBody(buf, e, true)
		}
	}
	return buf
}

// DecodeResponse splits a response frame's payload into its status code and
// opaque body; interpreting the body is the caller's job, since only the
// caller knows which command it sent.
func DecodeResponse(frame []byte) (status uint32, body []byte, err error) {
	if len(frame) < 4 {
		return 0, nil, errors.New("response frame too short")
	}
	return binary.LittleEndian.Uint32(frame[:4]), frame[4:], nil
}

// ReadInt consumes an 8-byte signed integer from the front of body.
func ReadInt(body []byte) (int64, []byte, error) {
	if len(body) < 8 {
		return 0, nil, errors.New("truncated int reply")
	}
	return int64(binary.LittleEndian.Uint64(body[:8])), body[8:], nil
}

// ReadDouble consumes an 8-byte IEEE-754 double from the front of body.
func ReadDouble(body []byte) (float64, []byte, error) {
	if len(body) < 8 {
		return 0, nil, errors.New("truncated double reply")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(body[:8])), body[8:], nil
}

// ReadCount consumes an array's u32 element count from the front of body.
func ReadCount(body []byte) (uint32, []byte, error) {
	if len(body) < 4 {
		return 0, nil, errors.New("truncated array count")
	}
	return binary.LittleEndian.Uint32(body[:4]), body[4:], nil
}

// ReadString consumes a length-prefixed string (an array element) from the
// front of body.
func ReadString(body []byte) ([]byte, []byte, error) {
	if len(body) < 4 {
		return nil, nil, errors.New("truncated string length")
	}
	slen := binary.LittleEndian.Uint32(body[:4])
	body = body[4:]
	if uint32(len(body)) < slen {
		return nil, nil, errors.New("truncated string data")
	}
	return body[:slen], body[slen:], nil
}
