package engine

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/friggkv/internal/wire"
)

// testServer binds to an ephemeral local port, starts serving in the
// background, and returns a dialer plus a stop function. Using an
// ephemeral port (":0") keeps test runs parallel-safe.
func testServer(t *testing.T) (dial func() net.Conn, stop func()) {
	t.Helper()

	s := New(Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.serve(ctx, ln)
	}()

	addr := ln.Addr().String()
	dial = func() net.Conn {
		c, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		return c
	}
	stop = func() {
		cancel()
		<-done
	}
	return dial, stop
}

func doCommand(t *testing.T, c net.Conn, argv ...string) (uint32, []byte) {
	t.Helper()

	args := make([][]byte, len(argv))
	for i, a := range argv {
		args[i] = []byte(a)
	}
	require.NoError(t, wire.WriteFrame(c, wire.EncodeArgs(args)))

	frame, err := wire.ReadFrame(c)
	require.NoError(t, err)
	status, body, err := wire.DecodeResponse(frame)
	require.NoError(t, err)
	return status, body
}

func TestServerSetGetDel(t *testing.T) {
	dial, stop := testServer(t)
	defer stop()
	c := dial()
	defer c.Close()

	status, body := doCommand(t, c, "set", "foo", "bar")
	assert.Equal(t, wire.StatusOK, status)
	assert.Empty(t, body, "OK-with-no-data reply carries an empty body")

	status, body = doCommand(t, c, "get", "foo")
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, []byte("bar"), body)

	status, _ = doCommand(t, c, "del", "foo")
	assert.Equal(t, wire.StatusOK, status)

	status, _ = doCommand(t, c, "get", "foo")
	assert.Equal(t, wire.StatusNX, status)
}

func TestServerZSet(t *testing.T) {
	dial, stop := testServer(t)
	defer stop()
	c := dial()
	defer c.Close()

	status, body := doCommand(t, c, "zadd", "z", "1.0", "a")
	assert.Equal(t, wire.StatusOK, status)
	n, _, err := wire.ReadInt(body)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	status, body = doCommand(t, c, "zadd", "z", "2.0", "b")
	assert.Equal(t, wire.StatusOK, status)
	n, _, err = wire.ReadInt(body)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	status, body = doCommand(t, c, "zadd", "z", "1.5", "a")
	assert.Equal(t, wire.StatusOK, status)
	n, _, err = wire.ReadInt(body)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	status, body = doCommand(t, c, "zscore", "z", "a")
	assert.Equal(t, wire.StatusOK, status)
	score, _, err := wire.ReadDouble(body)
	require.NoError(t, err)
	assert.Equal(t, 1.5, score)
}

// TestServerPipelining sends four requests in one write and asserts all
// four responses arrive, in order, matching spec §8 scenario 6.
func TestServerPipelining(t *testing.T) {
	dial, stop := testServer(t)
	defer stop()
	c := dial()
	defer c.Close()

	var batch bytes.Buffer
	for _, argv := range [][]string{
		{"set", "a", "1"},
		{"set", "b", "2"},
		{"get", "a"},
		{"get", "b"},
	} {
		args := make([][]byte, len(argv))
		for i, a := range argv {
			args[i] = []byte(a)
		}
		require.NoError(t, wire.WriteFrame(&batch, wire.EncodeArgs(args)))
	}
	_, err := c.Write(batch.Bytes())
	require.NoError(t, err)

	wantVals := []string{"", "", "1", "2"}
	for _, want := range wantVals {
		frame, err := wire.ReadFrame(c)
		require.NoError(t, err)
		status, body, err := wire.DecodeResponse(frame)
		require.NoError(t, err)
		assert.Equal(t, wire.StatusOK, status)
		assert.Equal(t, want, string(body))
	}
}

// TestServerFramerByteSplits delivers a batch of valid frames one byte at a
// time and asserts the same responses arrive as when the batch is sent
// whole (spec §8: framer idempotence under arbitrary byte splits).
func TestServerFramerByteSplits(t *testing.T) {
	dial, stop := testServer(t)
	defer stop()
	c := dial()
	defer c.Close()

	var batch bytes.Buffer
	for _, argv := range [][]string{
		{"set", "x", "42"},
		{"get", "x"},
		{"del", "x"},
	} {
		args := make([][]byte, len(argv))
		for i, a := range argv {
			args[i] = []byte(a)
		}
		require.NoError(t, wire.WriteFrame(&batch, wire.EncodeArgs(args)))
	}

	for _, b := range batch.Bytes() {
		_, err := c.Write([]byte{b})
		require.NoError(t, err)
	}

	wantStatuses := []uint32{wire.StatusOK, wire.StatusOK, wire.StatusOK}
	for i, want := range wantStatuses {
		frame, err := wire.ReadFrame(c)
		require.NoError(t, err)
		status, body, err := wire.DecodeResponse(frame)
		require.NoError(t, err)
		assert.Equal(t, want, status, "response %d", i)
		if i == 1 {
			assert.Equal(t, "42", string(body))
		}
	}
}

func TestServerMalformedRequestClosesConnection(t *testing.T) {
	dial, stop := testServer(t)
	defer stop()
	c := dial()
	defer c.Close()

	// A frame whose payload claims two arguments but carries trailing junk.
	payload := wire.EncodeArgs([][]byte{[]byte("get"), []byte("k")})
	payload = append(payload, 0xFF)
	require.NoError(t, wire.WriteFrame(c, payload))

	_, err := wire.ReadFrame(c)
	assert.Error(t, err, "server should close the connection without replying")
}

func TestServerTTLExpiry(t *testing.T) {
	s := New(Config{})
	var clock uint64 = 1_000_000
	s.nowFn = func() uint64 { return clock }

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = s.serve(ctx, ln) }()
	defer func() { cancel(); <-done }()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	status, _ := doCommand(t, c, "set", "k", "v")
	assert.Equal(t, wire.StatusOK, status)

	status, _ = doCommand(t, c, "pexpire", "k", "50")
	assert.Equal(t, wire.StatusOK, status)

	clock += 100

	// GET performs lazy expiration itself (spec §4.4): no need to wait for
	// the background ExpireTick sweep to observe the key is gone.
	status, _ = doCommand(t, c, "get", "k")
	assert.Equal(t, wire.StatusNX, status)
}
