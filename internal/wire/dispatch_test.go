package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/friggkv/internal/keyspace"
)

func do(ks *keyspace.Keyspace, argv ...string) (uint32, Value) {
	args := make([][]byte, len(argv))
	for i, a := range argv {
		args[i] = []byte(a)
	}
	return Dispatch(ks, args, 0)
}

func TestDispatchUnknownCommand(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	status, _ := do(ks, "flushall")
	assert.Equal(t, StatusErr, status)
}

// Command names are case-sensitive lower-case; an upper-case spelling is an
// unknown command, not an alias.
func TestDispatchCommandNamesAreCaseSensitive(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	status, _ := do(ks, "SET", "k", "v")
	assert.Equal(t, StatusErr, status)

	status, _ = do(ks, "set", "k", "v")
	assert.Equal(t, StatusOK, status)
}

func TestDispatchArityMismatch(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	for _, argv := range [][]string{
		{"get"},
		{"get", "a", "b"},
		{"set", "only-key"},
		{"pexpire", "k"},
		{"zadd", "z", "1.0"},
		{"zquery", "z", "1.0", "", "0"},
		{"keys"},
	} {
		status, _ := do(ks, argv...)
		assert.Equal(t, StatusErr, status, "argv=%v", argv)
	}
}

func TestDispatchWrongTypeIsErrNotClose(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	status, _ := do(ks, "set", "k", "v")
	require.Equal(t, StatusOK, status)

	status, _ = do(ks, "zadd", "k", "1.0", "m")
	assert.Equal(t, StatusErr, status)

	// The keyspace is untouched by the failed command.
	status, val := do(ks, "get", "k")
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "v", string(val.Str))
}

func TestDispatchBadNumericLiteral(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	status, _ := do(ks, "pexpire", "k", "soon")
	assert.Equal(t, StatusErr, status)

	status, _ = do(ks, "zadd", "z", "not-a-score", "m")
	assert.Equal(t, StatusErr, status)
}

func TestDispatchPTTLStatuses(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})

	status, val := do(ks, "pttl", "missing")
	assert.Equal(t, StatusNX, status)
	assert.Equal(t, int64(-2), val.Int)

	_, _ = do(ks, "set", "k", "v")
	status, val = do(ks, "pttl", "k")
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(-1), val.Int)

	_, _ = do(ks, "pexpire", "k", "5000")
	status, val = do(ks, "pttl", "k")
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(5000), val.Int)
}

func TestDispatchZQueryPairs(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	for i, m := range []string{"a", "b", "c", "d", "e"} {
		status, _ := do(ks, "zadd", "z", []string{"1", "2", "3", "4", "5"}[i], m)
		require.Equal(t, StatusOK, status, "zadd %s", m)
	}

	status, val := do(ks, "zquery", "z", "2", "", "0", "10")
	require.Equal(t, StatusOK, status)
	require.Equal(t, TagArr, val.Tag)
	require.Len(t, val.Arr, 8) // 4 members as (score, name) pairs

	var names []string
	var scores []float64
	for i := 0; i < len(val.Arr); i += 2 {
		scores = append(scores, val.Arr[i].Double)
		names = append(names, string(val.Arr[i+1].Str))
	}
	assert.Equal(t, []string{"b", "c", "d", "e"}, names)
	assert.Equal(t, []float64{2, 3, 4, 5}, scores)
}

func TestDispatchZCard(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})

	status, _ := do(ks, "zcard", "z")
	assert.Equal(t, StatusNX, status)

	_, _ = do(ks, "zadd", "z", "1.0", "a")
	_, _ = do(ks, "zadd", "z", "2.0", "b")
	status, val := do(ks, "zcard", "z")
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(2), val.Int)
}

func TestDispatchDBSizeAndTTLCount(t *testing.T) {
	ks := keyspace.New(keyspace.Config{})
	_, _ = do(ks, "set", "a", "1")
	_, _ = do(ks, "set", "b", "2")
	_, _ = do(ks, "pexpire", "a", "1000")

	status, val := do(ks, "dbsize")
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(2), val.Int)

	status, val = do(ks, "ttlcount")
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(1), val.Int)
}
