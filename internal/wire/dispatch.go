package wire

import (
	"strconv"

	"github.com/grafana/friggkv/internal/keyspace"
	"github.com/grafana/friggkv/internal/kvmetrics"
)

// Status codes carried in a response frame.
const (
	StatusOK  uint32 = 0
	StatusErr uint32 = 1
	StatusNX  uint32 = 2 // key/member did not exist
)

// Dispatch executes a single parsed command against ks and returns the
// status and reply value to write back. It is the only place command names
// are recognized; everything upstream (framing, argv decoding) is
// command-agnostic.
func Dispatch(ks *keyspace.Keyspace, argv [][]byte, nowMs uint64) (status uint32, reply Value) {
	if len(argv) == 0 {
		return errReply("empty command")
	}

	cmd := string(argv[0])
	status, reply = dispatchCommand(ks, cmd, argv[1:], nowMs)
	kvmetrics.CommandsTotal.WithLabelValues(commandLabel(cmd), statusLabel(status)).Inc()
	return status, reply
}

// commandLabel collapses unrecognized command names into one label value so
// arbitrary client input can't grow the metric's cardinality.
func commandLabel(cmd string) string {
	switch cmd {
	case "get", "set", "del", "pexpire", "pttl", "keys",
		"zadd", "zrem", "zscore", "zquery", "zcard",
		"dbsize", "ttlcount":
		return cmd
	default:
		return "unknown"
	}
}

func statusLabel(status uint32) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusNX:
		return "nx"
	default:
		return "err"
	}
}

func errReply(msg string) (uint32, Value) {
	return StatusErr, Str([]byte(msg))
}

// dispatchCommand matches command names case-sensitively; only the
// lower-case spellings in the table are commands.
func dispatchCommand(ks *keyspace.Keyspace, cmd string, args [][]byte, nowMs uint64) (uint32, Value) {
	switch cmd {
	case "get":
		return cmdGet(ks, args, nowMs)
	case "set":
		return cmdSet(ks, args)
	case "del":
		return cmdDel(ks, args, nowMs)
	case "pexpire":
		return cmdPExpire(ks, args, nowMs)
	case "pttl":
		return cmdPTTL(ks, args, nowMs)
	case "keys":
		return cmdKeys(ks, args, nowMs)
	case "zadd":
		return cmdZAdd(ks, args, nowMs)
	case "zrem":
		return cmdZRem(ks, args, nowMs)
	case "zscore":
		return cmdZScore(ks, args, nowMs)
	case "zquery":
		return cmdZQuery(ks, args, nowMs)
	case "zcard":
		return cmdZCard(ks, args, nowMs)
	case "dbsize":
		return cmdDBSize(ks, args)
	case "ttlcount":
		return cmdTTLCount(ks, args)
	default:
		return errReply("unknown command " + cmd)
	}
}

func cmdGet(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 1 {
		return errReply("GET expects 1 argument")
	}
	val, found, wrongType := ks.Get(args[0], nowMs)
	if wrongType {
		return errReply("WRONGTYPE key holds a sorted set")
	}
	if !found {
		return StatusNX, Nil()
	}
	return StatusOK, Str(val)
}

func cmdSet(ks *keyspace.Keyspace, args [][]byte) (uint32, Value) {
	if len(args) != 2 {
		return errReply("SET expects 2 arguments")
	}
	ks.Set(args[0], args[1])
	return StatusOK, Nil()
}

func cmdDel(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 1 {
		return errReply("DEL expects 1 argument")
	}
	if ks.Del(args[0], nowMs) {
		return StatusOK, Int(1)
	}
	return StatusOK, Int(0)
}

func cmdPExpire(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 2 {
		return errReply("PEXPIRE expects 2 arguments")
	}
	ms, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return errReply("PEXPIRE: invalid ttl")
	}
	if !ks.PExpire(args[0], ms, nowMs) {
		return StatusNX, Nil()
	}
	return StatusOK, Nil()
}

func cmdPTTL(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 1 {
		return errReply("PTTL expects 1 argument")
	}
	remaining, result := ks.PTTL(args[0], nowMs)
	switch result {
	case keyspace.PTTLMissing:
		return StatusNX, Int(-2)
	case keyspace.PTTLNone:
		return StatusOK, Int(-1)
	default:
		return StatusOK, Int(remaining)
	}
}

func cmdKeys(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 1 {
		return errReply("KEYS expects 1 argument")
	}

	keys := ks.Keys(args[0], nowMs)
	vals := make([]Value, len(keys))
	for i, k := range keys {
		vals[i] = Str(k)
	}
	return StatusOK, Arr(vals)
}

func cmdZAdd(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 3 {
		return errReply("ZADD expects 3 arguments: key score member")
	}
	score, err := strconv.ParseFloat(string(args[1]), 64)
	if err != nil {
		return errReply("ZADD: invalid score")
	}
	created, err := ks.ZAdd(args[0], args[2], score, nowMs)
	if err != nil {
		return errReply(err.Error())
	}
	if created {
		return StatusOK, Int(1)
	}
	return StatusOK, Int(0)
}

func cmdZRem(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 2 {
		return errReply("ZREM expects 2 arguments")
	}
	removed, err := ks.ZRem(args[0], args[1], nowMs)
	if err != nil {
		return errReply(err.Error())
	}
	if removed {
		return StatusOK, Int(1)
	}
	return StatusOK, Int(0)
}

func cmdZScore(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 2 {
		return errReply("ZSCORE expects 2 arguments")
	}
	score, found, err := ks.ZScore(args[0], args[1], nowMs)
	if err != nil {
		return errReply(err.Error())
	}
	if !found {
		return StatusNX, Nil()
	}
	return StatusOK, Double(score)
}

func cmdZQuery(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 5 {
		return errReply("ZQUERY expects 5 arguments: key minscore minname offset limit")
	}
	minScore, err := strconv.ParseFloat(string(args[1]), 64)
	if err != nil {
		return errReply("ZQUERY: invalid minscore")
	}
	offset, err := strconv.ParseInt(string(args[3]), 10, 64)
	if err != nil {
		return errReply("ZQUERY: invalid offset")
	}
	limit, err := strconv.ParseInt(string(args[4]), 10, 64)
	if err != nil {
		return errReply("ZQUERY: invalid limit")
	}

	rows, err := ks.ZQuery(args[0], minScore, args[2], offset, limit, nowMs)
	if err != nil {
		return errReply(err.Error())
	}

	vals := make([]Value, 0, len(rows)*2)
	for _, row := range rows {
		vals = append(vals, Double(row.Score), Str(row.Name))
	}
	return StatusOK, Arr(vals)
}

func cmdZCard(ks *keyspace.Keyspace, args [][]byte, nowMs uint64) (uint32, Value) {
	if len(args) != 1 {
		return errReply("ZCARD expects 1 argument")
	}
	n, found, err := ks.ZCard(args[0], nowMs)
	if err != nil {
		return errReply(err.Error())
	}
	if !found {
		return StatusNX, Int(0)
	}
	return StatusOK, Int(int64(n))
}

func cmdDBSize(ks *keyspace.Keyspace, args [][]byte) (uint32, Value) {
	if len(args) != 0 {
		return errReply("DBSIZE expects 0 arguments")
	}
	return StatusOK, Int(int64(ks.DBSize()))
}

func cmdTTLCount(ks *keyspace.Keyspace, args [][]byte) (uint32, Value) {
	if len(args) != 0 {
		return errReply("TTLCOUNT expects 0 arguments")
	}
	return StatusOK, Int(int64(ks.TTLCount()))
}
