// Package keyspace owns the top-level Entry index: a single HMap from key
// bytes to Entry, the TTL heap that tracks their expirations, and the
// enumeration list KEYS walks. Every method here assumes single-goroutine
// access — exactly like friggdb's readerWriter owns its blockLists map
// behind its own mutex (friggdb/friggdb.go), except here the "lock" is the
// structural guarantee that only the engine goroutine ever calls in
// (spec §5).
package keyspace

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/grafana/friggkv/internal/hmap"
	"github.com/grafana/friggkv/internal/kvmetrics"
	"github.com/grafana/friggkv/internal/ttlheap"
	"github.com/grafana/friggkv/internal/workerpool"
	"github.com/grafana/friggkv/internal/zset"
)

// ErrWrongType is returned when a command expects one Entry type and finds
// the other (e.g. ZADD against a STRING key).
var ErrWrongType = errors.New("key holds the wrong type for this operation")

// LargeZSetThreshold is the member count above which a removed ZSet's
// teardown is handed to the worker pool instead of happening inline
// (spec §4.4: "e.g. ... exceeds a threshold, say 10,000").
const LargeZSetThreshold = 10_000

// MaxExpirationsPerTick caps how many expired entries ExpireTick removes in
// a single call, so a burst of simultaneous expirations cannot starve
// ordinary traffic (spec §4.4/§5).
const MaxExpirationsPerTick = 2_000

// Config controls keyspace tuning knobs.
type Config struct {
	LargeZSetThreshold    int
	MaxExpirationsPerTick int
	Pool                  *workerpool.Pool
}

// Keyspace is the server's entire in-memory dataset.
type Keyspace struct {
	entries hmap.HMap[*Entry]
	ttl     ttlheap.Heap[*Entry]

	head, tail *Entry // doubly linked list of every live Entry, insertion order

	cfg Config
}

// New returns an empty keyspace.
func New(cfg Config) *Keyspace {
	if cfg.LargeZSetThreshold <= 0 {
		cfg.LargeZSetThreshold = LargeZSetThreshold
	}
	if cfg.MaxExpirationsPerTick <= 0 {
		cfg.MaxExpirationsPerTick = MaxExpirationsPerTick
	}
	return &Keyspace{cfg: cfg}
}

func keyEq(key []byte) hmap.EqualFunc[*Entry] {
	return func(e *Entry) bool { return bytes.Equal(e.Key, key) }
}

// noteSizes refreshes the gauges derived from index sizes after any
// mutation that can change them.
func (ks *Keyspace) noteSizes() {
	kvmetrics.KeyspaceSize.Set(float64(ks.entries.Size()))
	kvmetrics.TTLHeapSize.Set(float64(ks.ttl.Len()))
	if ks.entries.Migrating() {
		kvmetrics.RehashesInFlight.Set(1)
	} else {
		kvmetrics.RehashesInFlight.Set(0)
	}
}

// lookupLive returns the live (non-expired) entry for key, lazily removing
// it first if its TTL has already passed but the active sweep hasn't
// reached it yet.
func (ks *Keyspace) lookupLive(key []byte, nowMs uint64) *Entry {
	n := ks.entries.Lookup(hmap.Hash(key), keyEq(key))
	if n == nil {
		return nil
	}
	e := n.Owner
	if e.expired(nowMs) {
		ks.removeEntry(e)
		kvmetrics.ExpirationsTotal.Inc()
		return nil
	}
	return e
}

func (ks *Keyspace) linkList(e *Entry) {
	e.listPrev, e.listNext = ks.tail, nil
	if ks.tail != nil {
		ks.tail.listNext = e
	} else {
		ks.head = e
	}
	ks.tail = e
}

func (ks *Keyspace) unlinkList(e *Entry) {
	if e.listPrev != nil {
		e.listPrev.listNext = e.listNext
	} else {
		ks.head = e.listNext
	}
	if e.listNext != nil {
		e.listNext.listPrev = e.listPrev
	} else {
		ks.tail = e.listPrev
	}
	e.listPrev, e.listNext = nil, nil
}

// removeEntry unlinks e from every index (HMap, TTL heap, enumeration list)
// and tears its payload down, offloading large ZSets to the pool.
func (ks *Keyspace) removeEntry(e *Entry) {
	ks.entries.Delete(e.hnode.Hcode(), func(candidate *Entry) bool { return candidate == e })
	ks.ttl.Remove(e)
	ks.unlinkList(e)
	ks.noteSizes()

	ks.freePayload(e)
}

func (ks *Keyspace) freePayload(e *Entry) {
	if e.Typ != TypeZSet || e.ZSet == nil {
		return
	}
	if e.approxSize() > ks.cfg.LargeZSetThreshold && ks.cfg.Pool != nil {
		z := e.ZSet
		ks.cfg.Pool.Submit(func() { z.Destroy() })
		return
	}
	e.ZSet.Destroy()
}

// Get returns the string value for key.
func (ks *Keyspace) Get(key []byte, nowMs uint64) (val []byte, found bool, wrongType bool) {
	e := ks.lookupLive(key, nowMs)
	if e == nil {
		return nil, false, false
	}
	if e.Typ != TypeString {
		return nil, true, true
	}
	return e.Str, true, false
}

// Set creates or overwrites a STRING entry, clearing any existing TTL (the
// same semantics a real SET without KEEPTTL has).
func (ks *Keyspace) Set(key, val []byte) {
	n := ks.entries.Lookup(hmap.Hash(key), keyEq(key))
	if n == nil {
		e := newEntry(key)
		e.Typ = TypeString
		e.Str = append([]byte(nil), val...)
		ks.entries.Insert(&e.hnode, hmap.Hash(e.Key))
		ks.linkList(e)
		ks.noteSizes()
		return
	}

	e := n.Owner
	ks.freePayload(e)
	ks.ttl.Remove(e)
	e.Deadline = 0
	e.Typ = TypeString
	e.ZSet = nil
	e.Str = append([]byte(nil), val...)
	ks.noteSizes()
}

// Del removes key entirely, reporting whether it was present.
func (ks *Keyspace) Del(key []byte, nowMs uint64) bool {
	e := ks.lookupLive(key, nowMs)
	if e == nil {
		return false
	}
	ks.removeEntry(e)
	return true
}

// PExpire sets key's TTL to now+ms, or clears it when ms == -1. Reports
// whether key exists.
func (ks *Keyspace) PExpire(key []byte, ms int64, nowMs uint64) (found bool) {
	e := ks.lookupLive(key, nowMs)
	if e == nil {
		return false
	}
	if ms == -1 {
		ks.ttl.Remove(e)
		e.Deadline = 0
		ks.noteSizes()
		return true
	}

	deadline := nowMs + uint64(ms)
	e.Deadline = deadline
	ks.ttl.Update(e, deadline)
	ks.noteSizes()
	return true
}

// PTTLResult enumerates PTTL's three observable outcomes.
type PTTLResult int

const (
	PTTLMissing PTTLResult = iota // key does not exist
	PTTLNone                      // key exists, no TTL
	PTTLHasValue                  // key exists with a TTL; remainingMs is valid
)

// PTTL reports the remaining time-to-live for key.
func (ks *Keyspace) PTTL(key []byte, nowMs uint64) (remainingMs int64, result PTTLResult) {
	e := ks.lookupLive(key, nowMs)
	if e == nil {
		return 0, PTTLMissing
	}
	if !e.HasTTL() {
		return 0, PTTLNone
	}
	// lookupLive already removed e if its deadline had passed, so
	// e.Deadline > nowMs is guaranteed here.
	return int64(e.Deadline - nowMs), PTTLHasValue
}

// Keys returns every live key matching the glob pattern pat (spec §4.6:
// '*' any run, '?' any single byte), sweeping lazily-expired entries it
// encounters along the way.
func (ks *Keyspace) Keys(pat []byte, nowMs uint64) [][]byte {
	var out [][]byte
	e := ks.head
	for e != nil {
		next := e.listNext
		if e.expired(nowMs) {
			ks.removeEntry(e)
			kvmetrics.ExpirationsTotal.Inc()
			e = next
			continue
		}
		if globMatch(pat, e.Key) {
			out = append(out, append([]byte(nil), e.Key...))
		}
		e = next
	}
	return out
}

// DBSize returns the number of live keys (supplemented command; spec §4.6
// lists no such command, but every key removal/insertion already maintains
// the count this reports).
func (ks *Keyspace) DBSize() int {
	return ks.entries.Size()
}

// TTLCount returns the number of entries currently tracked for expiration
// (supplemented command, purely observational).
func (ks *Keyspace) TTLCount() int {
	return ks.ttl.Len()
}

// zsetFor returns the ZSet for key, creating a new one if absent (or if the
// existing entry's TTL has already passed) and the key doesn't already hold
// a STRING.
func (ks *Keyspace) zsetFor(key []byte, nowMs uint64) (*zset.ZSet, error) {
	e := ks.lookupLive(key, nowMs)
	if e == nil {
		e = newEntry(key)
		e.Typ = TypeZSet
		e.ZSet = zset.New()
		ks.entries.Insert(&e.hnode, hmap.Hash(e.Key))
		ks.linkList(e)
		ks.noteSizes()
		return e.ZSet, nil
	}
	if e.Typ != TypeZSet {
		return nil, ErrWrongType
	}
	return e.ZSet, nil
}

// zsetLookup returns the ZSet for an existing key, without creating one.
func (ks *Keyspace) zsetLookup(key []byte, nowMs uint64) (z *zset.ZSet, found bool, wrongType bool) {
	e := ks.lookupLive(key, nowMs)
	if e == nil {
		return nil, false, false
	}
	if e.Typ != TypeZSet {
		return nil, true, true
	}
	return e.ZSet, true, false
}

// ZAdd inserts or repositions member in the sorted set named by key,
// creating the set on demand. Reports whether member was newly created.
func (ks *Keyspace) ZAdd(key, member []byte, score float64, nowMs uint64) (created bool, err error) {
	z, err := ks.zsetFor(key, nowMs)
	if err != nil {
		return false, err
	}
	return z.Insert(member, score), nil
}

// ZRem removes member from key's sorted set, reporting whether it was
// present.
func (ks *Keyspace) ZRem(key, member []byte, nowMs uint64) (removed bool, err error) {
	z, found, wrongType := ks.zsetLookup(key, nowMs)
	if wrongType {
		return false, ErrWrongType
	}
	if !found {
		return false, nil
	}
	n := z.Lookup(member)
	if n == nil {
		return false, nil
	}
	z.Delete(n)
	return true, nil
}

// ZScore returns member's score within key's sorted set.
func (ks *Keyspace) ZScore(key, member []byte, nowMs uint64) (score float64, found bool, err error) {
	z, exists, wrongType := ks.zsetLookup(key, nowMs)
	if wrongType {
		return 0, false, ErrWrongType
	}
	if !exists {
		return 0, false, nil
	}
	n := z.Lookup(member)
	if n == nil {
		return 0, false, nil
	}
	return n.Score, true, nil
}

// ZCard returns key's sorted-set cardinality (supplemented command; exists
// to give the HMap/AVL dual-invariant — hmap.size == tree.count — a command
// a client can assert through, not just something internal tests check).
func (ks *Keyspace) ZCard(key []byte, nowMs uint64) (n int, found bool, err error) {
	z, exists, wrongType := ks.zsetLookup(key, nowMs)
	if wrongType {
		return 0, false, ErrWrongType
	}
	if !exists {
		return 0, false, nil
	}
	return z.Len(), true, nil
}

// ZPair is one (name, score) result row from ZQuery.
type ZPair struct {
	Name  []byte
	Score float64
}

// ZQuery implements the seek_ge + repeated offset(+1) range-query protocol
// (spec §4.3): find the first member >= (minScore, minName), skip offset
// more, then collect up to limit results.
func (ks *Keyspace) ZQuery(key []byte, minScore float64, minName []byte, offset, limit int64, nowMs uint64) (rows []ZPair, err error) {
	z, exists, wrongType := ks.zsetLookup(key, nowMs)
	if wrongType {
		return nil, ErrWrongType
	}
	if !exists || limit <= 0 {
		return nil, nil
	}

	n := z.SeekGE(minScore, minName)
	for i := int64(0); i < offset && n != nil; i++ {
		n = z.Offset(n, 1)
	}

	for int64(len(rows)) < limit && n != nil {
		rows = append(rows, ZPair{Name: n.Name, Score: n.Score})
		n = z.Offset(n, 1)
	}
	return rows, nil
}

// NextDeadline reports the soonest expiration in the TTL heap, if any.
func (ks *Keyspace) NextDeadline() (deadline uint64, ok bool) {
	d, _, ok := ks.ttl.PeekMin()
	return d, ok
}

// ExpireTick removes every entry whose deadline has passed as of nowMs, up
// to the configured per-tick cap, and returns how many were removed.
func (ks *Keyspace) ExpireTick(nowMs uint64) int {
	removed := 0
	for removed < ks.cfg.MaxExpirationsPerTick {
		deadline, e, ok := ks.ttl.PeekMin()
		if !ok || deadline > nowMs {
			break
		}
		ks.removeEntry(e)
		kvmetrics.ExpirationsTotal.Inc()
		removed++
	}
	return removed
}

// globMatch implements the spec's '*'/'?' matcher directly over key bytes
// (no path semantics, unlike path.Match/filepath.Match — see DESIGN.md).
func globMatch(pat, name []byte) bool {
	return globMatchAt(pat, name, 0, 0)
}

func globMatchAt(pat, name []byte, pi, ni int) bool {
	for pi < len(pat) {
		switch pat[pi] {
		case '*':
			// Collapse runs of '*' and try every possible split.
			for pi < len(pat) && pat[pi] == '*' {
				pi++
			}
			if pi == len(pat) {
				return true
			}
			for k := ni; k <= len(name); k++ {
				if globMatchAt(pat, name, pi, k) {
					return true
				}
			}
			return false
		case '?':
			if ni >= len(name) {
				return false
			}
			pi++
			ni++
		default:
			if ni >= len(name) || pat[pi] != name[ni] {
				return false
			}
			pi++
			ni++
		}
	}
	return ni == len(name)
}
