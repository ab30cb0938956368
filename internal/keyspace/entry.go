package keyspace

import (
	"github.com/grafana/friggkv/internal/hmap"
	"github.com/grafana/friggkv/internal/ttlheap"
	"github.com/grafana/friggkv/internal/zset"
)

// Type distinguishes the two payload shapes a keyspace Entry can hold.
type Type int

const (
	TypeString Type = iota
	TypeZSet
)

func (t Type) String() string {
	if t == TypeZSet {
		return "zset"
	}
	return "string"
}

// Entry is the top-level keyspace record: a key bound to either a string
// value or a ZSet, an index node into the keyspace's HMap, an (optional)
// slot in the TTL heap, and a link into the keyspace's enumeration list —
// the "doubly linked list header" and "heap index back-pointer" the data
// model calls for (spec §3), rendered without container_of via typed node
// embedding (see internal/hmap, internal/ttlheap).
type Entry struct {
	Key  []byte
	Typ  Type
	Str  []byte
	ZSet *zset.ZSet

	// Deadline is only meaningful while heapIndex != ttlheap.NoIndex; it is
	// kept denormalized onto the Entry (alongside the TTL heap's own copy)
	// so lazy-expiration checks on the read path don't need a reverse
	// lookup from heap slot back to deadline.
	Deadline uint64

	hnode     hmap.Node[*Entry]
	heapIndex int

	listPrev, listNext *Entry
}

func newEntry(key []byte) *Entry {
	e := &Entry{Key: append([]byte(nil), key...), heapIndex: ttlheap.NoIndex}
	e.hnode.Owner = e
	return e
}

// HeapIndex and SetHeapIndex implement ttlheap.Indexed.
func (e *Entry) HeapIndex() int     { return e.heapIndex }
func (e *Entry) SetHeapIndex(i int) { e.heapIndex = i }

// HasTTL reports whether this entry currently holds a TTL heap slot.
func (e *Entry) HasTTL() bool { return e.heapIndex != ttlheap.NoIndex }

// expired reports whether the entry's deadline has passed as of now (ms).
func (e *Entry) expired(nowMs uint64) bool {
	return e.HasTTL() && e.Deadline <= nowMs
}

// approxSize is a cheap proxy for "large payload" used to decide whether a
// removed entry's teardown is offloaded to the worker pool (spec §4.4: "a
// ZSet whose size exceeds a threshold").
func (e *Entry) approxSize() int {
	if e.Typ == TypeZSet && e.ZSet != nil {
		return e.ZSet.Len()
	}
	return 1
}
