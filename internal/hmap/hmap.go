// Package hmap implements a progressively-rehashing chained hash table.
//
// The table never stops the world to grow: insert() may start a migration,
// but the actual work of moving chains out of the old table happens a few
// buckets at a time, piggy-backed on whichever operation (lookup, insert,
// delete) happens to run next. This bounds the worst-case cost of any single
// operation to O(K) on top of its own O(1) amortized cost, at the price of
// every operation needing to check both tables while a migration is live.
//
// Node is intrusive in the sense that matters for this spec: it carries the
// owner (a generic type parameter, typically *Entry or *ZNode) directly, so
// indexing a value costs no extra allocation. Go has no container_of, so
// rather than doing unsafe pointer arithmetic back from a bare link node,
// the owner reference is carried on the node itself.
package hmap

import "github.com/cespare/xxhash/v2"

// helpChunk is the number of non-empty buckets migrated per operation while
// a rehash is in flight (spec: K=128).
const helpChunk = 128

// maxLoadFactor triggers a migration once newer.size/(newer.mask+1) exceeds it.
const maxLoadFactor = 8

// initialBuckets is the bucket count newer is created with on its first use.
const initialBuckets = 4

// Node is an intrusive chain link carrying the owning value.
type Node[T any] struct {
	next  *Node[T]
	hcode uint64
	Owner T
}

// Hcode returns the hash code the node was inserted with.
func (n *Node[T]) Hcode() uint64 { return n.hcode }

// EqualFunc reports whether candidate's owner is the one being searched for.
// HMap only calls it after confirming the hash codes already match.
type EqualFunc[T any] func(candidate T) bool

// Hash is exposed so callers can compute the same hash code HMap would use
// internally, letting them hash a key once and reuse it across lookup/insert.
func Hash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

type table[T any] struct {
	buckets []*Node[T]
	mask    uint64
	size    int
}

func newTable[T any](n int) table[T] {
	if n == 0 {
		return table[T]{}
	}
	return table[T]{buckets: make([]*Node[T], n), mask: uint64(n - 1)}
}

func (t *table[T]) bucketFor(hcode uint64) int {
	if t.buckets == nil {
		return -1
	}
	return int(hcode & t.mask)
}

// HMap is a two-table progressive-rehash hash map.
type HMap[T any] struct {
	newer      table[T]
	older      table[T]
	migratePos uint64
}

// Size returns the total number of nodes live in the map.
func (m *HMap[T]) Size() int {
	return m.newer.size + m.older.size
}

// Clear drops every node without freeing them (ownership returns to the
// caller, same as Delete).
func (m *HMap[T]) Clear() {
	m.newer = table[T]{}
	m.older = table[T]{}
	m.migratePos = 0
}

// Lookup finds the node with hash code hcode whose owner satisfies eq.
func (m *HMap[T]) Lookup(hcode uint64, eq EqualFunc[T]) *Node[T] {
	m.helpRehashing()

	if n := lookupIn(&m.newer, hcode, eq); n != nil {
		return n
	}
	return lookupIn(&m.older, hcode, eq)
}

func lookupIn[T any](t *table[T], hcode uint64, eq EqualFunc[T]) *Node[T] {
	idx := t.bucketFor(hcode)
	if idx < 0 {
		return nil
	}
	for n := t.buckets[idx]; n != nil; n = n.next {
		if n.hcode == hcode && eq(n.Owner) {
			return n
		}
	}
	return nil
}

// Insert pushes node at the head of its bucket in newer, initializing newer
// lazily and kicking off a migration if the load factor is exceeded.
func (m *HMap[T]) Insert(node *Node[T], hcode uint64) {
	m.helpRehashing()

	if m.newer.buckets == nil {
		m.newer = newTable[T](initialBuckets)
	}

	node.hcode = hcode
	idx := m.newer.bucketFor(hcode)
	node.next = m.newer.buckets[idx]
	m.newer.buckets[idx] = node
	m.newer.size++

	if float64(m.newer.size)/float64(m.newer.mask+1) > maxLoadFactor {
		m.startRehash()
	}
}

func (m *HMap[T]) startRehash() {
	m.older = m.newer
	m.newer = newTable[T](int(m.older.mask+1) * 2)
	m.migratePos = 0
}

// Delete removes and returns the node whose owner satisfies eq, or nil if
// not found. The node is not freed; ownership returns to the caller.
func (m *HMap[T]) Delete(hcode uint64, eq EqualFunc[T]) *Node[T] {
	m.helpRehashing()

	if n := deleteFrom(&m.newer, hcode, eq); n != nil {
		return n
	}
	return deleteFrom(&m.older, hcode, eq)
}

func deleteFrom[T any](t *table[T], hcode uint64, eq EqualFunc[T]) *Node[T] {
	idx := t.bucketFor(hcode)
	if idx < 0 {
		return nil
	}

	var prev *Node[T]
	for n := t.buckets[idx]; n != nil; n = n.next {
		if n.hcode == hcode && eq(n.Owner) {
			if prev == nil {
				t.buckets[idx] = n.next
			} else {
				prev.next = n.next
			}
			n.next = nil
			t.size--
			return n
		}
		prev = n
	}
	return nil
}

// helpRehashing moves up to helpChunk non-empty buckets from older into
// newer, advancing migratePos. Once older is drained it is freed.
func (m *HMap[T]) helpRehashing() {
	if m.older.buckets == nil {
		return
	}

	moved := 0
	for moved < helpChunk && m.migratePos < uint64(len(m.older.buckets)) {
		node := m.older.buckets[m.migratePos]
		if node == nil {
			m.migratePos++
			continue
		}

		for node != nil {
			next := node.next
			idx := m.newer.bucketFor(node.hcode)
			node.next = m.newer.buckets[idx]
			m.newer.buckets[idx] = node

			m.older.size--
			m.newer.size++
			node = next
		}
		m.older.buckets[m.migratePos] = nil
		m.migratePos++
		moved++
	}

	if m.older.size == 0 {
		m.older = table[T]{}
		m.migratePos = 0
	}
}

// Migrating reports whether a rehash is currently in progress, for tests
// and metrics.
func (m *HMap[T]) Migrating() bool {
	return m.older.buckets != nil
}
