// Package zset implements a sorted set: a name-indexed hash map paired with
// an order-statistic AVL tree keyed by (score, name), the same "one element,
// two indexes" shape friggdb uses to pair a byte-addressable object store
// with a sorted record index (friggdb/encoding/record.go).
package zset

import (
	"bytes"

	"github.com/grafana/friggkv/internal/avltree"
	"github.com/grafana/friggkv/internal/hmap"
)

// ZNode is a single sorted-set member. It participates in exactly one HMap
// (by name) and one AVL tree ((score, name) order) at a time, both owned by
// its enclosing ZSet.
type ZNode struct {
	hnode hmap.Node[*ZNode]
	anode avltree.Node[*ZNode]

	Name  []byte
	Score float64
}

func zless(a, b *ZNode) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return bytes.Compare(a.Name, b.Name) < 0
}

// ZSet is a sorted set of (name, score) pairs.
type ZSet struct {
	byName *hmap.HMap[*ZNode]
	byRank *avltree.Tree[*ZNode]
}

// New returns an empty sorted set.
func New() *ZSet {
	return &ZSet{
		byName: &hmap.HMap[*ZNode]{},
		byRank: avltree.New[*ZNode](zless),
	}
}

// Len reports the number of members. Invariant: always equal to the size of
// the name index, since every ZNode lives in both indexes or neither.
func (z *ZSet) Len() int {
	return z.byRank.Len()
}

// Lookup finds a member by name.
func (z *ZSet) Lookup(name []byte) *ZNode {
	h := hmap.Hash(name)
	n := z.byName.Lookup(h, func(candidate *ZNode) bool {
		return bytes.Equal(candidate.Name, name)
	})
	if n == nil {
		return nil
	}
	return n.Owner
}

// Insert adds name with score if absent, or repositions it if score changed.
// It reports whether a new member was created (false means name already
// existed, whether or not its score changed).
func (z *ZSet) Insert(name []byte, score float64) bool {
	if existing := z.Lookup(name); existing != nil {
		if existing.Score == score {
			return false
		}
		z.byRank.Delete(&existing.anode)
		existing.Score = score
		z.byRank.Insert(&existing.anode)
		return false
	}

	n := &ZNode{Name: append([]byte(nil), name...), Score: score}
	n.hnode.Owner = n
	n.anode.Owner = n

	z.byName.Insert(&n.hnode, hmap.Hash(n.Name))
	z.byRank.Insert(&n.anode)
	return true
}

// Delete removes a member from both indexes.
func (z *ZSet) Delete(n *ZNode) {
	z.byName.Delete(n.hnode.Hcode(), func(candidate *ZNode) bool {
		return candidate == n
	})
	z.byRank.Delete(&n.anode)
}

// SeekGE returns the first member whose (score, name) is >= the given key,
// or nil if every member sorts before it.
func (z *ZSet) SeekGE(score float64, name []byte) *ZNode {
	target := &ZNode{Score: score, Name: name}
	found := z.byRank.SeekGE(func(owner *ZNode) int {
		switch {
		case zless(owner, target):
			return -1
		case zless(target, owner):
			return 1
		default:
			return 0
		}
	})
	if found == nil {
		return nil
	}
	return found.Owner
}

// Offset returns the member k positions after n in sorted order, or nil if
// that position is out of range.
func (z *ZSet) Offset(n *ZNode, k int64) *ZNode {
	found := z.byRank.Offset(&n.anode, k)
	if found == nil {
		return nil
	}
	return found.Owner
}

// Destroy tears the set down explicitly: an O(n) walk clearing every node's
// AVL tree links, then dropping the name index's tables (the hash-chain
// links inside the nodes are left as they are). Callers with a large set
// use this to make the
// teardown cost schedulable (e.g. on a background worker) instead of
// leaving an arbitrarily large graph for the garbage collector to find on
// its own schedule.
func (z *ZSet) Destroy() {
	z.byRank.Destroy()
	z.byName.Clear()
}
