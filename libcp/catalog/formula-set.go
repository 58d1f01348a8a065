package catalog

import (
	"bytes"
	"hash/maphash"

	"github.com/2x3systems/cuiping/gocp"
)

// DefaultPoolSz is the default size of each FormulaSet key pool.
const DefaultPoolSz = 32 * 1024

// FormulaSetOpts specifies a FormulaSet.
type FormulaSetOpts struct {
	PoolSz int // 0 denotes DefaultPoolSz (32k)
}

// FormulaSet drops compiled formulas whose drawing equals one already seen, regardless of
// source spelling or group positions.
type FormulaSet struct {
	hashMap   map[uint64][]byte
	hasher    maphash.Hash
	bufPool   []byte
	bufPoolSz int
	keyBuf    []byte
	opts      FormulaSetOpts
}

// NewFormulaSet returns an empty set.
func NewFormulaSet(opts FormulaSetOpts) *FormulaSet {
	if opts.PoolSz <= 0 {
		opts.PoolSz = DefaultPoolSz
	}
	return &FormulaSet{
		hashMap: make(map[uint64][]byte),
		opts:    opts,
	}
}

// Reset empties the set.
func (set *FormulaSet) Reset() {
	set.bufPoolSz = 0
	for k := range set.hashMap {
		delete(set.hashMap, k)
	}
}

// Len returns the number of distinct trees added.
func (set *FormulaSet) Len() int {
	return len(set.hashMap)
}

// TryAdd returns true if tree was not yet in the set (and adds it).
func (set *FormulaSet) TryAdd(tree *gocp.ExpandedTree) bool {
	set.keyBuf = AppendCanonicalKey(set.keyBuf[:0], tree)
	key := set.keyBuf

	set.hasher.Reset()
	set.hasher.Write(key)
	hash := set.hasher.Sum64()

	existing, found := set.hashMap[hash]
	for found {
		if bytes.Equal(existing, key) {
			return false
		}
		hash++
		existing, found = set.hashMap[hash]
	}

	// New entry: copy the key into the pool, starting a new pool when this one is full
	pos := set.bufPoolSz
	itemLen := len(key)
	if pos+itemLen > cap(set.bufPool) {
		allocSz := set.opts.PoolSz
		if itemLen > allocSz {
			allocSz = itemLen
		}
		set.bufPool = make([]byte, allocSz)
		set.bufPoolSz = 0
		pos = 0
	}

	set.hashMap[hash] = append(set.bufPool[pos:pos], key...)
	set.bufPoolSz += itemLen
	return true
}
