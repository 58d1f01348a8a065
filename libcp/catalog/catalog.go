package catalog

import (
	"runtime"
	"sync"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/dgraph-io/badger/v3"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

/***

Catalog database format:

	gCatalogStateKey => CatalogState (MajorVers, MinorVers, Count)

	gEntryPrefix, Source  => Entry (see encoding.go)

Entries are keyed by their exact source text, so iteration is in source order.

***/

var (
	gCatalogStateKey = []byte{0x00, 0x00, 0x01}
	gEntryPrefix     = []byte{0x01}
)

const (
	catalogMajorVers = 2023
	catalogMinorVers = 1
)

// Opts specifies how a Catalog is opened.
type Opts struct {
	DbPathName string // "" denotes an in-memory catalog
	ReadOnly   bool
}

// CatalogState is the bookkeeping record stored alongside the entries.
type CatalogState struct {
	MajorVers uint32
	MinorVers uint32
	Count     uint64
}

// Catalog is a badger-backed store of compiled formulas keyed by source text.
//
// A Catalog is safe for concurrent use.
type Catalog struct {
	mu         sync.Mutex
	db         *badger.DB
	readOnly   bool
	state      CatalogState
	stateDirty bool
}

// Open opens (or creates) the catalog at opts.DbPathName.
func Open(opts Opts) (*Catalog, error) {
	cat := &Catalog{
		readOnly: opts.ReadOnly,
	}

	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false

	// Badger for windows currently does not support read-only mode
	if runtime.GOOS == "windows" {
		dbOpts.ReadOnly = false
	}

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(ErrBadCatalogParam, "DbPathName must be specified for read-only catalog")
		}
		dbOpts.InMemory = true
	}

	var err error
	cat.db, err = badger.Open(dbOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening catalog %q", opts.DbPathName)
	}

	err = cat.loadState()
	if err == badger.ErrKeyNotFound {
		err = nil
		cat.stateDirty = true
		cat.state.MajorVers = catalogMajorVers
		cat.state.MinorVers = catalogMinorVers
	}
	if err == nil && (cat.state.MajorVers != catalogMajorVers || cat.state.MinorVers != catalogMinorVers) {
		err = errors.Wrapf(ErrIncompatible, "found version %d.%d", cat.state.MajorVers, cat.state.MinorVers)
	}
	if err != nil {
		cat.db.Close()
		return nil, err
	}

	klog.V(2).Infof("catalog: opened %q with %d entries", opts.DbPathName, cat.state.Count)
	return cat, nil
}

func (cat *Catalog) loadState() error {
	return cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gCatalogStateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cat.state.Unmarshal(val)
		})
	})
}

func (cat *Catalog) flushState() error {
	if !cat.stateDirty || cat.readOnly {
		return nil
	}
	err := cat.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gCatalogStateKey, cat.state.Marshal())
	})
	if err != nil {
		return errors.Wrap(err, "flushing catalog state")
	}
	cat.stateDirty = false
	return nil
}

// Close flushes the catalog state and closes the db.
func (cat *Catalog) Close() error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	if cat.db == nil {
		return nil
	}
	err := cat.flushState()
	if closeErr := cat.db.Close(); err == nil {
		err = closeErr
	}
	cat.db = nil
	return err
}

// Count returns the number of entries in the catalog.
func (cat *Catalog) Count() uint64 {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	return cat.state.Count
}

// IsReadOnly reports if the catalog was opened read-only.
func (cat *Catalog) IsReadOnly() bool {
	return cat.readOnly
}

func formEntryKey(key []byte, src string) []byte {
	key = append(key, gEntryPrefix...)
	return append(key, src...)
}

// TryAdd stores tree under src and returns true, or returns false if src is already catalogued.
func (cat *Catalog) TryAdd(src string, tree *gocp.ExpandedTree) (bool, error) {
	if cat.readOnly {
		return false, ErrReadOnly
	}

	cat.mu.Lock()
	defer cat.mu.Unlock()

	key := formEntryKey(nil, src)
	added := false
	err := cat.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		entry := Entry{
			Seq:    cat.state.Count + 1,
			Source: src,
			Tree:   tree,
		}
		if err = txn.Set(key, MarshalEntry(nil, &entry)); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "adding %q", src)
	}

	if added {
		cat.state.Count++
		cat.stateDirty = true
		klog.V(3).Infof("catalog: added #%d %q", cat.state.Count, src)
	}
	return added, nil
}

// Lookup returns the entry stored under src, or ErrNotFound.
func (cat *Catalog) Lookup(src string) (*Entry, error) {
	var entry *Entry
	err := cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(formEntryKey(nil, src))
		if err == badger.ErrKeyNotFound {
			return errors.Wrapf(ErrNotFound, "%q", src)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = UnmarshalEntry(val)
			return err
		})
	})
	return entry, err
}

// Select calls onHit with each entry whose source starts with prefix, in source order.
//
// Enumeration stops when there are no more matches or if onHit returns false.
func (cat *Catalog) Select(prefix string, onHit func(e *Entry) bool) error {
	return cat.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         formEntryKey(nil, prefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry *Entry
			err := it.Item().Value(func(val []byte) (err error) {
				entry, err = UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if !onHit(entry) {
				break
			}
		}
		return nil
	})
}

// Marshal encodes the state record.
func (state *CatalogState) Marshal() []byte {
	buf := proto.NewBuffer(nil)
	buf.EncodeVarint(uint64(state.MajorVers))
	buf.EncodeVarint(uint64(state.MinorVers))
	buf.EncodeVarint(state.Count)
	return buf.Bytes()
}

// Unmarshal decodes a state record written by Marshal.
func (state *CatalogState) Unmarshal(val []byte) error {
	buf := proto.NewBuffer(val)
	var vals [3]uint64
	for i := range vals {
		v, err := buf.DecodeVarint()
		if err != nil {
			return errors.Wrap(ErrUnmarshal, "catalog state")
		}
		vals[i] = v
	}
	state.MajorVers = uint32(vals[0])
	state.MinorVers = uint32(vals[1])
	state.Count = vals[2]
	return nil
}
