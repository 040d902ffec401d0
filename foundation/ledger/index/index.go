// Package index keeps a LevelDB index of the ledger entries a mirror has
// synced, together with the log position the index has caught up to.
package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout.
const (
	entryPrefix  = "entry:"
	labelPrefix  = "label:"
	lastPosition = "meta:last_position"
)

// Entry is the indexed form of a ledger entry.
type Entry struct {
	Label            string        `json:"label"`
	Key              hexutil.Bytes `json:"key"`
	Value            hexutil.Bytes `json:"value"`
	BlockTimestampNs uint64        `json:"block_timestamp_ns"`
	BlockHash        hexutil.Bytes `json:"block_hash"`
	BlockOffset      uint64        `json:"block_offset"`
	Index            uint32        `json:"index"`
}

// EntrySource walks committed entries from a log position.
type EntrySource interface {
	Entries(from uint64, fn func(store.LedgerEntry) error) error
}

// =============================================================================

// Index is a LevelDB backed entry index.
type Index struct {
	db *leveldb.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Index, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{db: db}, nil
}

// OpenStorage opens the index over a goleveldb storage.
func OpenStorage(stor storage.Storage) (*Index, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// LastPosition returns the log position the index has caught up to. Zero
// means nothing was indexed yet.
func (idx *Index) LastPosition() (uint64, error) {
	v, err := idx.db.Get([]byte(lastPosition), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("load last position: %w", err)
	}

	if len(v) != 8 {
		return 0, fmt.Errorf("last position holds %d bytes", len(v))
	}

	return binary.BigEndian.Uint64(v), nil
}

// Sync indexes every entry from the last indexed position and records end as
// the new last position. Entries are written in a single batch.
func (idx *Index) Sync(src EntrySource, end uint64) (int, error) {
	from, err := idx.LastPosition()
	if err != nil {
		return 0, err
	}

	if end <= from {
		return 0, nil
	}

	var (
		batch  leveldb.Batch
		count  int
		offset uint64
		pos    uint32
	)

	fn := func(le store.LedgerEntry) error {
		if le.BlockOffset != offset {
			offset = le.BlockOffset
			pos = 0
		}

		e := Entry{
			Label:            le.Label,
			Key:              le.Key,
			Value:            le.Value,
			BlockTimestampNs: le.BlockTimestampNs,
			BlockHash:        le.BlockHash,
			BlockOffset:      le.BlockOffset,
			Index:            pos,
		}

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}

		k := entryKey(le.BlockOffset, pos)
		batch.Put(k, data)
		batch.Put(append([]byte(labelPrefix+le.Label+":"), k[len(entryPrefix):]...), nil)

		pos++
		count++
		return nil
	}

	if err := src.Entries(from, fn); err != nil {
		return 0, fmt.Errorf("walking entries from %d: %w", from, err)
	}

	var last [8]byte
	binary.BigEndian.PutUint64(last[:], end)
	batch.Put([]byte(lastPosition), last[:])

	if err := idx.db.Write(&batch, nil); err != nil {
		return 0, fmt.Errorf("writing index batch: %w", err)
	}

	return count, nil
}

// Entries returns up to limit entries at or after the block offset, in log
// order.
func (idx *Index) Entries(from uint64, limit int) ([]Entry, error) {
	iter := idx.db.NewIterator(&util.Range{Start: entryKey(from, 0), Limit: []byte(entryPrefix + "\xff")}, nil)
	defer iter.Release()

	var entries []Entry
	for iter.Next() && len(entries) < limit {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, iter.Error()
}

// ByLabel returns up to limit entries with the label, in log order.
func (idx *Index) ByLabel(label string, limit int) ([]Entry, error) {
	prefix := []byte(labelPrefix + label + ":")

	iter := idx.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var entries []Entry
	for iter.Next() && len(entries) < limit {
		k := append([]byte(entryPrefix), iter.Key()[len(prefix):]...)

		data, err := idx.db.Get(k, nil)
		if err != nil {
			return nil, fmt.Errorf("load entry: %w", err)
		}

		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, iter.Error()
}

func entryKey(offset uint64, pos uint32) []byte {
	k := make([]byte, len(entryPrefix)+12)
	copy(k, entryPrefix)
	binary.BigEndian.PutUint64(k[len(entryPrefix):], offset)
	binary.BigEndian.PutUint32(k[len(entryPrefix)+8:], pos)
	return k
}
