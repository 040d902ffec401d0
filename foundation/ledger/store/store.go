// Package store implements the append only, block chained ledger log. Each
// block carries a header, a set of labelled entries, a timestamp and the
// hash of its parent.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
)

// DefaultDataStart is the offset of the data partition inside a ledger file.
// The bytes before it are reserved for the partition table.
const DefaultDataStart uint64 = 0x10000

// ErrChainBroken is returned when a block does not reference the hash of the
// block before it.
var ErrChainBroken = errors.New("block parent hash does not match previous block")

// EventHandler defines a function that is called when events occur while
// reading or writing blocks.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to open a store.
type Config struct {
	Backing   Backing
	DataStart uint64
	Now       func() uint64
	EvHandler EventHandler
}

// Store manages the ledger log held in a Backing.
type Store struct {
	mu        sync.RWMutex
	backing   Backing
	dataStart uint64
	now       func() uint64
	evHandler EventHandler

	nextBlockStart uint64
	lastBlockStart uint64
	latestHash     []byte
	blocksCount    uint64
	pending        []Entry
}

// New opens the store and parses every block already in the backing.
func New(cfg Config) (*Store, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().UnixNano()) }
	}

	s := Store{
		backing:   cfg.Backing,
		dataStart: cfg.DataStart,
		now:       now,
		evHandler: ev,
	}

	if err := s.Refresh(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Close closes the backing.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backing.Close()
}

// Path identifies the backing of this store.
func (s *Store) Path() string {
	return s.backing.Name()
}

// =============================================================================

// Append stages an entry for the next Commit.
func (s *Store) Append(label string, key []byte, value []byte) error {
	if label == "" {
		return errors.New("entry label is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, Entry{Label: label, Key: key, Value: value})
	return nil
}

// Discard drops every staged entry.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
}

// Commit writes the staged entries as one block chained to the latest block.
// Nothing is written when there are no staged entries.
func (s *Store) Commit() (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return Block{}, nil
	}

	body := blockBody{
		Entries:    s.pending,
		Timestamp:  s.now(),
		ParentHash: s.latestHash,
	}

	var jumpPrev int32
	if s.blocksCount > 0 {
		jumpPrev = -int32(s.nextBlockStart - s.lastBlockStart)
	}

	data, err := encodeBlock(body, jumpPrev)
	if err != nil {
		return Block{}, err
	}

	// The terminator keeps readers from parsing stale bytes past the block.
	terminator := make([]byte, HeaderSize)
	if _, err := s.backing.WriteAt(append(data, terminator...), int64(s.nextBlockStart)); err != nil {
		return Block{}, fmt.Errorf("writing block: %w", err)
	}

	if err := s.backing.Sync(); err != nil {
		return Block{}, fmt.Errorf("syncing block: %w", err)
	}

	blk := Block{
		Entries:    body.Entries,
		Timestamp:  body.Timestamp,
		ParentHash: body.ParentHash,
		Hash:       blockHash(body.ParentHash, body.Entries, body.Timestamp),
		Offset:     s.nextBlockStart,
		Length:     uint64(len(data)),
	}

	s.lastBlockStart = s.nextBlockStart
	s.nextBlockStart += uint64(len(data))
	s.latestHash = blk.Hash
	s.blocksCount++
	s.pending = nil

	s.evHandler("store: Commit: block[%d] offset[%d] entries[%d]", s.blocksCount, blk.Offset, len(blk.Entries))

	return blk, nil
}

// =============================================================================

// Refresh reparses the backing from the start of the data partition. It is
// called after bytes were written to the backing from outside the store.
// A trailing block that is incomplete ends the known data.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBlockStart = s.dataStart
	s.lastBlockStart = s.dataStart
	s.latestHash = ZeroHash
	s.blocksCount = 0
	s.pending = nil

	fn := func(blk Block) error {
		if !bytes.Equal(blk.ParentHash, s.latestHash) {
			return fmt.Errorf("block at offset %d: %w", blk.Offset, ErrChainBroken)
		}

		s.lastBlockStart = blk.Offset
		s.nextBlockStart = blk.Offset + blk.Length
		s.latestHash = blk.Hash
		s.blocksCount++
		return nil
	}

	if err := s.walk(s.dataStart, fn); err != nil {
		return err
	}

	s.evHandler("store: Refresh: blocks[%d] next[%d]", s.blocksCount, s.nextBlockStart)

	return nil
}

// Iterate calls fn for every committed block at or after the position, in
// log order. The position must be a block boundary.
func (s *Store) Iterate(from uint64, fn func(Block) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.walk(max(from, s.dataStart), fn)
}

// Entries calls fn for every committed entry at or after the position.
func (s *Store) Entries(from uint64, fn func(LedgerEntry) error) error {
	return s.Iterate(from, func(blk Block) error {
		for _, le := range blk.LedgerEntries() {
			if err := fn(le); err != nil {
				return err
			}
		}
		return nil
	})
}

// walk reads blocks starting at pos until the end of known data.
func (s *Store) walk(pos uint64, fn func(Block) error) error {
	size, err := s.backing.Size()
	if err != nil {
		return fmt.Errorf("reading size: %w", err)
	}

	for pos+HeaderSize <= uint64(size) {
		hb := make([]byte, HeaderSize)
		if _, err := s.backing.ReadAt(hb, int64(pos)); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading header at %d: %w", pos, err)
		}

		h := decodeHeader(hb)
		if h.Version == 0 {
			return nil
		}

		if h.Version != blockVersion {
			return fmt.Errorf("unsupported block version %d at offset %d", h.Version, pos)
		}

		if h.JumpNext < HeaderSize || pos+uint64(h.JumpNext) > uint64(size) {
			s.evHandler("store: walk: WARNING: incomplete block at offset %d", pos)
			return nil
		}

		data := make([]byte, h.JumpNext-HeaderSize)
		if _, err := s.backing.ReadAt(data, int64(pos+HeaderSize)); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading block at %d: %w", pos, err)
		}

		if crc32.ChecksumIEEE(data) != h.Checksum {
			s.evHandler("store: walk: WARNING: checksum mismatch for block at offset %d", pos)
			return nil
		}

		var body blockBody
		if err := rlp.DecodeBytes(data, &body); err != nil {
			s.evHandler("store: walk: WARNING: undecodable block at offset %d: %s", pos, err)
			return nil
		}

		blk := Block{
			Entries:    body.Entries,
			Timestamp:  body.Timestamp,
			ParentHash: body.ParentHash,
			Hash:       blockHash(body.ParentHash, body.Entries, body.Timestamp),
			Offset:     pos,
			Length:     uint64(h.JumpNext),
		}

		if err := fn(blk); err != nil {
			return err
		}

		pos += uint64(h.JumpNext)
	}

	return nil
}

// =============================================================================

// DataStartPosition returns the offset of the data partition.
func (s *Store) DataStartPosition() uint64 {
	return s.dataStart
}

// NextBlockStartPosition returns the offset where the next block is written.
func (s *Store) NextBlockStartPosition() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nextBlockStart
}

// LatestBlockHash returns the hash of the last committed block.
func (s *Store) LatestBlockHash() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestHash
}

// BlocksCount returns the number of committed blocks.
func (s *Store) BlocksCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.blocksCount
}

// Capacity returns the number of addressable bytes, never less than the
// known end of data.
func (s *Store) Capacity() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size, err := s.backing.Size()
	if err != nil {
		return 0, err
	}

	return max(uint64(size), s.nextBlockStart), nil
}

// ReadAt returns n raw bytes starting at pos. Bytes past the end of the
// backing read as zeros.
func (s *Store) ReadAt(pos uint64, n int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := make([]byte, n)
	if _, err := s.backing.ReadAt(buf, int64(pos)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading %d bytes at %d: %w", n, pos, err)
	}

	return buf, nil
}

// WriteAt writes raw bytes at pos. The parsed view of the log is not updated
// until Refresh is called.
func (s *Store) WriteAt(pos uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.backing.WriteAt(data, int64(pos)); err != nil {
		return fmt.Errorf("writing %d bytes at %d: %w", len(data), pos, err)
	}

	return s.backing.Sync()
}

// Grow zero fills the backing up to size bytes. A larger backing is left
// unchanged.
func (s *Store) Grow(size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.backing.Size()
	if err != nil {
		return err
	}

	if uint64(cur) >= size {
		return nil
	}

	return s.backing.Truncate(int64(size))
}

// Touch bumps the modification time of the backing when it keeps one.
func (s *Store) Touch(t time.Time) error {
	toucher, ok := s.backing.(interface{ Touch(time.Time) error })
	if !ok {
		return nil
	}
	return toucher.Touch(t)
}
