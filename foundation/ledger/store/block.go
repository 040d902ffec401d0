package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ethereum/go-ethereum/rlp"
)

// HeaderSize is the size in bytes of a block header. An all zero header
// marks the end of the known data.
const HeaderSize = 16

// blockVersion is the only header layout this package writes and reads.
const blockVersion uint32 = 1

// ZeroHash is the parent hash of the first block in the ledger.
var ZeroHash = make([]byte, sha256.Size)

// =============================================================================

// header is the fixed little endian prefix of every block. Checksum covers
// the body, so a block only partly copied into place is never parsed.
type header struct {
	Version  uint32
	JumpPrev int32
	JumpNext uint32
	Checksum uint32
}

func (h header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Version)
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.JumpPrev))
	binary.LittleEndian.PutUint32(b[8:12], h.JumpNext)
	binary.LittleEndian.PutUint32(b[12:16], h.Checksum)
	return b
}

func decodeHeader(b []byte) header {
	return header{
		Version:  binary.LittleEndian.Uint32(b[0:4]),
		JumpPrev: int32(binary.LittleEndian.Uint32(b[4:8])),
		JumpNext: binary.LittleEndian.Uint32(b[8:12]),
		Checksum: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// =============================================================================

// Entry is a single labelled key/value pair recorded in a block.
type Entry struct {
	Label string
	Key   []byte
	Value []byte
}

// blockBody is the RLP encoded payload following a header.
type blockBody struct {
	Entries    []Entry
	Timestamp  uint64
	ParentHash []byte
}

// Block is a committed block as read back from the backing.
type Block struct {
	Entries    []Entry
	Timestamp  uint64
	ParentHash []byte
	Hash       []byte
	Offset     uint64
	Length     uint64
}

// LedgerEntry is an entry together with the block that committed it.
type LedgerEntry struct {
	Label            string
	Key              []byte
	Value            []byte
	BlockTimestampNs uint64
	BlockHash        []byte
	BlockOffset      uint64
}

// LedgerEntries flattens the block into its entries.
func (b Block) LedgerEntries() []LedgerEntry {
	les := make([]LedgerEntry, len(b.Entries))
	for i, e := range b.Entries {
		les[i] = LedgerEntry{
			Label:            e.Label,
			Key:              e.Key,
			Value:            e.Value,
			BlockTimestampNs: b.Timestamp,
			BlockHash:        b.Hash,
			BlockOffset:      b.Offset,
		}
	}
	return les
}

// =============================================================================

// encodeBlock serializes a new block positioned jumpPrev bytes after the
// previous block. A zero jumpPrev marks the first block.
func encodeBlock(body blockBody, jumpPrev int32) ([]byte, error) {
	data, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, fmt.Errorf("encoding block: %w", err)
	}

	h := header{
		Version:  blockVersion,
		JumpPrev: jumpPrev,
		JumpNext: uint32(HeaderSize + len(data)),
		Checksum: crc32.ChecksumIEEE(data),
	}

	return append(h.encode(), data...), nil
}

// blockHash commits to the parent, the entries and the timestamp.
func blockHash(parent []byte, entries []Entry, timestamp uint64) []byte {
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], timestamp)

	h := sha256.New()
	h.Write(parent)
	h.Write(merkleRoot(entries))
	h.Write(ts[:])
	return h.Sum(nil)
}

// merkleRoot hashes the entries pairwise up to a single root. An odd node
// at any level is paired with itself.
func merkleRoot(entries []Entry) []byte {
	if len(entries) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}

	level := make([][]byte, len(entries))
	for i, e := range entries {
		data, _ := rlp.EncodeToBytes(e)
		sum := sha256.Sum256(data)
		level[i] = sum[:]
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			sum := sha256.Sum256(append(append([]byte{}, level[i]...), level[i+1]...))
			next = append(next, sum[:])
		}
		level = next
	}

	return level[0]
}
