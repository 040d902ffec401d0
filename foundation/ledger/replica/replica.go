// Package replica keeps a local copy of the ledger log in step with the
// canonical service. Log bytes move in cursor addressed ranges of at most
// cursor.FetchSizeBytes. A fetch carries the few bytes that precede the
// requested position so the source can refuse a replica that has forked.
package replica

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/cursor"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of errors returned by the sync engine.
var (
	ErrRemoteBehind     = errors.New("remote has less data than the local replica")
	ErrForkDetected     = errors.New("local replica does not match the remote log")
	ErrPastEnd          = errors.New("requested position is past the end of data")
	ErrPushUnauthorized = errors.New("caller is not authorized to push log data")
)

// EventHandler defines a function that is called when events
// occur in the processing of a sync.
type EventHandler func(v string, args ...any)

// Log is the local log a replica reads from and writes to.
type Log interface {
	Path() string
	DataStartPosition() uint64
	NextBlockStartPosition() uint64
	Capacity() (uint64, error)
	ReadAt(pos uint64, n int) ([]byte, error)
	WriteAt(pos uint64, data []byte) error
	Grow(size uint64) error
	Refresh() error
	Touch(t time.Time) error
}

// Remote is the canonical service a replica syncs with.
type Remote interface {
	DataFetch(ctx context.Context, cursorStr string, bytesBefore []byte) (string, []byte, error)
	DataPush(ctx context.Context, req PushRequest) (string, error)
	Metadata(ctx context.Context) (state.Metadata, error)
}

// =============================================================================

// FetchRequest is the wire form of a fetch.
type FetchRequest struct {
	Cursor      string        `json:"cursor" validate:"required"`
	BytesBefore hexutil.Bytes `json:"bytes_before,omitempty"`
}

// FetchResponse is the wire form of a fetched range.
type FetchResponse struct {
	Cursor string `json:"cursor"`
	Data   []byte `json:"data"`
}

// PushRequest is one chunk of log data pushed to the canonical service. The
// signature is made over the cursor and the data.
type PushRequest struct {
	Cursor    string        `json:"cursor" validate:"required"`
	Data      []byte        `json:"data"`
	Pubkey    hexutil.Bytes `json:"pubkey" validate:"required"`
	Signature hexutil.Bytes `json:"signature" validate:"required"`
}

// NewPushRequest signs a chunk with the pusher's key.
func NewPushRequest(cursorStr string, data []byte, key *ecdsa.PrivateKey) (PushRequest, error) {
	sig, err := signature.Sign(pushDigest(cursorStr, data), key)
	if err != nil {
		return PushRequest{}, err
	}

	return PushRequest{
		Cursor:    cursorStr,
		Data:      data,
		Pubkey:    signature.NewIdentity(key).Bytes(),
		Signature: sig,
	}, nil
}

// Verify checks the signature of the chunk and returns the pusher.
func (pr PushRequest) Verify() (signature.Identity, error) {
	id, err := signature.IdentityFromBytes(pr.Pubkey)
	if err != nil {
		return signature.Identity{}, err
	}

	if err := id.Verify(pushDigest(pr.Cursor, pr.Data), pr.Signature); err != nil {
		return signature.Identity{}, fmt.Errorf("verifying push: %w", err)
	}

	return id, nil
}

func pushDigest(cursorStr string, data []byte) []byte {
	return signature.Hash(append([]byte(cursorStr), data...))
}

// =============================================================================

// FetchResult reports what one fetch wrote to the local log.
type FetchResult struct {
	Bytes    uint64
	Position uint64
	More     bool
}

// PushResult reports what a push sent to the canonical service.
type PushResult struct {
	Chunks int
	Bytes  uint64
	Status string
}

// LocalCursor computes where a fetch starts. The start never passes the end
// of the local data, whatever position the caller asks for.
func LocalCursor(dataStart uint64, capacity uint64, next uint64, requested uint64) cursor.Cursor {
	return cursor.FromData(dataStart, capacity, next, min(next, requested))
}

// PushChunks splits the local data the remote lacks into chunks of at most
// cursor.FetchSizeBytes. Every chunk but the last is flagged as having more
// to follow.
func PushChunks(dataStart uint64, remoteEnd uint64, localEnd uint64) []cursor.Cursor {
	var chunks []cursor.Cursor
	for pos := remoteEnd; pos < localEnd; pos += cursor.FetchSizeBytes {
		n := min(cursor.FetchSizeBytes, localEnd-pos)
		chunks = append(chunks, cursor.New(dataStart, pos, localEnd, n, cursor.Forward, pos+n < localEnd))
	}
	return chunks
}
