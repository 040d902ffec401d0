package replica

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/cursor"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignedMetadata is the log metadata signed by the node key.
type SignedMetadata struct {
	Metadata  state.Metadata `json:"metadata"`
	Pubkey    hexutil.Bytes  `json:"pubkey"`
	Signature hexutil.Bytes  `json:"signature"`
}

// Verify checks the metadata was signed by the root key.
func (sm SignedMetadata) Verify(rootKey []byte) error {
	if !bytes.Equal(sm.Pubkey, rootKey) {
		return fmt.Errorf("metadata signed by %s, root key is %s", sm.Pubkey, hexutil.Encode(rootKey))
	}

	id, err := signature.IdentityFromBytes(sm.Pubkey)
	if err != nil {
		return err
	}

	data, err := json.Marshal(sm.Metadata)
	if err != nil {
		return err
	}

	return id.Verify(data, sm.Signature)
}

// =============================================================================

// SourceConfig represents the configuration required to serve the log.
type SourceConfig struct {
	State     *state.State
	NodeKey   *ecdsa.PrivateKey
	Pusher    []byte
	EvHandler EventHandler
}

// Source serves the canonical log to replicas and accepts pushed data from
// the authorized pusher.
type Source struct {
	mu        sync.Mutex
	state     *state.State
	nodeKey   *ecdsa.PrivateKey
	pusher    []byte
	evHandler EventHandler
}

// NewSource constructs a source over the ledger state. With no configured
// pusher, the first identity that pushes into an empty log becomes the
// pusher.
func NewSource(cfg SourceConfig) (*Source, error) {
	if cfg.State == nil {
		return nil, errors.New("source requires a ledger state")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Source{
		state:     cfg.State,
		nodeKey:   cfg.NodeKey,
		pusher:    cfg.Pusher,
		evHandler: ev,
	}, nil
}

// RootKey returns the public key metadata is signed with.
func (src *Source) RootKey() []byte {
	if src.nodeKey == nil {
		return nil
	}
	return signature.NewIdentity(src.nodeKey).Bytes()
}

// Metadata returns the current log metadata.
func (src *Source) Metadata(ctx context.Context) (state.Metadata, error) {
	return src.state.Metadata(), nil
}

// SignedMetadata returns the current log metadata signed by the node key.
func (src *Source) SignedMetadata(ctx context.Context) (SignedMetadata, error) {
	if src.nodeKey == nil {
		return SignedMetadata{}, errors.New("no node key configured")
	}

	md := src.state.Metadata()

	data, err := json.Marshal(md)
	if err != nil {
		return SignedMetadata{}, err
	}

	sig, err := signature.Sign(data, src.nodeKey)
	if err != nil {
		return SignedMetadata{}, err
	}

	return SignedMetadata{Metadata: md, Pubkey: src.RootKey(), Signature: sig}, nil
}

// DataFetch returns the next range of the log starting at the position of
// the request cursor. When bytesBefore is set it must match the bytes that
// precede the position in this log.
func (src *Source) DataFetch(ctx context.Context, cursorStr string, bytesBefore []byte) (string, []byte, error) {
	m := metrics()

	req, err := cursor.Parse(cursorStr)
	if err != nil {
		m.served.WithLabelValues("fetch", "invalid").Inc()
		return "", nil, err
	}

	strg := src.state.Store()
	next := strg.NextBlockStartPosition()

	if req.Position > next {
		m.served.WithLabelValues("fetch", "invalid").Inc()
		return "", nil, fmt.Errorf("position %d, end of data %d: %w", req.Position, next, ErrPastEnd)
	}

	if len(bytesBefore) > 0 {
		if req.Position < uint64(len(bytesBefore)) {
			m.served.WithLabelValues("fetch", "invalid").Inc()
			return "", nil, fmt.Errorf("%d bytes before position %d are out of range", len(bytesBefore), req.Position)
		}

		local, err := strg.ReadAt(req.Position-uint64(len(bytesBefore)), len(bytesBefore))
		if err != nil {
			return "", nil, err
		}

		if !bytes.Equal(local, bytesBefore) {
			m.served.WithLabelValues("fetch", "fork").Inc()
			return "", nil, fmt.Errorf("%d bytes before position %d does not match: %w", len(bytesBefore), req.Position, ErrForkDetected)
		}
	}

	capacity, err := strg.Capacity()
	if err != nil {
		return "", nil, err
	}

	c := cursor.FromData(strg.DataStartPosition(), capacity, next, req.Position)
	if c.ResponseBytes == 0 {
		m.served.WithLabelValues("fetch", "empty").Inc()
		return c.String(), nil, nil
	}

	data, err := strg.ReadAt(c.Position, int(c.ResponseBytes))
	if err != nil {
		return "", nil, err
	}

	m.served.WithLabelValues("fetch", "data").Inc()
	src.evHandler("replica: DataFetch: position[%d] bytes[%d] more[%t]", c.Position, len(data), c.More)

	return c.String(), data, nil
}

// DataPush writes a pushed chunk into the log. The last chunk of a push
// reparses the log and rebuilds every view.
func (src *Source) DataPush(ctx context.Context, req PushRequest) (string, error) {
	m := metrics()

	id, err := req.Verify()
	if err != nil {
		m.served.WithLabelValues("push", "invalid").Inc()
		return "", err
	}

	c, err := cursor.Parse(req.Cursor)
	if err != nil {
		m.served.WithLabelValues("push", "invalid").Inc()
		return "", err
	}

	src.mu.Lock()
	defer src.mu.Unlock()

	if err := src.authorize(id); err != nil {
		m.served.WithLabelValues("push", "unauthorized").Inc()
		return "", err
	}

	if next := src.state.Store().NextBlockStartPosition(); c.Position < next {
		m.served.WithLabelValues("push", "invalid").Inc()
		return "", fmt.Errorf("push at %d would overwrite data ending at %d", c.Position, next)
	}

	stats, err := src.state.WriteLog(c.Position, req.Data, !c.More)
	if err != nil {
		return "", err
	}

	m.served.WithLabelValues("push", "data").Inc()

	if c.More {
		return fmt.Sprintf("stored %d bytes at %d, waiting for more", len(req.Data), c.Position), nil
	}

	src.evHandler("replica: DataPush: pusher[%s] blocks[%d] entries[%d]", id.Principal(), stats.Blocks, stats.Entries)

	return fmt.Sprintf("stored %d bytes at %d, ledger has %d blocks", len(req.Data), c.Position, stats.Blocks), nil
}

func (src *Source) authorize(id signature.Identity) error {
	pubkey := id.Bytes()

	switch {
	case src.pusher != nil:
		if !bytes.Equal(src.pusher, pubkey) {
			return fmt.Errorf("%s: %w", id, ErrPushUnauthorized)
		}

	case src.state.Store().BlocksCount() == 0:
		src.pusher = pubkey
		src.evHandler("replica: authorize: %s is now the pusher", id)

	default:
		return fmt.Errorf("%s: %w", id, ErrPushUnauthorized)
	}

	return nil
}
