package replica

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/cursor"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"golang.org/x/sync/singleflight"
)

// Syncer moves log data between local logs and one remote. At most one fetch
// runs per local log path at a time. A caller asking while a fetch of the
// same path is running shares its result.
type Syncer struct {
	remote    Remote
	group     singleflight.Group
	evHandler EventHandler
	now       func() time.Time
}

// NewSyncer constructs a syncer against the remote.
func NewSyncer(remote Remote, evHandler EventHandler) *Syncer {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Syncer{
		remote:    remote,
		evHandler: ev,
		now:       time.Now,
	}
}

// Fetch pulls the next range of the remote log into the local log. A nil
// hint fetches from the end of the local data. Nothing is written to the
// local log unless the remote returned data.
func (s *Syncer) Fetch(ctx context.Context, log Log, hint *uint64) (FetchResult, error) {
	v, err, shared := s.group.Do(log.Path(), func() (any, error) {
		return s.fetch(ctx, log, hint)
	})
	if err != nil {
		return FetchResult{}, err
	}

	if shared {
		s.evHandler("replica: Fetch: shared result for %s", log.Path())
	}

	return v.(FetchResult), nil
}

// FetchAll fetches until the remote reports there is nothing more.
func (s *Syncer) FetchAll(ctx context.Context, log Log) (FetchResult, error) {
	var total FetchResult
	for {
		res, err := s.Fetch(ctx, log, nil)
		if err != nil {
			return total, err
		}

		total.Bytes += res.Bytes
		total.Position = res.Position
		total.More = res.More

		if !res.More || res.Bytes == 0 {
			return total, nil
		}
	}
}

func (s *Syncer) fetch(ctx context.Context, log Log, hint *uint64) (FetchResult, error) {
	m := metrics()
	m.fetches.Inc()

	capacity, err := log.Capacity()
	if err != nil {
		return FetchResult{}, err
	}

	next := log.NextBlockStartPosition()

	requested := next
	if hint != nil {
		requested = *hint
	}

	local := LocalCursor(log.DataStartPosition(), capacity, next, requested)

	var bytesBefore []byte
	if local.Position > cursor.BytesBeforeLen {
		bytesBefore, err = log.ReadAt(local.Position-cursor.BytesBeforeLen, cursor.BytesBeforeLen)
		if err != nil {
			return FetchResult{}, err
		}
	}

	s.evHandler("replica: fetch: %s: request[%s]", log.Path(), local.RequestString())

	respCursor, data, err := s.remote.DataFetch(ctx, local.RequestString(), bytesBefore)
	if err != nil {
		m.fetchErrors.Inc()
		return FetchResult{}, fmt.Errorf("fetching from remote: %w", err)
	}

	remote, err := cursor.Parse(respCursor)
	if err != nil {
		m.fetchErrors.Inc()
		return FetchResult{}, fmt.Errorf("parsing remote cursor: %w", err)
	}

	if len(data) == 0 {
		s.evHandler("replica: fetch: %s: up to date at %d", log.Path(), local.Position)
		return FetchResult{Position: next, More: remote.More}, nil
	}

	switch {
	case remote.Position < local.Position:
		m.fetchErrors.Inc()
		return FetchResult{}, fmt.Errorf("remote position %d, local position %d: %w", remote.Position, local.Position, ErrRemoteBehind)
	case remote.Position > local.Position:
		m.fetchErrors.Inc()
		return FetchResult{}, fmt.Errorf("remote returned data from %d, expected %d", remote.Position, local.Position)
	}

	end := local.Position + uint64(len(data))

	if err := s.write(log, local.Position, data, end >= next); err != nil {
		m.fetchErrors.Inc()
		return FetchResult{}, err
	}

	m.fetchedBytes.Add(float64(len(data)))
	s.evHandler("replica: fetch: %s: wrote %d bytes at %d, more[%t]", log.Path(), len(data), local.Position, remote.More)

	return FetchResult{Bytes: uint64(len(data)), Position: max(end, next), More: remote.More}, nil
}

// write stores fetched data at pos and marks the end of the known data with
// an all zero block header. A write that ends before the known data leaves
// the later data in place.
func (s *Syncer) write(log Log, pos uint64, data []byte, terminate bool) error {
	end := pos + uint64(len(data))

	if err := log.Grow(end + cursor.FetchSizeBytes); err != nil {
		return fmt.Errorf("growing local log: %w", err)
	}

	if err := log.WriteAt(pos, data); err != nil {
		return err
	}

	if terminate {
		if err := log.WriteAt(end, make([]byte, store.HeaderSize)); err != nil {
			return fmt.Errorf("terminating local log: %w", err)
		}
	}

	if err := log.Refresh(); err != nil {
		return fmt.Errorf("reparsing local log: %w", err)
	}

	return log.Touch(s.now())
}

// =============================================================================

// Push sends the local data the remote lacks in chunks signed by the key.
// Nothing is sent when the remote already has as much data as the local log.
func (s *Syncer) Push(ctx context.Context, log Log, key *ecdsa.PrivateKey) (PushResult, error) {
	md, err := s.remote.Metadata(ctx)
	if err != nil {
		return PushResult{}, fmt.Errorf("reading remote metadata: %w", err)
	}

	dataStart := log.DataStartPosition()
	localEnd := log.NextBlockStartPosition()
	remoteEnd := max(md.NextBlockStart, dataStart)

	if localEnd <= remoteEnd {
		s.evHandler("replica: Push: %s: nothing to push, local[%d] remote[%d]", log.Path(), localEnd, remoteEnd)
		return PushResult{}, nil
	}

	if err := s.checkRemotePrefix(log, remoteEnd, md.LatestBlockHash); err != nil {
		return PushResult{}, err
	}

	m := metrics()

	var res PushResult
	for _, c := range PushChunks(dataStart, remoteEnd, localEnd) {
		data, err := log.ReadAt(c.Position, int(c.ResponseBytes))
		if err != nil {
			return res, err
		}

		req, err := NewPushRequest(c.String(), data, key)
		if err != nil {
			return res, err
		}

		status, err := s.remote.DataPush(ctx, req)
		if err != nil {
			return res, fmt.Errorf("pushing chunk at %d: %w", c.Position, err)
		}

		res.Chunks++
		res.Bytes += uint64(len(data))
		res.Status = status

		m.pushedChunks.Inc()
		m.pushedBytes.Add(float64(len(data)))
		s.evHandler("replica: Push: %s: chunk[%d] position[%d] bytes[%d] more[%t]", log.Path(), res.Chunks, c.Position, len(data), c.More)
	}

	return res, nil
}

// checkRemotePrefix confirms the remote's latest block is the local block
// that ends at remoteEnd, so the pushed data extends the remote chain.
func (s *Syncer) checkRemotePrefix(log Log, remoteEnd uint64, remoteHash []byte) error {
	if len(remoteHash) == 0 || bytes.Equal(remoteHash, store.ZeroHash) {
		return nil
	}

	strg, ok := log.(*store.Store)
	if !ok {
		return nil
	}

	var found bool
	err := strg.Iterate(strg.DataStartPosition(), func(blk store.Block) error {
		if blk.Offset+blk.Length == remoteEnd && bytes.Equal(blk.Hash, remoteHash) {
			found = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("remote block ending at %d: %w", remoteEnd, ErrForkDetected)
	}

	return nil
}
