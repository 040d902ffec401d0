package replica_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/cursor"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const dataStart = 128

func newStore(t *testing.T) *store.Store {
	strg, err := store.New(store.Config{Backing: store.NewMemory(), DataStart: dataStart})
	require.NoError(t, err)
	return strg
}

func newLedger(t *testing.T) *state.State {
	st, err := state.New(state.Config{Store: newStore(t)})
	require.NoError(t, err)
	return st
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newSource(t *testing.T, st *state.State, nodeKey *ecdsa.PrivateKey) *replica.Source {
	src, err := replica.NewSource(replica.SourceConfig{State: st, NodeKey: nodeKey, EvHandler: t.Logf})
	require.NoError(t, err)
	return src
}

func mint(t *testing.T, st *state.State, amount uint64) database.Account {
	account := database.IdentityAccount(signature.NewIdentity(newKey(t)))
	_, err := st.Mint(account, amount, nil)
	require.NoError(t, err)
	return account
}

// commitLarge writes blocks directly to the store so a log spans several
// fetches.
func commitLarge(t *testing.T, strg *store.Store, blocks int, size int) {
	for i := range blocks {
		require.NoError(t, strg.Append("Blob", []byte{byte(i)}, bytes.Repeat([]byte{byte(i + 1)}, size)))
		_, err := strg.Commit()
		require.NoError(t, err)
	}
}

// =============================================================================

func TestLocalCursorNeverPassesLocalData(t *testing.T) {
	c := replica.LocalCursor(0, 1000, 300, 500)
	require.Equal(t, uint64(300), c.Position)
	require.Equal(t, "position=300", c.RequestString())

	c = replica.LocalCursor(0, 1000, 300, 100)
	require.Equal(t, uint64(100), c.Position)
}

func TestPushChunks(t *testing.T) {
	chunks := replica.PushChunks(0, 0, 2_500_000)
	require.Len(t, chunks, 3)

	sizes := []uint64{1_048_576, 1_048_576, 402_848}
	for i, c := range chunks {
		require.Equal(t, sizes[i], c.ResponseBytes)
		require.Equal(t, i < 2, c.More)
		require.Equal(t, uint64(i)*cursor.FetchSizeBytes, c.Position)
	}

	require.Empty(t, replica.PushChunks(0, 500, 500))
}

func TestFetchMirrorsSource(t *testing.T) {
	remote := newLedger(t)
	alice := mint(t, remote, 10*database.TokenDecimalsDiv)
	bob := mint(t, remote, database.TokenDecimalsDiv)
	_, err := remote.Transfer(state.TransferArgs{From: alice, To: bob, Amount: 42})
	require.NoError(t, err)

	backing := store.NewMemory()
	local, err := store.New(store.Config{Backing: backing, DataStart: dataStart})
	require.NoError(t, err)

	syncer := replica.NewSyncer(newSource(t, remote, nil), t.Logf)

	res, err := syncer.FetchAll(context.Background(), local)
	require.NoError(t, err)
	require.False(t, res.More)
	require.Equal(t, remote.Store().NextBlockStartPosition(), local.NextBlockStartPosition())
	require.Equal(t, remote.Store().LatestBlockHash(), local.LatestBlockHash())
	require.Equal(t, remote.Store().BlocksCount(), local.BlocksCount())
	require.False(t, backing.Touched().IsZero())

	mirror, err := state.New(state.Config{Store: local})
	require.NoError(t, err)

	want, err := remote.Balances()
	require.NoError(t, err)
	got, err := mirror.Balances()
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Up to date, nothing written.
	touched := backing.Touched()
	res, err = syncer.Fetch(context.Background(), local, nil)
	require.NoError(t, err)
	require.Zero(t, res.Bytes)
	require.Equal(t, touched, backing.Touched())

	// New remote blocks arrive on the next fetch.
	mint(t, remote, 7)
	res, err = syncer.FetchAll(context.Background(), local)
	require.NoError(t, err)
	require.NotZero(t, res.Bytes)
	require.Equal(t, remote.Store().BlocksCount(), local.BlocksCount())
}

func TestFetchInRanges(t *testing.T) {
	remote := newLedger(t)
	commitLarge(t, remote.Store(), 5, 400_000)

	local := newStore(t)
	syncer := replica.NewSyncer(newSource(t, remote, nil), t.Logf)

	first, err := syncer.Fetch(context.Background(), local, nil)
	require.NoError(t, err)
	require.Equal(t, cursor.FetchSizeBytes, first.Bytes)
	require.True(t, first.More)
	require.Less(t, local.BlocksCount(), remote.Store().BlocksCount())

	_, err = syncer.FetchAll(context.Background(), local)
	require.NoError(t, err)
	require.Equal(t, remote.Store().BlocksCount(), local.BlocksCount())
	require.Equal(t, remote.Store().LatestBlockHash(), local.LatestBlockHash())
}

func TestFetchDetectsFork(t *testing.T) {
	remote := newLedger(t)
	commitLarge(t, remote.Store(), 1, 1024)

	local := newStore(t)
	require.NoError(t, local.Append("Other", []byte("k"), []byte("v")))
	_, err := local.Commit()
	require.NoError(t, err)

	syncer := replica.NewSyncer(newSource(t, remote, nil), t.Logf)

	_, err = syncer.Fetch(context.Background(), local, nil)
	require.ErrorIs(t, err, replica.ErrForkDetected)
}

type behindRemote struct {
	replica.Remote
}

func (behindRemote) DataFetch(ctx context.Context, cursorStr string, bytesBefore []byte) (string, []byte, error) {
	c := cursor.New(dataStart, dataStart, dataStart+4, 4, cursor.Forward, false)
	return c.String(), []byte{1, 2, 3, 4}, nil
}

func TestFetchRemoteBehind(t *testing.T) {
	local := newStore(t)
	commitLarge(t, local, 1, 64)
	next := local.NextBlockStartPosition()

	syncer := replica.NewSyncer(behindRemote{}, t.Logf)

	_, err := syncer.Fetch(context.Background(), local, nil)
	require.ErrorIs(t, err, replica.ErrRemoteBehind)
	require.Equal(t, next, local.NextBlockStartPosition())
}

func TestPush(t *testing.T) {
	local := newLedger(t)
	alice := mint(t, local, 10*database.TokenDecimalsDiv)
	commitLarge(t, local.Store(), 3, 500_000)
	_, err := local.Rebuild()
	require.NoError(t, err)

	remote := newLedger(t)
	syncer := replica.NewSyncer(newSource(t, remote, nil), t.Logf)

	pusher := newKey(t)
	res, err := syncer.Push(context.Background(), local.Store(), pusher)
	require.NoError(t, err)
	require.Equal(t, 2, res.Chunks)
	require.Equal(t, local.Store().BlocksCount(), remote.Store().BlocksCount())
	require.Equal(t, local.Store().LatestBlockHash(), remote.Store().LatestBlockHash())

	bal, err := remote.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, 10*database.TokenDecimalsDiv, bal)

	// Nothing left to push.
	res, err = syncer.Push(context.Background(), local.Store(), pusher)
	require.NoError(t, err)
	require.Zero(t, res.Chunks)

	// Only the first pusher may push again.
	mint(t, local, 1)
	_, err = syncer.Push(context.Background(), local.Store(), newKey(t))
	require.ErrorIs(t, err, replica.ErrPushUnauthorized)

	res, err = syncer.Push(context.Background(), local.Store(), pusher)
	require.NoError(t, err)
	require.Equal(t, 1, res.Chunks)
	require.Equal(t, local.Store().BlocksCount(), remote.Store().BlocksCount())
}

func TestClientMetadataRetries(t *testing.T) {
	nodeKey := newKey(t)
	src := newSource(t, newLedger(t), nodeKey)

	var rootKeyCalls, metadataCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ledger/root-key", func(w http.ResponseWriter, r *http.Request) {
		rootKeyCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"pubkey": hexutil.Encode(src.RootKey())})
	})
	mux.HandleFunc("/v1/ledger/metadata", func(w http.ResponseWriter, r *http.Request) {
		if metadataCalls.Add(1) == 1 {
			http.Error(w, `{"error":"warming up"}`, http.StatusServiceUnavailable)
			return
		}
		sm, err := src.SignedMetadata(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(sm)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := replica.NewClient(replica.ClientConfig{URL: srv.URL, RetryInterval: time.Millisecond})

	md, err := client.Metadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(dataStart), md.NextBlockStart)
	require.Equal(t, int32(2), metadataCalls.Load())
	require.Equal(t, int32(2), rootKeyCalls.Load())
}

func TestClientMetadataRejectsForeignKey(t *testing.T) {
	src := newSource(t, newLedger(t), newKey(t))
	other := newKey(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ledger/root-key", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"pubkey": hexutil.Encode(signature.NewIdentity(other).Bytes())})
	})
	mux.HandleFunc("/v1/ledger/metadata", func(w http.ResponseWriter, r *http.Request) {
		sm, _ := src.SignedMetadata(r.Context())
		json.NewEncoder(w).Encode(sm)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := replica.NewClient(replica.ClientConfig{URL: srv.URL, RetryInterval: time.Millisecond})

	_, err := client.Metadata(context.Background())
	require.Error(t, err)
}
