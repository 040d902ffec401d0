package index_test

import (
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/index"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func TestSyncAndQuery(t *testing.T) {
	strg, err := store.New(store.Config{Backing: store.NewMemory(), DataStart: 64})
	require.NoError(t, err)

	require.NoError(t, strg.Append("DCTokenTransfer", []byte("t1"), []byte("v1")))
	require.NoError(t, strg.Append("RepChange", []byte("r1"), []byte("v2")))
	first, err := strg.Commit()
	require.NoError(t, err)

	idx, err := index.OpenStorage(storage.NewMemStorage())
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Sync(strg, strg.NextBlockStartPosition())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	last, err := idx.LastPosition()
	require.NoError(t, err)
	require.Equal(t, strg.NextBlockStartPosition(), last)

	// A second sync with no new data indexes nothing.
	n, err = idx.Sync(strg, strg.NextBlockStartPosition())
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, strg.Append("DCTokenTransfer", []byte("t2"), []byte("v3")))
	_, err = strg.Commit()
	require.NoError(t, err)

	n, err = idx.Sync(strg, strg.NextBlockStartPosition())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	entries, err := idx.Entries(0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, first.Offset, entries[0].BlockOffset)
	require.Equal(t, uint32(1), entries[1].Index)
	require.Equal(t, "RepChange", entries[1].Label)

	transfers, err := idx.ByLabel("DCTokenTransfer", 10)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	require.Equal(t, []byte("t2"), []byte(transfers[1].Key))

	limited, err := idx.Entries(0, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}
