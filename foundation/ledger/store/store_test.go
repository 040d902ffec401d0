package store_test

import (
	"bytes"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newStore(t *testing.T, backing store.Backing) *store.Store {
	var ts uint64
	s, err := store.New(store.Config{
		Backing:   backing,
		DataStart: 128,
		Now:       func() uint64 { ts += 10; return ts },
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the store: %v", failed, err)
	}
	return s
}

func TestCommitAndReopen(t *testing.T) {
	t.Log("Given the need to persist blocks and read them back.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen committing two blocks.", testID)
		{
			backing := store.NewMemory()
			s := newStore(t, backing)

			if s.NextBlockStartPosition() != 128 {
				t.Fatalf("\t%s\tTest %d:\tShould start at the data partition: got %d", failed, testID, s.NextBlockStartPosition())
			}
			t.Logf("\t%s\tTest %d:\tShould start at the data partition.", success, testID)

			s.Append("Label", []byte("k1"), []byte("v1"))
			s.Append("Label", []byte("k2"), []byte("v2"))
			blk1, err := s.Commit()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit: %v", failed, testID, err)
			}

			s.Append("Other", []byte("k3"), nil)
			blk2, err := s.Commit()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to commit.", success, testID)

			if !bytes.Equal(blk2.ParentHash, blk1.Hash) {
				t.Fatalf("\t%s\tTest %d:\tShould chain the second block to the first.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould chain the second block to the first.", success, testID)

			reopened := newStore(t, backing)
			if reopened.BlocksCount() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould find 2 blocks after reopen: got %d", failed, testID, reopened.BlocksCount())
			}
			if reopened.NextBlockStartPosition() != s.NextBlockStartPosition() {
				t.Fatalf("\t%s\tTest %d:\tShould agree on the next block position.", failed, testID)
			}
			if !bytes.Equal(reopened.LatestBlockHash(), blk2.Hash) {
				t.Fatalf("\t%s\tTest %d:\tShould agree on the latest hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reparse the same chain after reopen.", success, testID)

			var labels []string
			reopened.Entries(0, func(le store.LedgerEntry) error {
				labels = append(labels, le.Label)
				return nil
			})
			if len(labels) != 3 || labels[0] != "Label" || labels[2] != "Other" {
				t.Fatalf("\t%s\tTest %d:\tShould iterate entries in log order: got %v", failed, testID, labels)
			}
			t.Logf("\t%s\tTest %d:\tShould iterate entries in log order.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen there is nothing staged.", testID)
		{
			s := newStore(t, store.NewMemory())

			blk, err := s.Commit()
			if err != nil || blk.Length != 0 || s.BlocksCount() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not write an empty block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not write an empty block.", success, testID)
		}
	}
}

func TestIncompleteTail(t *testing.T) {
	t.Log("Given the need to tolerate a partially copied block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the last block is cut short.", testID)
		{
			src := newStore(t, store.NewMemory())
			src.Append("Label", []byte("k1"), bytes.Repeat([]byte{1}, 64))
			src.Commit()
			first := src.NextBlockStartPosition()
			src.Append("Label", []byte("k2"), bytes.Repeat([]byte{2}, 64))
			src.Commit()

			// Copy everything except the last 10 bytes of the second block.
			raw, _ := src.ReadAt(0, int(src.NextBlockStartPosition())-10)
			dst := store.NewMemory()
			dst.WriteAt(raw, 0)

			s := newStore(t, dst)
			if s.BlocksCount() != 1 || s.NextBlockStartPosition() != first {
				t.Fatalf("\t%s\tTest %d:\tShould stop before the cut block: blocks %d next %d", failed, testID, s.BlocksCount(), s.NextBlockStartPosition())
			}
			t.Logf("\t%s\tTest %d:\tShould stop before the cut block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the cut block is padded with zeros.", testID)
		{
			src := newStore(t, store.NewMemory())
			src.Append("Label", []byte("k1"), bytes.Repeat([]byte{1}, 64))
			src.Commit()
			first := src.NextBlockStartPosition()
			src.Append("Label", []byte("k2"), bytes.Repeat([]byte{2}, 4096))
			src.Commit()

			raw, _ := src.ReadAt(0, int(src.NextBlockStartPosition())-100)
			dst := store.NewMemory()
			dst.WriteAt(raw, 0)
			dst.Truncate(int64(src.NextBlockStartPosition()) + 1024)

			s := newStore(t, dst)
			if s.BlocksCount() != 1 || s.NextBlockStartPosition() != first {
				t.Fatalf("\t%s\tTest %d:\tShould not parse the padded block: blocks %d next %d", failed, testID, s.BlocksCount(), s.NextBlockStartPosition())
			}
			t.Logf("\t%s\tTest %d:\tShould not parse the padded block.", success, testID)
		}
	}
}

func TestRawAccess(t *testing.T) {
	t.Log("Given the need to read and write raw partition bytes.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen growing and writing.", testID)
		{
			backing := store.NewMemory()
			s := newStore(t, backing)

			if err := s.Grow(4096); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to grow: %v", failed, testID, err)
			}

			if c, _ := s.Capacity(); c != 4096 {
				t.Fatalf("\t%s\tTest %d:\tShould report the grown capacity: got %d", failed, testID, c)
			}
			t.Logf("\t%s\tTest %d:\tShould report the grown capacity.", success, testID)

			s.WriteAt(200, []byte("hello"))
			got, err := s.ReadAt(198, 9)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read: %v", failed, testID, err)
			}

			exp := []byte{0, 0, 'h', 'e', 'l', 'l', 'o', 0, 0}
			if !bytes.Equal(got, exp) {
				t.Fatalf("\t%s\tTest %d:\tShould read back zero padded bytes: got %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould read back zero padded bytes.", success, testID)
		}
	}
}
