package state

import (
	"errors"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/approval"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestApprovePoisonedBook(t *testing.T) {
	t.Log("Given the need to keep the log and the allowance book in step.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the allowance book is poisoned.", testID)
		{
			now := func() uint64 { return database.FirstBlockTimestampNs + 1_000_000_000 }

			strg, err := store.New(store.Config{Backing: store.NewMemory(), DataStart: 128, Now: now})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the store: %v", failed, testID, err)
			}
			s, err := New(Config{Store: strg, Now: now})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state: %v", failed, testID, err)
			}

			owner := database.NewAccount("0x00000000000000000000000000000000000000aa")
			spender := database.NewAccount("0x00000000000000000000000000000000000000bb")

			if _, err := s.Mint(owner, 100*database.TransferFee, nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mint: %v", failed, testID, err)
			}

			err = s.allowances.Update(owner, spender, func(approval.Allowance) (approval.Allowance, error) {
				panic("half way through")
			})
			if !errors.Is(err, approval.ErrPoisoned) {
				t.Fatalf("\t%s\tTest %d:\tShould poison the book: %v", failed, testID, err)
			}

			blocks := strg.BlocksCount()
			fee := database.TransferFee
			_, err = s.Approve(ApproveArgs{Owner: owner, Spender: spender, Amount: 10, Fee: &fee})
			if !errors.Is(err, approval.ErrPoisoned) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse the approval: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse the approval.", success, testID)

			if got := strg.BlocksCount(); got != blocks {
				t.Fatalf("\t%s\tTest %d:\tShould not commit a block: got %d blocks, want %d", failed, testID, got, blocks)
			}
			t.Logf("\t%s\tTest %d:\tShould not commit a block.", success, testID)

			if _, err := s.Rebuild(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to rebuild: %v", failed, testID, err)
			}
			if _, err := s.Approve(ApproveArgs{Owner: owner, Spender: spender, Amount: 10, Fee: &fee}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould approve after a rebuild: %v", failed, testID, err)
			}
			if got := strg.BlocksCount(); got != blocks+1 {
				t.Fatalf("\t%s\tTest %d:\tShould commit one block: got %d blocks, want %d", failed, testID, got, blocks+1)
			}
			t.Logf("\t%s\tTest %d:\tShould approve after a rebuild.", success, testID)
		}
	}
}
