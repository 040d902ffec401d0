package approval_test

import (
	"errors"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/approval"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	owner   = database.NewAccount("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	spender = database.NewAccount("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

func TestBook(t *testing.T) {
	t.Log("Given the need to track allowances.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen granting and spending an allowance.", testID)
		{
			b := approval.New()

			set := func(approval.Allowance) (approval.Allowance, error) {
				return approval.Allowance{Amount: 500, ExpiresAt: 90}, nil
			}
			if err := b.Update(owner, spender, set); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to grant: %v", failed, testID, err)
			}

			a, _ := b.Get(owner, spender)
			if a.Amount != 500 || !a.Expired(90) || a.Expired(89) {
				t.Fatalf("\t%s\tTest %d:\tShould hold the grant: got %+v", failed, testID, a)
			}
			t.Logf("\t%s\tTest %d:\tShould hold the grant.", success, testID)

			if a, _ := b.Get(spender, owner); a.Amount != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be directional.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be directional.", success, testID)

			errRefused := errors.New("refused")
			refuse := func(approval.Allowance) (approval.Allowance, error) {
				return approval.Allowance{Amount: 1}, errRefused
			}
			if err := b.Update(owner, spender, refuse); !errors.Is(err, errRefused) {
				t.Fatalf("\t%s\tTest %d:\tShould return the refusal: %v", failed, testID, err)
			}
			if a, _ := b.Get(owner, spender); a.Amount != 500 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the grant untouched on refusal.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the grant untouched on refusal.", success, testID)

			revoke := func(approval.Allowance) (approval.Allowance, error) {
				return approval.Allowance{}, nil
			}
			b.Update(owner, spender, revoke)
			if grants, _ := b.Grants(owner); len(grants) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould drop zero allowances: got %v", failed, testID, grants)
			}
			t.Logf("\t%s\tTest %d:\tShould drop zero allowances.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen an update panics.", testID)
		{
			b := approval.New()

			boom := func(approval.Allowance) (approval.Allowance, error) {
				panic("boom")
			}
			if err := b.Update(owner, spender, boom); !errors.Is(err, approval.ErrPoisoned) {
				t.Fatalf("\t%s\tTest %d:\tShould poison the book: %v", failed, testID, err)
			}
			if _, err := b.Get(owner, spender); !errors.Is(err, approval.ErrPoisoned) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse reads while poisoned: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould surface the poisoned book.", success, testID)
		}
	}
}
