package database_test

import (
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestKinds(t *testing.T) {
	t.Log("Given the need to dispatch entries by kind.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mapping labels to kinds.", testID)
		{
			for _, k := range []database.Kind{
				database.KindTokenTransfer,
				database.KindTokenApproval,
				database.KindReputationChange,
				database.KindReputationAge,
				database.KindProviderRegister,
				database.KindUserRegister,
				database.KindProviderProfile,
				database.KindProviderOffering,
				database.KindContractSignRequest,
				database.KindContractSignReply,
			} {
				if got := database.KindOf(k.Label()); got != k {
					t.Fatalf("\t%s\tTest %d:\tShould map %q back to its kind: got %v", failed, testID, k.Label(), got)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould map every label back to its kind.", success, testID)

			if got := database.KindOf("RewardDistr"); got != database.KindUnrecognized {
				t.Fatalf("\t%s\tTest %d:\tShould treat foreign labels as unrecognized: got %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould treat foreign labels as unrecognized.", success, testID)
		}
	}
}

func TestAccounts(t *testing.T) {
	t.Log("Given the need to parse account strings.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen parsing a lower case owner with subaccount.", testID)
		{
			a, err := database.ToAccount("0xdd6b972ffcc631a62cae1bb9d80b7ff429c8eba4.0A")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould parse the account: %v", failed, testID, err)
			}

			exp := database.Account{Owner: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", Subaccount: "0a"}
			if a != exp {
				t.Fatalf("\t%s\tTest %d:\tShould normalize the account: got %+v", failed, testID, a)
			}
			t.Logf("\t%s\tTest %d:\tShould normalize the account.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen parsing invalid accounts.", testID)
		{
			for _, s := range []string{"bill", "0x1234", "0xdd6b972ffcc631a62cae1bb9d80b7ff429c8eba4.zz"} {
				if _, err := database.ToAccount(s); err == nil {
					t.Fatalf("\t%s\tTest %d:\tShould reject %q.", failed, testID, s)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould reject invalid accounts.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen checking the minting account.", testID)
		{
			if !database.MintingAccount.IsMinting() {
				t.Fatalf("\t%s\tTest %d:\tShould recognize the minting account.", failed, testID)
			}
			if (database.Account{Owner: database.MintingAccount.Owner, Subaccount: "01"}).IsMinting() {
				t.Fatalf("\t%s\tTest %d:\tShould not treat a minting subaccount as minting.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould recognize only the minting account.", success, testID)
		}
	}
}

func TestRecords(t *testing.T) {
	t.Log("Given the need to content address records.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen encoding a negative reputation change.", testID)
		{
			rc := database.NewReputationChange([]byte{1, 2, 3}, -42)

			id1, data, err := database.Encode(rc)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould encode: %v", failed, testID, err)
			}

			id2, _, _ := database.Encode(rc)
			if string(id1) != string(id2) || len(id1) != 32 {
				t.Fatalf("\t%s\tTest %d:\tShould produce a stable 32 byte id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a stable 32 byte id.", success, testID)

			got, err := database.DecodeReputationChange(data)
			if err != nil || got.Delta() != -42 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the signed delta: got %d, %v", failed, testID, got.Delta(), err)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the signed delta.", success, testID)
		}
	}
}

func TestRewards(t *testing.T) {
	const secs = uint64(1_000_000_000)

	tt := []struct {
		name string
		now  uint64
		exp  uint64
	}{
		{name: "before-first-block", now: 0, exp: 50 * database.TokenDecimalsDiv},
		{name: "first-era", now: database.FirstBlockTimestampNs + 600*secs, exp: 50 * database.TokenDecimalsDiv},
		{name: "second-era", now: database.FirstBlockTimestampNs + 210_000*600*secs, exp: 25 * database.TokenDecimalsDiv},
	}

	t.Log("Given the need to compute the block reward.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen at %s.", testID, tst.name)
				{
					if got := database.RewardPerBlock(tst.now); got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould get %d: got %d", failed, testID, tst.exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould get %d.", success, testID, tst.exp)

					if got := database.RegistrationFee(tst.now); got != tst.exp/100 {
						t.Fatalf("\t%s\tTest %d:\tShould charge 1%% for registration: got %d", failed, testID, got)
					}
					t.Logf("\t%s\tTest %d:\tShould charge 1%% for registration.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
