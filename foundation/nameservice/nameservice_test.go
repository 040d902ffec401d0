package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestLookup(t *testing.T) {
	t.Log("Given the need to name accounts by their key files.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the folder holds one key.", testID)
		{
			root := t.TempDir()

			key, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a key: %v", failed, testID, err)
			}
			if err := crypto.SaveECDSA(filepath.Join(root, "node.ecdsa"), key); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to save the key: %v", failed, testID, err)
			}

			ns, err := nameservice.New(root)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the folder: %v", failed, testID, err)
			}

			account := database.IdentityAccount(signature.NewIdentity(key))
			if name := ns.Lookup(account); name != "node" {
				t.Fatalf("\t%s\tTest %d:\tShould name the account: got %q", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould name the account.", success, testID)

			if _, err := ns.Key("node"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould return the key: %v", failed, testID, err)
			}
			if _, err := ns.Key("other"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail for an unknown name.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould return keys by name.", success, testID)

			if got := ns.Lookup(database.MintingAccount); got != database.MintingAccount.String() {
				t.Fatalf("\t%s\tTest %d:\tShould fall back to the account string: got %q", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould fall back to the account string.", success, testID)
		}
	}
}
