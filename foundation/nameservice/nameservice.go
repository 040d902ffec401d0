// Package nameservice reads a keys folder and maps ledger accounts to the
// key file names they were loaded from.
package nameservice

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"strings"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyExt is the extension of private key files.
const keyExt = ".ecdsa"

// NameService maintains a map of accounts for name lookup and the keys
// they belong to.
type NameService struct {
	accounts map[database.Account]string
	keys     map[string]*ecdsa.PrivateKey
}

// New constructs a name service with the keys found under root.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[database.Account]string),
		keys:     make(map[string]*ecdsa.PrivateKey),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != keyExt {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		name := strings.TrimSuffix(filepath.Base(fileName), keyExt)
		account := database.IdentityAccount(signature.NewIdentity(privateKey))

		ns.accounts[account] = name
		ns.keys[name] = privateKey

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified account.
func (ns *NameService) Lookup(account database.Account) string {
	name, exists := ns.accounts[account]
	if !exists {
		return account.String()
	}
	return name
}

// Key returns the private key loaded under the name.
func (ns *NameService) Key(name string) (*ecdsa.PrivateKey, error) {
	key, exists := ns.keys[name]
	if !exists {
		return nil, fmt.Errorf("no key named %q", name)
	}
	return key, nil
}

// Copy returns a copy of the map of names and accounts.
func (ns *NameService) Copy() map[database.Account]string {
	return maps.Clone(ns.accounts)
}
