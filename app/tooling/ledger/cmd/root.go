// Package cmd contains the ledger command line tool.
package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	url         string
	accountName string
	accountPath string
	dataPath    string
	timeout     time.Duration
)

const keyExtension = ".ecdsa"

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the ledger service.")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zledger/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "zledger/local.bin", "Path to the local ledger file.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Deadline for the whole command.")
}

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Work with the marketplace ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected by the arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// =============================================================================

func privateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}
	return filepath.Join(accountPath, name)
}

func loadKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(privateKeyPath())
	if err != nil {
		return nil, fmt.Errorf("loading key %s: %w", privateKeyPath(), err)
	}
	return key, nil
}

func ownAccount(key *ecdsa.PrivateKey, subaccount string) database.Account {
	account := database.IdentityAccount(signature.NewIdentity(key))
	account.Subaccount = subaccount
	return account
}

func newClient() *ledger.Client {
	return ledger.NewClient(url, timeout)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func nowNs() *uint64 {
	now := uint64(time.Now().UnixNano())
	return &now
}

// parseTokens converts a decimal token amount such as "1.5" into e9s.
func parseTokens(s string) (uint64, error) {
	whole, frac, _ := strings.Cut(s, ".")

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}

	if len(frac) > 9 {
		return 0, fmt.Errorf("amount %q: more than 9 decimals", s)
	}

	var f uint64
	if frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		if f, err = strconv.ParseUint(frac, 10, 64); err != nil {
			return 0, fmt.Errorf("amount %q: %w", s, err)
		}
	}

	if w > (^uint64(0)-f)/database.TokenDecimalsDiv {
		return 0, fmt.Errorf("amount %q: too large", s)
	}

	return w*database.TokenDecimalsDiv + f, nil
}

func formatTokens(e9s uint64) string {
	return fmt.Sprintf("%d.%09d", e9s/database.TokenDecimalsDiv, e9s%database.TokenDecimalsDiv)
}

func optional(v uint64) *uint64 {
	if v == 0 {
		return nil
	}
	return &v
}
