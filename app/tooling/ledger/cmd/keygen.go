package cmd

import (
	"fmt"
	"os"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new key pair",
	RunE:  keygenRun,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func keygenRun(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privateKeyPath()); err == nil {
		return fmt.Errorf("key %s already exists", privateKeyPath())
	}

	if err := os.MkdirAll(accountPath, 0755); err != nil {
		return err
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if err := crypto.SaveECDSA(privateKeyPath(), key); err != nil {
		return err
	}

	id := signature.NewIdentity(key)
	fmt.Println("key:      ", privateKeyPath())
	fmt.Println("principal:", id.Principal())
	fmt.Println("pubkey:   ", hexutil.Encode(id.Bytes()))

	return nil
}
