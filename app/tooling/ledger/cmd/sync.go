package cmd

import (
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/spf13/cobra"
)

var verbose bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the remote ledger into the local ledger file",
	RunE:  fetchRun,
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the local ledger file to the remote ledger",
	RunE:  pushRun,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print sync progress.")
}

func fetchRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := replica.NewClient(replica.ClientConfig{URL: url, Timeout: timeout})

	strg, err := openLocal(cmd, client)
	if err != nil {
		return err
	}
	defer strg.Close()

	res, err := replica.NewSyncer(client, progress).FetchAll(ctx, strg)
	if err != nil {
		return err
	}

	fmt.Printf("fetched %d bytes, local log ends at %d\n", res.Bytes, res.Position)
	return nil
}

func pushRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := replica.NewClient(replica.ClientConfig{URL: url, Timeout: timeout})

	strg, err := openLocal(cmd, client)
	if err != nil {
		return err
	}
	defer strg.Close()

	res, err := replica.NewSyncer(client, progress).Push(ctx, strg, key)
	if err != nil {
		return err
	}

	fmt.Printf("pushed %d bytes in %d chunks: %s\n", res.Bytes, res.Chunks, res.Status)
	return nil
}

// openLocal opens the local ledger file with the remote's data start.
func openLocal(cmd *cobra.Command, client *replica.Client) (*store.Store, error) {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	md, err := client.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading remote metadata: %w", err)
	}

	backing, err := store.OpenFile(dataPath)
	if err != nil {
		return nil, err
	}

	strg, err := store.New(store.Config{
		Backing:   backing,
		DataStart: md.DataStart,
		EvHandler: progress,
	})
	if err != nil {
		backing.Close()
		return nil, err
	}

	return strg, nil
}

func progress(v string, args ...any) {
	if verbose {
		fmt.Printf(v+"\n", args...)
	}
}
