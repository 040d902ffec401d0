package cmd

import (
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	subaccount string
	memo       string
	fee        uint64
	expiresAt  uint64
	expected   uint64
)

var balanceCmd = &cobra.Command{
	Use:   "balance [account]",
	Short: "Print the balance of an account, your own by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  balanceRun,
}

var transferCmd = &cobra.Command{
	Use:   "transfer <to> <amount>",
	Short: "Transfer tokens from your account",
	Args:  cobra.ExactArgs(2),
	RunE:  transferRun,
}

var approveCmd = &cobra.Command{
	Use:   "approve <spender> <amount>",
	Short: "Allow a spender to transfer tokens from your account",
	Args:  cobra.ExactArgs(2),
	RunE:  approveRun,
}

var allowanceCmd = &cobra.Command{
	Use:   "allowance <owner> <spender>",
	Short: "Print the allowance an owner granted a spender",
	Args:  cobra.ExactArgs(2),
	RunE:  allowanceRun,
}

var transferFromCmd = &cobra.Command{
	Use:   "transfer-from <from> <to> <amount>",
	Short: "Transfer tokens under an allowance granted to you",
	Args:  cobra.ExactArgs(3),
	RunE:  transferFromRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd, transferCmd, approveCmd, allowanceCmd, transferFromCmd)

	for _, c := range []*cobra.Command{transferCmd, approveCmd, transferFromCmd} {
		c.Flags().StringVar(&subaccount, "subaccount", "", "Your hex subaccount.")
		c.Flags().StringVar(&memo, "memo", "", "Hex memo of at most 32 bytes.")
		c.Flags().Uint64Var(&fee, "fee", 0, "Expected fee in e9s.")
	}
	approveCmd.Flags().Uint64Var(&expiresAt, "expires-at", 0, "Expiry time in unix nanoseconds.")
	approveCmd.Flags().Uint64Var(&expected, "expected-allowance", 0, "Current allowance the approval must replace.")
}

func balanceRun(cmd *cobra.Command, args []string) error {
	var account database.Account
	switch len(args) {
	case 1:
		a, err := database.ToAccount(args[0])
		if err != nil {
			return err
		}
		account = a

	default:
		key, err := loadKey()
		if err != nil {
			return err
		}
		account = ownAccount(key, "")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	bal, err := newClient().Balance(ctx, account)
	if err != nil {
		return err
	}

	fmt.Println("For Account:", account)
	fmt.Println(formatTokens(bal.Balance))
	return nil
}

func transferRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	to, err := database.ToAccount(args[0])
	if err != nil {
		return err
	}

	amount, err := parseTokens(args[1])
	if err != nil {
		return err
	}

	m, err := decodeMemo()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	idx, err := newClient().Transfer(ctx, key, ledger.TransferRequest{
		FromSubaccount: subaccount,
		To:             to,
		Amount:         amount,
		Fee:            optional(fee),
		Memo:           m,
		CreatedAtTime:  nowNs(),
	})
	if err != nil {
		return err
	}

	fmt.Println("block index:", idx.BlockIndex)
	return nil
}

func approveRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	spender, err := database.ToAccount(args[0])
	if err != nil {
		return err
	}

	amount, err := parseTokens(args[1])
	if err != nil {
		return err
	}

	m, err := decodeMemo()
	if err != nil {
		return err
	}

	req := ledger.ApproveRequest{
		FromSubaccount: subaccount,
		Spender:        spender,
		Amount:         amount,
		ExpiresAt:      optional(expiresAt),
		Fee:            optional(fee),
		Memo:           m,
		CreatedAtTime:  nowNs(),
	}
	if cmd.Flags().Changed("expected-allowance") {
		req.ExpectedAllowance = &expected
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	id, err := newClient().Approve(ctx, key, req)
	if err != nil {
		return err
	}

	fmt.Println("approval id:", id.ID)
	return nil
}

func allowanceRun(cmd *cobra.Command, args []string) error {
	owner, err := database.ToAccount(args[0])
	if err != nil {
		return err
	}

	spender, err := database.ToAccount(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newClient().Allowance(ctx, owner, spender)
	if err != nil {
		return err
	}

	fmt.Println(formatTokens(a.Amount))
	if a.ExpiresAt != 0 {
		fmt.Println("expires at:", a.ExpiresAt)
	}
	return nil
}

func transferFromRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	from, err := database.ToAccount(args[0])
	if err != nil {
		return err
	}

	to, err := database.ToAccount(args[1])
	if err != nil {
		return err
	}

	amount, err := parseTokens(args[2])
	if err != nil {
		return err
	}

	m, err := decodeMemo()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	idx, err := newClient().TransferFrom(ctx, key, ledger.TransferFromRequest{
		SpenderSubaccount: subaccount,
		From:              from,
		To:                to,
		Amount:            amount,
		Fee:               optional(fee),
		Memo:              m,
		CreatedAtTime:     nowNs(),
	})
	if err != nil {
		return err
	}

	fmt.Println("block index:", idx.BlockIndex)
	return nil
}

func decodeMemo() (hexutil.Bytes, error) {
	if memo == "" {
		return nil, nil
	}

	m, err := hexutil.Decode(memo)
	if err != nil {
		return nil, fmt.Errorf("memo: %w", err)
	}

	if len(m) > database.MemoBytesMax {
		return nil, fmt.Errorf("memo: %d bytes is more than %d", len(m), database.MemoBytesMax)
	}

	return m, nil
}
