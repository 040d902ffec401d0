package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	asUser   bool
	offering bool

	request  database.ContractSignRequest
	provider string
	payment  string

	accept  bool
	text    string
	details string

	mine bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register your key as a provider, or as a user with --user",
	Args:  cobra.NoArgs,
	RunE:  registerRun,
}

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish your provider profile, or your offering with --offering",
	Args:  cobra.ExactArgs(1),
	RunE:  publishRun,
}

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Request, answer and list contracts",
}

var contractRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request a contract from a provider",
	Args:  cobra.NoArgs,
	RunE:  contractRequestRun,
}

var contractReplyCmd = &cobra.Command{
	Use:   "reply <contract-id>",
	Short: "Answer a contract request addressed to you",
	Args:  cobra.ExactArgs(1),
	RunE:  contractReplyRun,
}

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the open contract requests",
	Args:  cobra.NoArgs,
	RunE:  contractListRun,
}

func init() {
	rootCmd.AddCommand(registerCmd, publishCmd, contractCmd)
	contractCmd.AddCommand(contractRequestCmd, contractReplyCmd, contractListCmd)

	registerCmd.Flags().BoolVar(&asUser, "user", false, "Register as a user instead of a provider.")
	publishCmd.Flags().BoolVar(&offering, "offering", false, "Publish the file as your offering.")

	f := contractRequestCmd.Flags()
	f.StringVar(&provider, "provider", "", "Hex public key of the provider.")
	f.StringVar(&request.OfferingID, "offering-id", "", "Offering to rent.")
	f.StringVar(&request.RegionName, "region", "", "Region of the instance.")
	f.StringVar(&request.InstanceConfig, "instance-config", "", "Instance configuration.")
	f.StringVar(&request.RequesterSSHPubkey, "ssh-pubkey", "", "SSH public key to install.")
	f.StringVar(&request.RequesterContact, "contact", "", "How the provider can reach you.")
	f.StringVar(&payment, "payment", "0", "Payment in tokens.")
	f.Uint64Var(&request.DurationSeconds, "duration", 0, "Duration in seconds.")
	f.Uint64Var(&request.StartTime, "start-time", 0, "Start time in unix nanoseconds.")
	f.StringVar(&request.Memo, "memo", "", "Free form memo.")
	contractRequestCmd.MarkFlagRequired("provider")
	contractRequestCmd.MarkFlagRequired("offering-id")

	contractReplyCmd.Flags().BoolVar(&accept, "accept", false, "Accept the request.")
	contractReplyCmd.Flags().StringVar(&text, "text", "", "Reply text.")
	contractReplyCmd.Flags().StringVar(&details, "details", "", "Reply details such as access instructions.")

	contractListCmd.Flags().BoolVar(&mine, "mine", false, "Only requests addressed to your key.")
	contractListCmd.Flags().StringVar(&provider, "provider", "", "Only requests addressed to this hex public key.")
}

func registerRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	msg, err := newClient().Register(ctx, key, !asUser)
	if err != nil {
		return err
	}

	fmt.Println(msg.Message)
	return nil
}

func publishRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	payload, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	msg, err := newClient().Publish(ctx, key, offering, payload)
	if err != nil {
		return err
	}

	fmt.Println(msg.Message)
	return nil
}

func contractRequestRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	if request.ProviderPubkey, err = hexutil.Decode(provider); err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	if request.PaymentAmount, err = parseTokens(payment); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	created, err := newClient().ContractRequest(ctx, key, request)
	if err != nil {
		return err
	}

	fmt.Println("contract id:", created.ContractID)
	fmt.Println(created.Message)
	return nil
}

func contractReplyRun(cmd *cobra.Command, args []string) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	contractID, err := hexutil.Decode(args[0])
	if err != nil {
		return fmt.Errorf("contract id: %w", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := newClient()

	// The reply echoes the requester and memo of the open request.
	pending, err := client.Contracts(ctx, signature.NewIdentity(key).Bytes())
	if err != nil {
		return err
	}

	reply := database.ContractSignReply{
		ContractID:      contractID,
		Accepted:        accept,
		ResponseText:    text,
		ResponseDetails: details,
	}

	var found bool
	for _, c := range pending {
		if bytes.Equal(c.ContractID, contractID) {
			reply.RequesterPubkey = c.RequesterPubkey
			reply.RequestMemo = c.Memo
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no open contract %s addressed to you", args[0])
	}

	msg, err := client.ContractReply(ctx, key, reply)
	if err != nil {
		return err
	}

	fmt.Println(msg.Message)
	return nil
}

func contractListRun(cmd *cobra.Command, args []string) error {
	var filter []byte
	switch {
	case mine:
		key, err := loadKey()
		if err != nil {
			return err
		}
		filter = signature.NewIdentity(key).Bytes()

	case provider != "":
		var err error
		if filter, err = hexutil.Decode(provider); err != nil {
			return fmt.Errorf("provider: %w", err)
		}
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	contracts, err := newClient().Contracts(ctx, filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(contracts)
}
