package ledger

import (
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/approval"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/contract"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransferRequest is the signed payload of a transfer. The caller's
// principal owns the source account.
type TransferRequest struct {
	FromSubaccount string           `json:"from_subaccount,omitempty"`
	To             database.Account `json:"to"`
	Amount         uint64           `json:"amount"`
	Fee            *uint64          `json:"fee,omitempty"`
	Memo           hexutil.Bytes    `json:"memo,omitempty"`
	CreatedAtTime  *uint64          `json:"created_at_time" validate:"required"`
}

// ApproveRequest is the signed payload of an approval. The caller's
// principal owns the approving account.
type ApproveRequest struct {
	FromSubaccount    string           `json:"from_subaccount,omitempty"`
	Spender           database.Account `json:"spender"`
	Amount            uint64           `json:"amount"`
	ExpectedAllowance *uint64          `json:"expected_allowance,omitempty"`
	ExpiresAt         *uint64          `json:"expires_at,omitempty"`
	Fee               *uint64          `json:"fee,omitempty"`
	Memo              hexutil.Bytes    `json:"memo,omitempty"`
	CreatedAtTime     *uint64          `json:"created_at_time" validate:"required"`
}

// TransferFromRequest is the signed payload of a transfer made under an
// allowance. The caller's principal owns the spender account.
type TransferFromRequest struct {
	SpenderSubaccount string           `json:"spender_subaccount,omitempty"`
	From              database.Account `json:"from"`
	To                database.Account `json:"to"`
	Amount            uint64           `json:"amount"`
	Fee               *uint64          `json:"fee,omitempty"`
	Memo              hexutil.Bytes    `json:"memo,omitempty"`
	CreatedAtTime     *uint64          `json:"created_at_time" validate:"required"`
}

// =============================================================================

// BlockIndex is the response of an operation returning the block count.
type BlockIndex struct {
	BlockIndex uint64 `json:"block_index"`
}

// ApprovalID is the response of an approval.
type ApprovalID struct {
	ID hexutil.Bytes `json:"id"`
}

// Message is the response of an operation returning a status text.
type Message struct {
	Message string `json:"message"`
}

// ContractCreated is the response of a contract sign request.
type ContractCreated struct {
	ContractID hexutil.Bytes `json:"contract_id"`
	Message    string        `json:"message"`
}

// Balance is the balance of one account.
type Balance struct {
	Account database.Account `json:"account"`
	Name    string           `json:"name,omitempty"`
	Balance uint64           `json:"balance"`
}

// Allowance is the allowance of an owner and spender pair.
type Allowance struct {
	Owner   database.Account `json:"owner"`
	Spender database.Account `json:"spender"`
	approval.Allowance
}

// Transaction is a recent transfer.
type Transaction struct {
	From             database.Account `json:"from"`
	To               database.Account `json:"to"`
	Amount           uint64           `json:"amount"`
	Fee              uint64           `json:"fee"`
	Memo             hexutil.Bytes    `json:"memo,omitempty"`
	CreatedAt        uint64           `json:"created_at_time"`
	BlockTimestampNs uint64           `json:"block_timestamp_ns"`
	BlockOffset      uint64           `json:"block_offset"`
}

// NewTransaction converts a recent transaction for the API.
func NewTransaction(rt state.RecentTransaction) Transaction {
	return Transaction{
		From:             rt.Transfer.From,
		To:               rt.Transfer.To,
		Amount:           rt.Transfer.Amount,
		Fee:              rt.Transfer.Fee,
		Memo:             rt.Transfer.Memo,
		CreatedAt:        rt.Transfer.CreatedAt,
		BlockTimestampNs: rt.BlockTimestampNs,
		BlockOffset:      rt.BlockOffset,
	}
}

// Contract is an open contract request.
type Contract struct {
	ContractID         hexutil.Bytes `json:"contract_id"`
	RequesterPubkey    hexutil.Bytes `json:"requester_pubkey"`
	RequesterSSHPubkey string        `json:"requester_ssh_pubkey"`
	RequesterContact   string        `json:"requester_contact"`
	ProviderPubkey     hexutil.Bytes `json:"provider_pubkey"`
	OfferingID         string        `json:"offering_id"`
	RegionName         string        `json:"region_name,omitempty"`
	InstanceConfig     string        `json:"instance_config,omitempty"`
	PaymentAmount      uint64        `json:"payment_amount"`
	DurationSeconds    uint64        `json:"duration_seconds"`
	StartTime          uint64        `json:"start_time,omitempty"`
	Memo               string        `json:"memo,omitempty"`
}

// NewContract converts an open contract request for the API.
func NewContract(p contract.Pending) Contract {
	req := p.Request
	return Contract{
		ContractID:         p.ContractID,
		RequesterPubkey:    req.RequesterPubkey,
		RequesterSSHPubkey: req.RequesterSSHPubkey,
		RequesterContact:   req.RequesterContact,
		ProviderPubkey:     req.ProviderPubkey,
		OfferingID:         req.OfferingID,
		RegionName:         req.RegionName,
		InstanceConfig:     req.InstanceConfig,
		PaymentAmount:      req.PaymentAmount,
		DurationSeconds:    req.DurationSeconds,
		StartTime:          req.StartTime,
		Memo:               req.Memo,
	}
}

// Counts is the number of registered identities.
type Counts struct {
	Providers int `json:"providers"`
	Users     int `json:"users"`
}

// Reputation is the reputation of one identity.
type Reputation struct {
	Pubkey     hexutil.Bytes `json:"pubkey"`
	Reputation int64         `json:"reputation"`
}

// Principal maps a principal to its public key.
type Principal struct {
	Principal string        `json:"principal"`
	Pubkey    hexutil.Bytes `json:"pubkey"`
}

// Published is a provider profile or offering as signed by the provider.
type Published struct {
	Pubkey  hexutil.Bytes `json:"pubkey"`
	Payload hexutil.Bytes `json:"payload"`
}
