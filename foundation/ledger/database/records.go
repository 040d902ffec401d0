package database

import (
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/rlp"
)

// Token amounts are counted in e9s, a billionth of one token.
const (
	TokenDecimalsDiv   uint64 = 1_000_000_000
	TokenTotalSupply          = 21_000_000 * TokenDecimalsDiv
	TransferFee        uint64 = 1_000_000
	MemoBytesMax              = 32
	MaxReputationBump         = int64(10 * TokenDecimalsDiv)
	ReputationAgingPPM uint64 = 1_000
)

// Encode serializes a record and returns its content id along with the
// bytes. The content id is the SHA-256 of the bytes.
func Encode(v any) (id []byte, data []byte, err error) {
	data, err = rlp.EncodeToBytes(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %T: %w", v, err)
	}

	return signature.Hash(data), data, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return v, fmt.Errorf("decoding %T: %w", v, err)
	}
	return v, nil
}

// =============================================================================

// Transfer moves tokens between accounts. The balances after the transfer
// are embedded so the record can be checked without replaying the log.
type Transfer struct {
	From             Account
	To               Account
	Amount           uint64
	Fee              uint64
	CreatedAt        uint64
	Memo             []byte
	BalanceFromAfter uint64
	BalanceToAfter   uint64
}

// DecodeTransfer parses a transfer record.
func DecodeTransfer(data []byte) (Transfer, error) {
	return decode[Transfer](data)
}

// Approval grants a spender an allowance over the approver's tokens.
// A zero ExpiresAt means the allowance never expires.
type Approval struct {
	Approver  Account
	Spender   Account
	Allowance uint64
	ExpiresAt uint64
	Fee       uint64
	Memo      []byte
	CreatedAt uint64
}

// DecodeApproval parses an approval record.
func DecodeApproval(data []byte) (Approval, error) {
	return decode[Approval](data)
}

// =============================================================================

// ReputationChange adjusts the reputation of one identity.
type ReputationChange struct {
	Identity []byte
	Negative bool
	Amount   uint64
}

// NewReputationChange constructs a change from a signed delta.
func NewReputationChange(identity []byte, delta int64) ReputationChange {
	if delta < 0 {
		return ReputationChange{Identity: identity, Negative: true, Amount: uint64(-delta)}
	}
	return ReputationChange{Identity: identity, Amount: uint64(delta)}
}

// Delta returns the signed change.
func (rc ReputationChange) Delta() int64 {
	if rc.Negative {
		return -int64(rc.Amount)
	}
	return int64(rc.Amount)
}

// DecodeReputationChange parses a reputation change record.
func DecodeReputationChange(data []byte) (ReputationChange, error) {
	return decode[ReputationChange](data)
}

// ReputationAge decays every reputation score by the given parts per million.
type ReputationAge struct {
	ReductionsPPM uint64
}

// DecodeReputationAge parses a reputation aging record.
func DecodeReputationAge(data []byte) (ReputationAge, error) {
	return decode[ReputationAge](data)
}

// =============================================================================

// SignedPayload carries opaque serialized bytes with the signature made
// over them.
type SignedPayload struct {
	Payload   []byte
	Signature []byte
}

// DecodeSignedPayload parses a signed payload.
func DecodeSignedPayload(data []byte) (SignedPayload, error) {
	return decode[SignedPayload](data)
}

// ContractSignRequest is a user's offer to rent an offering from a provider.
// A zero StartTime means the contract starts once provisioned.
type ContractSignRequest struct {
	RequesterPubkey    []byte
	RequesterSSHPubkey string
	RequesterContact   string
	ProviderPubkey     []byte
	OfferingID         string
	RegionName         string
	InstanceConfig     string
	PaymentAmount      uint64
	DurationSeconds    uint64
	StartTime          uint64
	Memo               string
}

// DecodeContractSignRequest parses a contract sign request payload.
func DecodeContractSignRequest(data []byte) (ContractSignRequest, error) {
	return decode[ContractSignRequest](data)
}

// ContractSignReply is the provider's answer to a contract sign request.
type ContractSignReply struct {
	ContractID      []byte
	RequesterPubkey []byte
	RequestMemo     string
	Accepted        bool
	ResponseText    string
	ResponseDetails string
}

// DecodeContractSignReply parses a contract sign reply payload.
func DecodeContractSignReply(data []byte) (ContractSignReply, error) {
	return decode[ContractSignReply](data)
}
