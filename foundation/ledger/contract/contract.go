// Package contract implements the two phase contract signing protocol. A
// user records a signed request to rent a provider's offering and the
// provider records a signed reply. Both sides pay a fee of one percent of
// the offered payment to themselves and gain reputation for it.
package contract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of errors returned by the protocol.
var (
	ErrUnknownContract = errors.New("contract sign request not found")
	ErrContractClosed  = errors.New("contract sign request already replied")
)

// Fee returns the signing fee for a contract paying payment e9s.
func Fee(payment uint64) uint64 {
	return payment / 100
}

// =============================================================================

// FeeCharger charges a fee to the payer's own account and bumps the payer's
// reputation by the amount charged.
type FeeCharger interface {
	ChargeFees(payer signature.Identity, amount uint64, memo []byte) error
}

// Ledger stages entries for the next committed block.
type Ledger interface {
	Append(label string, key []byte, value []byte) error
}

// Balances reads the balance of an account.
type Balances interface {
	Balance(account database.Account) (uint64, error)
}

// Protocol validates and records contract requests and replies.
type Protocol struct {
	ledger   Ledger
	fees     FeeCharger
	balances Balances
	cache    *Cache
}

// New constructs the protocol over its collaborators.
func New(ledger Ledger, fees FeeCharger, balances Balances, cache *Cache) *Protocol {
	return &Protocol{
		ledger:   ledger,
		fees:     fees,
		balances: balances,
		cache:    cache,
	}
}

// SignRequest records a request signed by the requester. The contract id is
// the SHA-256 of the stored signed payload.
func (p *Protocol) SignRequest(pubkey []byte, payload []byte, sig []byte) (contractID []byte, msg string, err error) {
	requester, err := verify(pubkey, payload, sig)
	if err != nil {
		return nil, "", err
	}

	req, err := database.DecodeContractSignRequest(payload)
	if err != nil {
		return nil, "", err
	}

	if !bytes.Equal(req.RequesterPubkey, pubkey) {
		return nil, "", fmt.Errorf("contract requester %s does not match the signer %s", hexutil.Encode(req.RequesterPubkey), requester)
	}

	fee := Fee(req.PaymentAmount)

	account := database.IdentityAccount(requester)
	balance, err := p.balances.Balance(account)
	if err != nil {
		return nil, "", err
	}

	if need := req.PaymentAmount + fee; balance < need {
		return nil, "", fmt.Errorf("signing of this contract requires at least %d e9s, requester %s has only %d e9s", need, account, balance)
	}

	contractID, value, err := database.Encode(database.SignedPayload{Payload: payload, Signature: sig})
	if err != nil {
		return nil, "", err
	}

	if _, status := p.cache.Lookup(contractID); status != NoRequest {
		return nil, "", fmt.Errorf("contract %s is already %s", hexutil.Encode(contractID), status)
	}

	if err := p.fees.ChargeFees(requester, fee, memo(req.Memo)); err != nil {
		return nil, "", fmt.Errorf("charging contract request fee: %w", err)
	}

	if err := p.ledger.Append(database.LabelContractSignReq, contractID, value); err != nil {
		return nil, "", err
	}

	msg = fmt.Sprintf("contract signing req %s submitted, charged %d e9s as a fee and bumped the reputation accordingly", hexutil.Encode(contractID), fee)
	return contractID, msg, nil
}

// SignReply records the provider's reply to an open request. The reply must
// be signed by the provider key named in the request. Rejecting a contract
// costs the same fee as accepting it.
func (p *Protocol) SignReply(pubkey []byte, payload []byte, sig []byte) (string, error) {
	provider, err := verify(pubkey, payload, sig)
	if err != nil {
		return "", err
	}

	reply, err := database.DecodeContractSignReply(payload)
	if err != nil {
		return "", err
	}

	req, status := p.cache.Lookup(reply.ContractID)
	switch status {
	case NoRequest:
		return "", fmt.Errorf("contract %s: %w", hexutil.Encode(reply.ContractID), ErrUnknownContract)
	case Closed:
		return "", fmt.Errorf("contract %s: %w", hexutil.Encode(reply.ContractID), ErrContractClosed)
	}

	if !bytes.Equal(req.ProviderPubkey, pubkey) {
		return "", fmt.Errorf("contract signing reply signed and submitted by %s does not match the provider public key %s from contract req %s",
			provider, hexutil.Encode(req.ProviderPubkey), hexutil.Encode(reply.ContractID))
	}

	_, value, err := database.Encode(database.SignedPayload{Payload: payload, Signature: sig})
	if err != nil {
		return "", err
	}

	fee := Fee(req.PaymentAmount)
	if err := p.fees.ChargeFees(provider, fee, memo(reply.RequestMemo)); err != nil {
		return "", fmt.Errorf("charging contract reply fee: %w", err)
	}

	if err := p.ledger.Append(database.LabelContractSignReply, reply.ContractID, value); err != nil {
		return "", err
	}

	return fmt.Sprintf("contract signing reply submitted, charged %d e9s as a fee", fee), nil
}

// Pending returns the open requests, optionally only those addressed to the
// provider.
func (p *Protocol) Pending(provider []byte) []Pending {
	return p.cache.Pending(provider)
}

// =============================================================================

func verify(pubkey []byte, payload []byte, sig []byte) (signature.Identity, error) {
	id, err := signature.IdentityFromBytes(pubkey)
	if err != nil {
		return signature.Identity{}, err
	}

	if err := id.Verify(payload, sig); err != nil {
		return signature.Identity{}, fmt.Errorf("verifying signature: %w", err)
	}

	return id, nil
}

// memo truncates free form text to fit in a transfer memo.
func memo(s string) []byte {
	b := []byte(s)
	if len(b) > database.MemoBytesMax {
		b = b[:database.MemoBytesMax]
	}
	return b
}
