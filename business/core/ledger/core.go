// Package ledger provides the business API of the ledger service: it opens
// signed client requests, guards against their replay and hands them to the
// ledger state.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
)

// ErrDuplicate is returned when a signed request was already executed.
var ErrDuplicate = errors.New("request was already executed")

// Core manages the set of API's for ledger access.
type Core struct {
	state *state.State
	now   func() uint64

	mu   sync.Mutex
	seen map[string]uint64
}

// NewCore constructs a core for ledger api access.
func NewCore(st *state.State, now func() uint64) *Core {
	return &Core{
		state: st,
		now:   now,
		seen:  make(map[string]uint64),
	}
}

// Transfer executes a signed transfer from the caller's account.
func (c *Core) Transfer(sr SignedRequest) (BlockIndex, error) {
	var req TransferRequest
	id, err := sr.Open(&req)
	if err != nil {
		return BlockIndex{}, err
	}

	if !req.To.IsAccount() {
		return BlockIndex{}, fmt.Errorf("invalid destination account %q", req.To)
	}

	var idx uint64
	exec := func() error {
		idx, err = c.state.Transfer(state.TransferArgs{
			From:      database.Account{Owner: id.Principal(), Subaccount: req.FromSubaccount},
			To:        req.To,
			Amount:    req.Amount,
			Fee:       req.Fee,
			Memo:      req.Memo,
			CreatedAt: req.CreatedAtTime,
		})
		return err
	}

	if err := c.once(sr, *req.CreatedAtTime, exec); err != nil {
		return BlockIndex{}, err
	}

	return BlockIndex{BlockIndex: idx}, nil
}

// Approve executes a signed approval granted by the caller's account.
func (c *Core) Approve(sr SignedRequest) (ApprovalID, error) {
	var req ApproveRequest
	id, err := sr.Open(&req)
	if err != nil {
		return ApprovalID{}, err
	}

	if !req.Spender.IsAccount() {
		return ApprovalID{}, fmt.Errorf("invalid spender account %q", req.Spender)
	}

	var approvalID []byte
	exec := func() error {
		approvalID, err = c.state.Approve(state.ApproveArgs{
			Owner:             database.Account{Owner: id.Principal(), Subaccount: req.FromSubaccount},
			Spender:           req.Spender,
			Amount:            req.Amount,
			ExpiresAt:         req.ExpiresAt,
			ExpectedAllowance: req.ExpectedAllowance,
			Fee:               req.Fee,
			Memo:              req.Memo,
			CreatedAt:         req.CreatedAtTime,
		})
		return err
	}

	if err := c.once(sr, *req.CreatedAtTime, exec); err != nil {
		return ApprovalID{}, err
	}

	return ApprovalID{ID: approvalID}, nil
}

// TransferFrom executes a signed transfer the caller makes under an
// allowance.
func (c *Core) TransferFrom(sr SignedRequest) (BlockIndex, error) {
	var req TransferFromRequest
	id, err := sr.Open(&req)
	if err != nil {
		return BlockIndex{}, err
	}

	if !req.From.IsAccount() || !req.To.IsAccount() {
		return BlockIndex{}, fmt.Errorf("invalid accounts %q -> %q", req.From, req.To)
	}

	var idx uint64
	exec := func() error {
		idx, err = c.state.TransferFrom(state.TransferFromArgs{
			Spender:   database.Account{Owner: id.Principal(), Subaccount: req.SpenderSubaccount},
			From:      req.From,
			To:        req.To,
			Amount:    req.Amount,
			Fee:       req.Fee,
			Memo:      req.Memo,
			CreatedAt: req.CreatedAtTime,
		})
		return err
	}

	if err := c.once(sr, *req.CreatedAtTime, exec); err != nil {
		return BlockIndex{}, err
	}

	return BlockIndex{BlockIndex: idx}, nil
}

// =============================================================================

// RegisterProvider registers the caller as a node provider. The request is
// signed over the caller's public key.
func (c *Core) RegisterProvider(sr SignedRequest) (Message, error) {
	msg, err := c.state.RegisterProvider(sr.Pubkey, sr.Signature)
	return Message{Message: msg}, err
}

// RegisterUser registers the caller as a user.
func (c *Core) RegisterUser(sr SignedRequest) (Message, error) {
	msg, err := c.state.RegisterUser(sr.Pubkey, sr.Signature)
	return Message{Message: msg}, err
}

// UpdateProfile publishes the caller's provider profile.
func (c *Core) UpdateProfile(sr SignedRequest) (Message, error) {
	msg, err := c.state.UpdateProfile(sr.Pubkey, sr.Payload, sr.Signature)
	return Message{Message: msg}, err
}

// UpdateOffering publishes the caller's provider offering.
func (c *Core) UpdateOffering(sr SignedRequest) (Message, error) {
	msg, err := c.state.UpdateOffering(sr.Pubkey, sr.Payload, sr.Signature)
	return Message{Message: msg}, err
}

// ContractSignRequest records a contract request signed by the requester.
func (c *Core) ContractSignRequest(sr SignedRequest) (ContractCreated, error) {
	id, msg, err := c.state.ContractSignRequest(sr.Pubkey, sr.Payload, sr.Signature)
	if err != nil {
		return ContractCreated{}, err
	}
	return ContractCreated{ContractID: id, Message: msg}, nil
}

// ContractSignReply records a provider's reply to a contract request.
func (c *Core) ContractSignReply(sr SignedRequest) (Message, error) {
	msg, err := c.state.ContractSignReply(sr.Pubkey, sr.Payload, sr.Signature)
	return Message{Message: msg}, err
}

// =============================================================================

// once runs exec unless a request with the same signature already executed.
// Signatures are remembered for as long as their creation time is accepted
// by the ledger.
func (c *Core) once(sr SignedRequest, createdAt uint64, exec func() error) error {
	key := signature.HashString(sr.Signature)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, at := range c.seen {
		if at+state.TxWindowNs+state.PermittedDriftNs < now {
			delete(c.seen, k)
		}
	}

	if _, exists := c.seen[key]; exists {
		return ErrDuplicate
	}

	if err := exec(); err != nil {
		return err
	}

	c.seen[key] = createdAt
	return nil
}
