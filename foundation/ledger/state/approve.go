package state

import (
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/approval"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// ApproveArgs describes an allowance an owner grants to a spender. Optional
// fields are nil when absent.
type ApproveArgs struct {
	Owner             database.Account
	Spender           database.Account
	Amount            uint64
	ExpiresAt         *uint64
	ExpectedAllowance *uint64
	Fee               *uint64
	Memo              []byte
	CreatedAt         *uint64
}

// Approve replaces the allowance the owner grants the spender and records the
// approval in the log. It returns the content id of the approval record.
// The checks run in a fixed order and the first failing check is returned.
func (s *State) Approve(args ApproveArgs) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if args.Fee == nil || *args.Fee != database.TransferFee {
		return nil, &ApproveError{Kind: BadFee, ExpectedFee: database.TransferFee}
	}

	if args.Owner.Owner == args.Spender.Owner {
		return nil, &ApproveError{Kind: SelfApproval, Message: "cannot approve transfers to self"}
	}

	if len(args.Memo) > database.MemoBytesMax {
		return nil, &ApproveError{Kind: MemoTooLarge, Message: "memo too large"}
	}

	balance, err := s.accounts.Balance(args.Owner)
	if err != nil {
		return nil, err
	}
	if balance < database.TransferFee {
		return nil, &ApproveError{Kind: InsufficientFunds, Balance: balance}
	}

	now := s.now()

	if args.ExpiresAt != nil && *args.ExpiresAt <= now {
		return nil, &ApproveError{Kind: Expired, LedgerTime: now}
	}

	if args.CreatedAt != nil && *args.CreatedAt > now {
		return nil, &ApproveError{Kind: CreatedInFuture, LedgerTime: now}
	}

	if args.ExpectedAllowance != nil {
		current, err := s.allowances.Get(args.Owner, args.Spender)
		if err != nil {
			return nil, err
		}
		if current.Amount != *args.ExpectedAllowance {
			return nil, &ApproveError{Kind: AllowanceChanged, CurrentAllowance: current.Amount}
		}
	}

	// A poisoned book could not take the new allowance, so nothing is logged.
	if s.allowances.Poisoned() {
		return nil, fmt.Errorf("approve: %w", approval.ErrPoisoned)
	}

	record := database.Approval{
		Approver:  args.Owner,
		Spender:   args.Spender,
		Allowance: args.Amount,
		Fee:       database.TransferFee,
		Memo:      args.Memo,
		CreatedAt: createdAt(args.CreatedAt, now),
	}
	if args.ExpiresAt != nil {
		record.ExpiresAt = *args.ExpiresAt
	}

	var id []byte
	op := func() error {
		var err error
		id, err = s.stage(database.LabelTokenApproval, record)
		return err
	}

	if _, err := s.executeLocked("approve", op); err != nil {
		return nil, &ApproveError{Kind: GenericError, Message: err.Error()}
	}

	next := approval.Allowance{Amount: record.Allowance, ExpiresAt: record.ExpiresAt}
	replace := func(approval.Allowance) (approval.Allowance, error) {
		return next, nil
	}

	if err := s.allowances.Update(args.Owner, args.Spender, replace); err != nil {
		return nil, fmt.Errorf("approval %x recorded but not applied: %w", id, err)
	}

	return id, nil
}

// Allowance returns what the spender may still move from the owner's account.
// An expired allowance is returned as recorded.
func (s *State) Allowance(owner database.Account, spender database.Account) (approval.Allowance, error) {
	return s.allowances.Get(owner, spender)
}

// Grants returns every allowance the owner has granted.
func (s *State) Grants(owner database.Account) ([]approval.Grant, error) {
	return s.allowances.Grants(owner)
}

// =============================================================================

// TransferFromArgs describes a spender moving tokens out of an owner's
// account under an allowance. Optional fields are nil when absent.
type TransferFromArgs struct {
	Spender   database.Account
	From      database.Account
	To        database.Account
	Amount    uint64
	Fee       *uint64
	Memo      []byte
	CreatedAt *uint64
}

// TransferFrom moves tokens from the owner's account on behalf of the spender.
// Both amount and fee are taken from the allowance and from the owner's
// balance. It returns the number of blocks in the log after the transfer is
// committed.
func (s *State) TransferFrom(args TransferFromArgs) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fee := database.TransferFee
	if args.Fee != nil {
		if *args.Fee != database.TransferFee {
			return 0, &TransferError{Kind: BadFee, ExpectedFee: database.TransferFee}
		}
		fee = *args.Fee
	}

	if len(args.Memo) > database.MemoBytesMax {
		return 0, &TransferError{Kind: MemoTooLarge, Message: "memo too large"}
	}

	now := s.now()

	current, err := s.allowances.Get(args.From, args.Spender)
	if err != nil {
		return 0, err
	}

	allowed := current.Amount
	if current.Expired(now) {
		allowed = 0
	}

	total := args.Amount + fee
	if total < args.Amount {
		return 0, &TransferError{Kind: GenericError, Message: "amount plus fee overflows"}
	}

	if allowed < total {
		return 0, &TransferError{Kind: InsufficientAllowance, Allowance: allowed}
	}

	balance, err := s.accounts.Balance(args.From)
	if err != nil {
		return 0, err
	}
	if balance < total {
		return 0, &TransferError{Kind: InsufficientFunds, Balance: balance}
	}

	op := func() error {
		return s.stageTransfer(args.From, args.To, args.Amount, fee, args.Memo, createdAt(args.CreatedAt, now))
	}

	if _, err := s.executeLocked("transfer_from", op); err != nil {
		return 0, &TransferError{Kind: GenericError, Message: err.Error()}
	}

	next := approval.Allowance{Amount: allowed - total, ExpiresAt: current.ExpiresAt}
	decrement := func(approval.Allowance) (approval.Allowance, error) {
		return next, nil
	}

	if err := s.allowances.Update(args.From, args.Spender, decrement); err != nil {
		return 0, fmt.Errorf("transfer recorded but allowance not updated: %w", err)
	}

	return s.store.BlocksCount(), nil
}
