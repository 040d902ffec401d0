package state

import (
	"errors"
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/accounts"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// Transaction deduplication window and tolerated clock drift for client
// supplied creation times, in nanoseconds.
const (
	TxWindowNs       uint64 = 24 * 60 * 60 * 1_000_000_000
	PermittedDriftNs uint64 = 2 * 60 * 1_000_000_000
)

// ErrOverflow is returned when a transfer would push an amount or a balance
// past the largest representable value.
var ErrOverflow = errors.New("balance overflow")

// TransferArgs describes a transfer from an account the caller controls.
// Optional fields are nil when absent.
type TransferArgs struct {
	From      database.Account
	To        database.Account
	Amount    uint64
	Fee       *uint64
	Memo      []byte
	CreatedAt *uint64
}

// Transfer moves tokens from the caller's account and returns the number of
// blocks in the log after the transfer is committed. Transferring to the
// minting account burns the tokens and carries no fee.
func (s *State) Transfer(args TransferArgs) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(args.Memo) > database.MemoBytesMax {
		return 0, &TransferError{Kind: MemoTooLarge, Message: "the memo field is too large"}
	}

	now := s.now()
	if err := checkCreatedAt(args.CreatedAt, now); err != nil {
		return 0, err
	}

	balance, err := s.accounts.Balance(args.From)
	if err != nil {
		return 0, err
	}

	var fee uint64
	switch {
	case args.To.IsMinting():
		if args.Fee != nil && *args.Fee != 0 {
			return 0, &TransferError{Kind: BadFee, ExpectedFee: 0}
		}
		if minBurn := min(database.TransferFee, balance); args.Amount < minBurn {
			return 0, &TransferError{Kind: BadBurn, MinBurnAmount: minBurn}
		}

	default:
		if args.Fee != nil && *args.Fee != database.TransferFee {
			return 0, &TransferError{Kind: BadFee, ExpectedFee: database.TransferFee}
		}
		fee = database.TransferFee
	}

	total := args.Amount + fee
	if total < args.Amount {
		return 0, &TransferError{Kind: GenericError, Message: "amount plus fee overflows"}
	}

	if balance < total {
		return 0, &TransferError{Kind: InsufficientFunds, Balance: balance}
	}

	op := func() error {
		return s.stageTransfer(args.From, args.To, args.Amount, fee, args.Memo, createdAt(args.CreatedAt, now))
	}

	if _, err := s.executeLocked("transfer", op); err != nil {
		return 0, err
	}

	return s.store.BlocksCount(), nil
}

// Mint issues new tokens into the account.
func (s *State) Mint(to database.Account, amount uint64, memo []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := func() error {
		return s.stageMint(to, amount, memo)
	}

	if _, err := s.executeLocked("mint", op); err != nil {
		return 0, err
	}

	return s.store.BlocksCount(), nil
}

// =============================================================================

func (s *State) stageMint(to database.Account, amount uint64, memo []byte) error {
	if to.IsMinting() {
		return errors.New("can't mint into the minting account")
	}

	return s.stageTransfer(database.MintingAccount, to, amount, 0, memo, s.now())
}

// stageTransfer stages a transfer record with the balances after the transfer
// embedded. Nothing is staged when the debit or the credit would overflow.
func (s *State) stageTransfer(from database.Account, to database.Account, amount uint64, fee uint64, memo []byte, createdAt uint64) error {
	tr := database.Transfer{
		From:      from,
		To:        to,
		Amount:    amount,
		Fee:       fee,
		CreatedAt: createdAt,
		Memo:      memo,
	}

	debit := amount + fee
	if debit < amount {
		return fmt.Errorf("transfer of %d plus fee %d: %w", amount, fee, ErrOverflow)
	}

	if !from.IsMinting() {
		balance, err := s.accounts.Balance(from)
		if err != nil {
			return err
		}
		if balance < debit {
			return &accounts.InsufficientFundsError{Account: from, Balance: balance, Needed: debit}
		}
		tr.BalanceFromAfter = balance - debit
	}

	if !to.IsMinting() {
		balance, err := s.accounts.Balance(to)
		if err != nil {
			return err
		}
		if balance+amount < balance {
			return fmt.Errorf("crediting %d to %s with balance %d: %w", amount, to, balance, ErrOverflow)
		}
		tr.BalanceToAfter = balance + amount
	}

	_, err := s.stage(database.LabelTokenTransfer, tr)
	return err
}

func checkCreatedAt(createdAt *uint64, now uint64) error {
	if createdAt == nil {
		return nil
	}

	if *createdAt+TxWindowNs+PermittedDriftNs < now {
		return &TransferError{Kind: TooOld}
	}

	if *createdAt > now+PermittedDriftNs {
		return &TransferError{Kind: CreatedInFuture, LedgerTime: now}
	}

	return nil
}

func createdAt(createdAt *uint64, now uint64) uint64 {
	if createdAt == nil {
		return now
	}
	return *createdAt
}
