package state

import (
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/accounts"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
)

// feeCharger lets the contract protocol charge fees through the state
// without knowing how transfers are recorded.
type feeCharger struct {
	s *State
}

// ChargeFees implements contract.FeeCharger.
func (fc feeCharger) ChargeFees(payer signature.Identity, amount uint64, memo []byte) error {
	return fc.s.chargeFees(payer, amount, memo)
}

// chargeFees stages a transfer of amount from the payer to the minting
// account and a reputation bump for the payer of the same size, capped at
// MaxReputationBump. A zero amount stages nothing.
func (s *State) chargeFees(payer signature.Identity, amount uint64, memo []byte) error {
	if amount == 0 {
		return nil
	}

	account := database.IdentityAccount(payer)

	balance, err := s.accounts.Balance(account)
	if err != nil {
		return err
	}

	if balance < amount {
		return &accounts.InsufficientFundsError{Account: account, Balance: balance, Needed: amount}
	}

	tr := database.Transfer{
		From:             account,
		To:               database.MintingAccount,
		Amount:           amount,
		CreatedAt:        s.now(),
		Memo:             memo,
		BalanceFromAfter: balance - amount,
	}

	if _, err := s.stage(database.LabelTokenTransfer, tr); err != nil {
		return err
	}

	bump := database.MaxReputationBump
	if amount < uint64(bump) {
		bump = int64(amount)
	}

	if _, err := s.stage(database.LabelReputationChange, database.NewReputationChange(payer.Bytes(), bump)); err != nil {
		return err
	}

	s.evHandler("state: chargeFees: charged %d e9s to %s", amount, account)

	return nil
}
