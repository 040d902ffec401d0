package state

import (
	"fmt"
)

// ErrorKind identifies why a token operation was refused.
type ErrorKind int

// Set of token operation failures.
const (
	GenericError ErrorKind = iota
	BadFee
	BadBurn
	InsufficientFunds
	InsufficientAllowance
	Expired
	TooOld
	CreatedInFuture
	AllowanceChanged
	SelfApproval
	MemoTooLarge
)

var kindNames = map[ErrorKind]string{
	GenericError:          "GenericError",
	BadFee:                "BadFee",
	BadBurn:               "BadBurn",
	InsufficientFunds:     "InsufficientFunds",
	InsufficientAllowance: "InsufficientAllowance",
	Expired:               "Expired",
	TooOld:                "TooOld",
	CreatedInFuture:       "CreatedInFuture",
	AllowanceChanged:      "AllowanceChanged",
	SelfApproval:          "SelfApproval",
	MemoTooLarge:          "MemoTooLarge",
}

// String implements the fmt.Stringer interface.
func (k ErrorKind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MarshalText implements the encoding.TextMarshaler interface.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// =============================================================================

// ApproveError is returned when an approval is refused. Only the field that
// matches the kind is set.
type ApproveError struct {
	Kind             ErrorKind `json:"kind"`
	ExpectedFee      uint64    `json:"expected_fee,omitempty"`
	Balance          uint64    `json:"balance,omitempty"`
	LedgerTime       uint64    `json:"ledger_time,omitempty"`
	CurrentAllowance uint64    `json:"current_allowance,omitempty"`
	Message          string    `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *ApproveError) Error() string {
	switch e.Kind {
	case BadFee:
		return fmt.Sprintf("approve: bad fee, expected %d", e.ExpectedFee)
	case InsufficientFunds:
		return fmt.Sprintf("approve: insufficient funds, balance %d", e.Balance)
	case Expired:
		return fmt.Sprintf("approve: expiry is not after ledger time %d", e.LedgerTime)
	case CreatedInFuture:
		return fmt.Sprintf("approve: created after ledger time %d", e.LedgerTime)
	case AllowanceChanged:
		return fmt.Sprintf("approve: allowance changed, current allowance %d", e.CurrentAllowance)
	}
	return fmt.Sprintf("approve: %s: %s", e.Kind, e.Message)
}

// TransferError is returned when a transfer or a transfer on behalf of an
// owner is refused. Only the field that matches the kind is set.
type TransferError struct {
	Kind          ErrorKind `json:"kind"`
	ExpectedFee   uint64    `json:"expected_fee,omitempty"`
	MinBurnAmount uint64    `json:"min_burn_amount,omitempty"`
	Balance       uint64    `json:"balance,omitempty"`
	Allowance     uint64    `json:"allowance,omitempty"`
	LedgerTime    uint64    `json:"ledger_time,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	switch e.Kind {
	case BadFee:
		return fmt.Sprintf("transfer: bad fee, expected %d", e.ExpectedFee)
	case BadBurn:
		return fmt.Sprintf("transfer: bad burn, minimum burn amount %d", e.MinBurnAmount)
	case InsufficientFunds:
		return fmt.Sprintf("transfer: insufficient funds, balance %d", e.Balance)
	case InsufficientAllowance:
		return fmt.Sprintf("transfer: insufficient allowance, allowance %d", e.Allowance)
	case TooOld:
		return "transfer: created too long ago"
	case CreatedInFuture:
		return fmt.Sprintf("transfer: created after ledger time %d", e.LedgerTime)
	}
	return fmt.Sprintf("transfer: %s: %s", e.Kind, e.Message)
}
