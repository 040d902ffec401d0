package database

import (
	"errors"
	"strings"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/common"
)

// MintingAccount is the reserved account tokens are issued from and burned
// to. It never holds a balance.
var MintingAccount = Account{Owner: "0x0000000000000000000000000000000000000000"}

// Account identifies a token holder on the ledger: an owner principal and
// an optional subaccount.
type Account struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"`
}

// NewAccount constructs the default account of the owner.
func NewAccount(owner string) Account {
	return Account{Owner: owner}
}

// IdentityAccount returns the default account of a signing identity.
func IdentityAccount(id signature.Identity) Account {
	return Account{Owner: id.Principal()}
}

// ToAccount converts the string form "owner[.subaccount]" into an account
// and validates both parts are hex-encoded correctly.
func ToAccount(s string) (Account, error) {
	owner, sub, _ := strings.Cut(s, ".")

	a := Account{Owner: owner, Subaccount: sub}
	if !a.IsAccount() {
		return Account{}, errors.New("invalid account format")
	}

	// Map keys compare exactly, so normalize to the checksum form.
	a.Owner = common.HexToAddress(owner).Hex()
	a.Subaccount = strings.ToLower(sub)

	return a, nil
}

// IsAccount verifies whether the underlying data represents a valid
// hex-encoded account.
func (a Account) IsAccount() bool {
	const addressLength = 20

	owner := a.Owner
	if has0xPrefix(owner) {
		owner = owner[2:]
	}

	if len(owner) != 2*addressLength || !isHex(owner) {
		return false
	}

	return a.Subaccount == "" || (len(a.Subaccount) <= 64 && isHex(a.Subaccount))
}

// IsMinting reports whether this is the minting account.
func (a Account) IsMinting() bool {
	return strings.EqualFold(a.Owner, MintingAccount.Owner) && a.Subaccount == ""
}

// String implements the fmt.Stringer interface.
func (a Account) String() string {
	if a.Subaccount == "" {
		return a.Owner
	}
	return a.Owner + "." + a.Subaccount
}

// =============================================================================

// has0xPrefix validates the account starts with a 0x.
func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// isHex validates whether each byte is valid hexadecimal string.
func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}

	for _, c := range []byte(s) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
