// Package signature provides helper functions for handling the ledger
// identity and signature needs.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ledgerID is added to the recovery id of every signature. This makes it
// clear that the signature comes from the decent ledger.
const ledgerID = 29

// SignatureLength is the length of a signature in the [R|S|V] format.
const SignatureLength = crypto.SignatureLength

// =============================================================================

// Identity is the verifying key of a ledger participant.
type Identity struct {
	pub *ecdsa.PublicKey
}

// NewIdentity constructs the identity of the private key holder.
func NewIdentity(privateKey *ecdsa.PrivateKey) Identity {
	return Identity{pub: &privateKey.PublicKey}
}

// IdentityFromBytes parses a compressed secp256k1 public key.
func IdentityFromBytes(pubkey []byte) (Identity, error) {
	pub, err := crypto.DecompressPubkey(pubkey)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid public key %s: %w", hexutil.Encode(pubkey), err)
	}

	return Identity{pub: pub}, nil
}

// Bytes returns the compressed public key.
func (id Identity) Bytes() []byte {
	if id.pub == nil {
		return nil
	}
	return crypto.CompressPubkey(id.pub)
}

// String returns the hex encoded compressed public key.
func (id Identity) String() string {
	return hexutil.Encode(id.Bytes())
}

// Principal returns the address form of the identity used as the account
// owner on the ledger.
func (id Identity) Principal() string {
	return crypto.PubkeyToAddress(*id.pub).String()
}

// Verify checks the signature over data was produced by this identity.
func (id Identity) Verify(data []byte, sig []byte) error {
	if id.pub == nil {
		return errors.New("identity has no public key")
	}

	if len(sig) != SignatureLength {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	v := sig[crypto.RecoveryIDOffset] - ledgerID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	digest := stamp(data)

	raw := make([]byte, SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] = v

	publicKey, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return fmt.Errorf("recovering signer: %w", err)
	}

	if !bytes.Equal(crypto.CompressPubkey(publicKey), id.Bytes()) {
		return fmt.Errorf("signature was not produced by %s", id)
	}

	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), digest, raw[:crypto.RecoveryIDOffset]) {
		return errors.New("invalid signature")
	}

	return nil
}

// =============================================================================

// Sign uses the specified private key to sign the data.
func Sign(data []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(stamp(data), privateKey)
	if err != nil {
		return nil, err
	}

	sig[crypto.RecoveryIDOffset] += ledgerID
	return sig, nil
}

// Hash returns the SHA-256 content id of the data.
func Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HashString returns the hex encoded SHA-256 content id of the data.
func HashString(data []byte) string {
	return hexutil.Encode(Hash(data))
}

// stamp returns a hash of 32 bytes that represents this data with
// the ledger stamp embedded into the final hash.
func stamp(data []byte) []byte {

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	dataHash := crypto.Keccak256(data)

	// The stamp keeps signatures produced for this ledger from being
	// replayed anywhere else.
	prefix := []byte("\x19Decent Ledger Signed Message:\n32")

	return crypto.Keccak256(prefix, dataHash)
}
