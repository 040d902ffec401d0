package ledger

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrBadSignature is returned when a request is not signed by the key it
// names.
var ErrBadSignature = errors.New("request signature does not verify")

// SignedRequest carries a payload with the caller's public key and the
// signature made over the payload bytes.
type SignedRequest struct {
	Pubkey    hexutil.Bytes `json:"pubkey" validate:"required"`
	Payload   hexutil.Bytes `json:"payload" validate:"required"`
	Signature hexutil.Bytes `json:"signature" validate:"required"`
}

// Sign builds a signed request over the payload bytes.
func Sign(payload []byte, key *ecdsa.PrivateKey) (SignedRequest, error) {
	sig, err := signature.Sign(payload, key)
	if err != nil {
		return SignedRequest{}, err
	}

	return SignedRequest{
		Pubkey:    signature.NewIdentity(key).Bytes(),
		Payload:   payload,
		Signature: sig,
	}, nil
}

// SignJSON builds a signed request over the JSON encoding of v.
func SignJSON(v any, key *ecdsa.PrivateKey) (SignedRequest, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return SignedRequest{}, err
	}

	return Sign(payload, key)
}

// Verify returns the identity that signed the request.
func (sr SignedRequest) Verify() (signature.Identity, error) {
	id, err := signature.IdentityFromBytes(sr.Pubkey)
	if err != nil {
		return signature.Identity{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if err := id.Verify(sr.Payload, sr.Signature); err != nil {
		return signature.Identity{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	return id, nil
}

// Open verifies the request and decodes its JSON payload into v, which is
// then validated.
func (sr SignedRequest) Open(v any) (signature.Identity, error) {
	id, err := sr.Verify()
	if err != nil {
		return signature.Identity{}, err
	}

	if err := json.Unmarshal(sr.Payload, v); err != nil {
		return signature.Identity{}, fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := web.Check(v); err != nil {
		return signature.Identity{}, err
	}

	return id, nil
}
