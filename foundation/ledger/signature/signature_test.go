package signature_test

import (
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	pkHexKey  = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	principal = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	data := []byte("contract payload")

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	sig, err := signature.Sign(data, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	id, err := signature.IdentityFromBytes(signature.NewIdentity(pk).Bytes())
	if err != nil {
		t.Fatalf("Should be able to parse the compressed key: %s", err)
	}

	if err := id.Verify(data, sig); err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}

	if id.Principal() != principal {
		t.Logf("got: %s", id.Principal())
		t.Logf("exp: %s", principal)
		t.Fatalf("Should get back the right principal.")
	}

	if err := id.Verify([]byte("other payload"), sig); err == nil {
		t.Fatalf("Should reject a signature over different data.")
	}
}

func Test_WrongSigner(t *testing.T) {
	data := []byte("reply payload")

	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	sig, err := signature.Sign(data, signer)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if err := signature.NewIdentity(other).Verify(data, sig); err == nil {
		t.Fatalf("Should reject a signature from another key.")
	}
}

func Test_Hash(t *testing.T) {
	hash := "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	h := signature.HashString(nil)
	if h != hash {
		t.Logf("got: %s", h)
		t.Logf("exp: %s", hash)
		t.Fatalf("Should get back the right hash: %s", h[:6])
	}
}
