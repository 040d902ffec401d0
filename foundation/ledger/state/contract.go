package state

import (
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/contract"
)

// ContractSignRequest records a contract request signed by the requester and
// returns the new contract id.
func (s *State) ContractSignRequest(pubkey []byte, payload []byte, sig []byte) ([]byte, string, error) {
	var (
		id  []byte
		msg string
	)

	op := func() error {
		var err error
		id, msg, err = s.protocol.SignRequest(pubkey, payload, sig)
		return err
	}

	if _, err := s.execute("contract_sign_request", op); err != nil {
		return nil, "", err
	}

	return id, msg, nil
}

// ContractSignReply records the provider's reply to an open contract request.
func (s *State) ContractSignReply(pubkey []byte, payload []byte, sig []byte) (string, error) {
	var msg string

	op := func() error {
		var err error
		msg, err = s.protocol.SignReply(pubkey, payload, sig)
		return err
	}

	if _, err := s.execute("contract_sign_reply", op); err != nil {
		return "", err
	}

	return msg, nil
}

// ContractsPending returns the open contract requests. A nil provider
// returns the requests of every provider.
func (s *State) ContractsPending(provider []byte) []contract.Pending {
	return s.protocol.Pending(provider)
}
