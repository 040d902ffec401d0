package state

import (
	"errors"
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
)

// RegisterProvider records a node provider identity. The signature must be
// made over the public key itself.
func (s *State) RegisterProvider(pubkey []byte, sig []byte) (string, error) {
	return s.register(database.LabelProviderRegister, pubkey, sig)
}

// RegisterUser records a user identity. The signature must be made over the
// public key itself.
func (s *State) RegisterUser(pubkey []byte, sig []byte) (string, error) {
	return s.register(database.LabelUserRegister, pubkey, sig)
}

func (s *State) register(label string, pubkey []byte, sig []byte) (string, error) {
	id, err := verify(pubkey, pubkey, sig)
	if err != nil {
		return "", err
	}

	var fee uint64
	op := func() error {

		// The very first registrations are free, there is nothing to pay with.
		if s.store.BlocksCount() > 0 {
			fee = database.RegistrationFee(s.now())
			if err := s.chargeFees(id, fee, nil); err != nil {
				return fmt.Errorf("charging registration fee: %w", err)
			}
		}

		return s.store.Append(label, pubkey, sig)
	}

	if _, err := s.execute("register", op); err != nil {
		return "", err
	}

	return fmt.Sprintf("registered %s as %s, charged %d e9s", id.Principal(), label, fee), nil
}

// UpdateProfile records the latest profile of a registered provider.
func (s *State) UpdateProfile(pubkey []byte, payload []byte, sig []byte) (string, error) {
	return s.publish(database.LabelProviderProfile, pubkey, payload, sig)
}

// UpdateOffering records the latest offering of a registered provider.
func (s *State) UpdateOffering(pubkey []byte, payload []byte, sig []byte) (string, error) {
	return s.publish(database.LabelProviderOffering, pubkey, payload, sig)
}

func (s *State) publish(label string, pubkey []byte, payload []byte, sig []byte) (string, error) {
	id, err := verify(pubkey, payload, sig)
	if err != nil {
		return "", err
	}

	_, value, err := database.Encode(database.SignedPayload{Payload: payload, Signature: sig})
	if err != nil {
		return "", err
	}

	fee := database.UpdateFee(s.now())
	op := func() error {
		if !s.registry.isProvider(pubkey) {
			return fmt.Errorf("provider %s is not registered", id.Principal())
		}
		if err := s.chargeFees(id, fee, nil); err != nil {
			return fmt.Errorf("charging update fee: %w", err)
		}
		return s.store.Append(label, pubkey, value)
	}

	if _, err := s.execute("publish", op); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s updated, charged %d e9s", label, fee), nil
}

// AgeReputations records a decay of every reputation score by ppm parts per
// million.
func (s *State) AgeReputations(ppm uint64) error {
	if ppm == 0 {
		return errors.New("reputation aging of zero ppm")
	}

	op := func() error {
		_, err := s.stage(database.LabelReputationAge, database.ReputationAge{ReductionsPPM: ppm})
		return err
	}

	_, err := s.execute("age_reputations", op)
	return err
}

// =============================================================================

func verify(pubkey []byte, payload []byte, sig []byte) (signature.Identity, error) {
	id, err := signature.IdentityFromBytes(pubkey)
	if err != nil {
		return signature.Identity{}, err
	}

	if err := id.Verify(payload, sig); err != nil {
		return signature.Identity{}, fmt.Errorf("verifying signature: %w", err)
	}

	return id, nil
}
