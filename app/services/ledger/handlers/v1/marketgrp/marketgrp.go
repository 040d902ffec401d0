// Package marketgrp maintains the group of handlers for provider and user
// registration, provider listings, contracts and reputation.
package marketgrp

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/errs"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Handlers manages the set of marketplace endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Core  *ledger.Core
}

// RegisterProvider registers the signer as a node provider.
func (h Handlers) RegisterProvider(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.signed(ctx, w, r, h.Core.RegisterProvider)
}

// RegisterUser registers the signer as a user.
func (h Handlers) RegisterUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.signed(ctx, w, r, h.Core.RegisterUser)
}

// UpdateProfile publishes the signer's provider profile.
func (h Handlers) UpdateProfile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.signed(ctx, w, r, h.Core.UpdateProfile)
}

// UpdateOffering publishes the signer's provider offering.
func (h Handlers) UpdateOffering(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.signed(ctx, w, r, h.Core.UpdateOffering)
}

// ContractReply records a provider's reply to a contract request.
func (h Handlers) ContractReply(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.signed(ctx, w, r, h.Core.ContractSignReply)
}

// ContractRequest records a contract request.
func (h Handlers) ContractRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var sr ledger.SignedRequest
	if err := web.Decode(r, &sr); err != nil {
		return err
	}

	created, err := h.Core.ContractSignRequest(sr)
	if err != nil {
		return errs.Ledger(err)
	}

	h.Log.Infow("contract request", "traceid", web.GetTraceID(ctx), "contract_id", created.ContractID)

	return web.Respond(ctx, w, created, http.StatusOK)
}

// Contracts returns the open contract requests, optionally only those
// addressed to one provider.
func (h Handlers) Contracts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var provider []byte
	if param := web.Param(r, "provider"); param != "" {
		var err error
		if provider, err = pubkey(param); err != nil {
			return err
		}
	}

	pending := h.State.ContractsPending(provider)

	contracts := make([]ledger.Contract, len(pending))
	for i, p := range pending {
		contracts[i] = ledger.NewContract(p)
	}

	return web.Respond(ctx, w, contracts, http.StatusOK)
}

// Profile returns the latest profile of a provider.
func (h Handlers) Profile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.published(ctx, w, r, h.State.Profile)
}

// Offering returns the latest offering of a provider.
func (h Handlers) Offering(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.published(ctx, w, r, h.State.Offering)
}

// Reputations returns the reputation of one identity, or of every identity
// when none is named.
func (h Handlers) Reputations(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if param := web.Param(r, "pubkey"); param != "" {
		key, err := pubkey(param)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ledger.Reputation{Pubkey: key, Reputation: h.State.Reputation(key)}, http.StatusOK)
	}

	reps := h.State.Reputations()

	list := make([]ledger.Reputation, 0, len(reps))
	for key, rep := range reps {
		list = append(list, ledger.Reputation{Pubkey: []byte(key), Reputation: rep})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Reputation > list[j].Reputation })

	return web.Respond(ctx, w, list, http.StatusOK)
}

// Counts returns the number of registered providers and users.
func (h Handlers) Counts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	providers, users := h.State.Counts()
	return web.Respond(ctx, w, ledger.Counts{Providers: providers, Users: users}, http.StatusOK)
}

// Principal returns the public key registered under a principal.
func (h Handlers) Principal(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	principal := web.Param(r, "principal")

	key, exists := h.State.PublicKey(principal)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("principal %q is not registered", principal), http.StatusNotFound)
	}

	return web.Respond(ctx, w, ledger.Principal{Principal: principal, Pubkey: key}, http.StatusOK)
}

// =============================================================================

func (h Handlers) signed(ctx context.Context, w http.ResponseWriter, r *http.Request, op func(ledger.SignedRequest) (ledger.Message, error)) error {
	var sr ledger.SignedRequest
	if err := web.Decode(r, &sr); err != nil {
		return err
	}

	msg, err := op(sr)
	if err != nil {
		return errs.Ledger(err)
	}

	return web.Respond(ctx, w, msg, http.StatusOK)
}

func (h Handlers) published(ctx context.Context, w http.ResponseWriter, r *http.Request, lookup func([]byte) ([]byte, bool)) error {
	key, err := pubkey(web.Param(r, "pubkey"))
	if err != nil {
		return err
	}

	payload, exists := lookup(key)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("provider %s has published nothing", hexutil.Encode(key)), http.StatusNotFound)
	}

	return web.Respond(ctx, w, ledger.Published{Pubkey: key, Payload: payload}, http.StatusOK)
}

func pubkey(s string) ([]byte, error) {
	key, err := hexutil.Decode(s)
	if err != nil {
		return nil, errs.NewTrusted(fmt.Errorf("pubkey %q: %w", s, err), http.StatusBadRequest)
	}
	return key, nil
}
