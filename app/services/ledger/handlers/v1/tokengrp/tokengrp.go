// Package tokengrp maintains the group of handlers for token balances,
// transfers and approvals.
package tokengrp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/errs"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/nameservice"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"go.uber.org/zap"
)

// Recent transaction page limits.
const (
	defaultRecent = 50
	maxRecent     = 1_000
)

// Handlers manages the set of token endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Core  *ledger.Core
	NS    *nameservice.NameService
}

// Balances returns the balance of one account, or of every account when
// none is named.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if param := web.Param(r, "account"); param != "" {
		account, err := toAccount(param)
		if err != nil {
			return err
		}

		bal, err := h.State.Balance(account)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ledger.Balance{Account: account, Name: h.name(account), Balance: bal}, http.StatusOK)
	}

	balances, err := h.State.Balances()
	if err != nil {
		return err
	}

	list := make([]ledger.Balance, 0, len(balances))
	for account, bal := range balances {
		list = append(list, ledger.Balance{Account: account, Name: h.name(account), Balance: bal})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Account.String() < list[j].Account.String() })

	return web.Respond(ctx, w, list, http.StatusOK)
}

// Transfer executes a signed transfer.
func (h Handlers) Transfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var sr ledger.SignedRequest
	if err := web.Decode(r, &sr); err != nil {
		return err
	}

	idx, err := h.Core.Transfer(sr)
	if err != nil {
		return wrap(err)
	}

	h.Log.Infow("transfer", "traceid", web.GetTraceID(ctx), "block_index", idx.BlockIndex)

	return web.Respond(ctx, w, idx, http.StatusOK)
}

// Approve executes a signed approval.
func (h Handlers) Approve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var sr ledger.SignedRequest
	if err := web.Decode(r, &sr); err != nil {
		return err
	}

	id, err := h.Core.Approve(sr)
	if err != nil {
		return wrap(err)
	}

	return web.Respond(ctx, w, id, http.StatusOK)
}

// TransferFrom executes a signed transfer under an allowance.
func (h Handlers) TransferFrom(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var sr ledger.SignedRequest
	if err := web.Decode(r, &sr); err != nil {
		return err
	}

	idx, err := h.Core.TransferFrom(sr)
	if err != nil {
		return wrap(err)
	}

	return web.Respond(ctx, w, idx, http.StatusOK)
}

// Allowance returns the allowance an owner granted a spender.
func (h Handlers) Allowance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	owner, err := toAccount(web.Param(r, "owner"))
	if err != nil {
		return err
	}

	spender, err := toAccount(web.Param(r, "spender"))
	if err != nil {
		return err
	}

	a, err := h.State.Allowance(owner, spender)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, ledger.Allowance{Owner: owner, Spender: spender, Allowance: a}, http.StatusOK)
}

// Grants returns every allowance an owner granted.
func (h Handlers) Grants(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	owner, err := toAccount(web.Param(r, "owner"))
	if err != nil {
		return err
	}

	grants, err := h.State.Grants(owner)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, grants, http.StatusOK)
}

// Recent returns the latest transfers, newest first.
func (h Handlers) Recent(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n := defaultRecent
	if v := r.URL.Query().Get("n"); v != "" {
		var err error
		n, err = strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errs.NewTrusted(fmt.Errorf("invalid count %q", v), http.StatusBadRequest)
		}
	}
	n = min(n, maxRecent)

	recent := h.State.RecentTransactions(n)

	txs := make([]ledger.Transaction, len(recent))
	for i, rt := range recent {
		txs[i] = ledger.NewTransaction(rt)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// =============================================================================

func (h Handlers) name(account database.Account) string {
	if h.NS == nil {
		return ""
	}
	if name := h.NS.Lookup(account); name != account.String() {
		return name
	}
	return ""
}

func toAccount(s string) (database.Account, error) {
	account, err := database.ToAccount(s)
	if err != nil {
		return database.Account{}, errs.NewTrusted(fmt.Errorf("account %q: %w", s, err), http.StatusBadRequest)
	}
	return account, nil
}

// wrap leaves validation failures for the errors middleware and classifies
// everything else as a ledger failure.
func wrap(err error) error {
	if web.IsFieldErrors(err) {
		return err
	}
	return errs.Ledger(err)
}
