// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers/v1/ledgergrp"
	"github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers/v1/marketgrp"
	"github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers/v1/tokengrp"
	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/mid"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/events"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/nameservice"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	State       *state.State
	Core        *ledger.Core
	Source      *replica.Source
	NS          *nameservice.NameService
	Evts        *events.Events
	RateLimiter *mid.RateLimiter
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	lgh := ledgergrp.Handlers{
		Log:    cfg.Log,
		Source: cfg.Source,
		WS:     websocket.Upgrader{},
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodPost, version, "/ledger/data/fetch", lgh.DataFetch)
	app.Handle(http.MethodPost, version, "/ledger/data/push", lgh.DataPush)
	app.Handle(http.MethodGet, version, "/ledger/metadata", lgh.Metadata)
	app.Handle(http.MethodGet, version, "/ledger/root-key", lgh.RootKey)
	app.Handle(http.MethodGet, version, "/events", lgh.Events)

	// Operations that append to the log are rate limited per client.
	limit := mid.RateLimit(cfg.RateLimiter)

	tkh := tokengrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Core:  cfg.Core,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/balances", tkh.Balances)
	app.Handle(http.MethodGet, version, "/balances/:account", tkh.Balances)
	app.Handle(http.MethodGet, version, "/allowances/:owner", tkh.Grants)
	app.Handle(http.MethodGet, version, "/allowances/:owner/:spender", tkh.Allowance)
	app.Handle(http.MethodGet, version, "/transactions/recent", tkh.Recent)
	app.Handle(http.MethodPost, version, "/transfer", tkh.Transfer, limit)
	app.Handle(http.MethodPost, version, "/approve", tkh.Approve, limit)
	app.Handle(http.MethodPost, version, "/transfer-from", tkh.TransferFrom, limit)

	mkh := marketgrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Core:  cfg.Core,
	}

	app.Handle(http.MethodPost, version, "/providers/register", mkh.RegisterProvider, limit)
	app.Handle(http.MethodPost, version, "/users/register", mkh.RegisterUser, limit)
	app.Handle(http.MethodPost, version, "/providers/profile", mkh.UpdateProfile, limit)
	app.Handle(http.MethodPost, version, "/providers/offering", mkh.UpdateOffering, limit)
	app.Handle(http.MethodGet, version, "/providers/:pubkey/profile", mkh.Profile)
	app.Handle(http.MethodGet, version, "/providers/:pubkey/offering", mkh.Offering)
	app.Handle(http.MethodPost, version, "/contracts/request", mkh.ContractRequest, limit)
	app.Handle(http.MethodPost, version, "/contracts/reply", mkh.ContractReply, limit)
	app.Handle(http.MethodGet, version, "/contracts/pending", mkh.Contracts)
	app.Handle(http.MethodGet, version, "/contracts/pending/:provider", mkh.Contracts)
	app.Handle(http.MethodGet, version, "/reputations", mkh.Reputations)
	app.Handle(http.MethodGet, version, "/reputations/:pubkey", mkh.Reputations)
	app.Handle(http.MethodGet, version, "/counts", mkh.Counts)
	app.Handle(http.MethodGet, version, "/principals/:principal", mkh.Principal)
}
