// Package ledgergrp maintains the group of handlers that serve the raw
// ledger log to replicas and stream ledger events.
package ledgergrp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/business/web/errs"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/events"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxPushBody bounds a pushed chunk once encoded.
const maxPushBody = 4 << 20

// Handlers manages the set of log sync endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Source *replica.Source
	WS     websocket.Upgrader
	Evts   *events.Events
}

// DataFetch returns the next range of the log.
func (h Handlers) DataFetch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req replica.FetchRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	c, data, err := h.Source.DataFetch(ctx, req.Cursor, req.BytesBefore)
	if err != nil {
		return errs.Ledger(err)
	}

	return web.Respond(ctx, w, replica.FetchResponse{Cursor: c, Data: data}, http.StatusOK)
}

// DataPush stores a chunk of log data from the authorized pusher.
func (h Handlers) DataPush(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxPushBody)

	var req replica.PushRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	status, err := h.Source.DataPush(ctx, req)
	if err != nil {
		return errs.Ledger(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: status,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Metadata returns the log metadata signed by the node key.
func (h Handlers) Metadata(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sm, err := h.Source.SignedMetadata(ctx)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, sm, http.StatusOK)
}

// RootKey returns the key the metadata is signed with.
func (h Handlers) RootKey(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	key := h.Source.RootKey()
	if key == nil {
		return errs.NewTrusted(errors.New("node has no root key"), http.StatusNotFound)
	}

	resp := struct {
		Pubkey hexutil.Bytes `json:"pubkey"`
	}{
		Pubkey: key,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The upgrade took over the connection.
	v.StatusCode = http.StatusSwitchingProtocols

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
