package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers"
	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/mid"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/events"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newServer(t *testing.T) (*httptest.Server, *state.State) {
	strg, err := store.New(store.Config{Backing: store.NewMemory(), DataStart: 128})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the store: %v", failed, err)
	}

	st, err := state.New(state.Config{Store: strg})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	nodeKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	src, err := replica.NewSource(replica.SourceConfig{State: st, NodeKey: nodeKey})
	if err != nil {
		t.Fatal(err)
	}

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    make(chan os.Signal, 1),
		Log:         zap.NewNop().Sugar(),
		State:       st,
		Core:        ledger.NewCore(st, func() uint64 { return uint64(time.Now().UnixNano()) }),
		Source:      src,
		Evts:        events.NewEvents(),
		RateLimiter: mid.NewRateLimiter(1000, 1000),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, st
}

func TestTokenRoutes(t *testing.T) {
	srv, st := newServer(t)
	client := ledger.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()

	aliceKey, _ := crypto.GenerateKey()
	bobKey, _ := crypto.GenerateKey()
	alice := database.IdentityAccount(signature.NewIdentity(aliceKey))
	bob := database.IdentityAccount(signature.NewIdentity(bobKey))

	if _, err := st.Mint(alice, 10*database.TokenDecimalsDiv, nil); err != nil {
		t.Fatalf("Should be able to mint: %v", err)
	}

	t.Log("Given the need to move tokens through the public API.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a holder signs a transfer.", testID)
		{
			now := uint64(time.Now().UnixNano())
			if _, err := client.Transfer(ctx, aliceKey, ledger.TransferRequest{To: bob, Amount: database.TokenDecimalsDiv, CreatedAtTime: &now}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the transfer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the transfer.", success, testID)

			bal, err := client.Balance(ctx, bob)
			if err != nil || bal.Balance != database.TokenDecimalsDiv {
				t.Fatalf("\t%s\tTest %d:\tShould credit the receiver: %+v %v", failed, testID, bal, err)
			}
			t.Logf("\t%s\tTest %d:\tShould credit the receiver.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a spender uses an allowance.", testID)
		{
			now := uint64(time.Now().UnixNano())
			fee := database.TransferFee
			if _, err := client.Approve(ctx, aliceKey, ledger.ApproveRequest{Spender: bob, Amount: 5 * database.TransferFee, Fee: &fee, CreatedAtTime: &now}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the approval: %v", failed, testID, err)
			}

			a, err := client.Allowance(ctx, alice, bob)
			if err != nil || a.Amount != 5*database.TransferFee {
				t.Fatalf("\t%s\tTest %d:\tShould report the allowance: %+v %v", failed, testID, a, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the allowance.", success, testID)

			now = uint64(time.Now().UnixNano())
			_, err = client.TransferFrom(ctx, bobKey, ledger.TransferFromRequest{From: alice, To: bob, Amount: 10 * database.TransferFee, CreatedAtTime: &now})
			if err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould refuse a transfer above the allowance.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse a transfer above the allowance: %v", success, testID, err)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a request is not signed correctly.", testID)
		{
			sr, err := ledger.SignJSON(ledger.TransferRequest{To: bob, Amount: 1}, aliceKey)
			if err != nil {
				t.Fatal(err)
			}
			sr.Signature[5] ^= 0xff

			resp, err := http.Post(srv.URL+"/v1/transfer", "application/json", body(t, sr))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 401: got %d", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 401.", success, testID)
		}
	}
}

func TestSyncRoutes(t *testing.T) {
	srv, st := newServer(t)
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	if _, err := st.Mint(database.IdentityAccount(signature.NewIdentity(key)), database.TokenDecimalsDiv, nil); err != nil {
		t.Fatal(err)
	}

	t.Log("Given the need to mirror the ledger over HTTP.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a replica fetches from an empty local log.", testID)
		{
			local, err := store.New(store.Config{Backing: store.NewMemory(), DataStart: 128})
			if err != nil {
				t.Fatal(err)
			}

			client := replica.NewClient(replica.ClientConfig{URL: srv.URL, Timeout: 5 * time.Second})

			res, err := replica.NewSyncer(client, nil).FetchAll(ctx, local)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould fetch the log: %v", failed, testID, err)
			}

			if res.Position != st.Store().NextBlockStartPosition() || local.BlocksCount() != st.Store().BlocksCount() {
				t.Fatalf("\t%s\tTest %d:\tShould end where the remote ends: %+v", failed, testID, res)
			}
			t.Logf("\t%s\tTest %d:\tShould end where the remote ends.", success, testID)

			if _, err := client.RootKey(ctx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould read the root key: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould read the root key.", success, testID)
		}
	}
}

func body(t *testing.T, v any) *bytes.Reader {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}
