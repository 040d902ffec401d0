package mid_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/business/web/errs"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/mid"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func serve(app *web.App, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.RemoteAddr = "10.0.0.1:5000"
	app.ServeHTTP(w, r)
	return w
}

func TestErrors(t *testing.T) {
	log := zap.NewNop().Sugar()

	app := web.NewApp(nil, mid.Errors(log), mid.Panics())

	app.Handle(http.MethodGet, "", "/refused", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		err := fmt.Errorf("transfer: %w", &state.TransferError{Kind: state.InsufficientFunds, Balance: 7})
		return errs.Ledger(err)
	})
	app.Handle(http.MethodGet, "", "/internal", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("disk on fire")
	})
	app.Handle(http.MethodGet, "", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	t.Log("Given the need to render handler errors uniformly.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the ledger refuses a transfer.", testID)
		{
			w := serve(app, "/refused")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 400: got %d", failed, testID, w.Code)
			}

			var resp struct {
				Kind    string         `json:"kind"`
				Details map[string]any `json:"details"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould decode the response: %v", failed, testID, err)
			}

			if resp.Kind != "InsufficientFunds" || resp.Details["balance"] != float64(7) {
				t.Fatalf("\t%s\tTest %d:\tShould carry the failure kind and balance: %+v", failed, testID, resp)
			}
			t.Logf("\t%s\tTest %d:\tShould carry the failure kind and balance.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen an unexpected error occurs.", testID)
		{
			for _, path := range []string{"/internal", "/panic"} {
				w := serve(app, path)
				if w.Code != http.StatusInternalServerError {
					t.Fatalf("\t%s\tTest %d:\tShould receive a 500 for %s: got %d", failed, testID, path, w.Code)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 500 without details.", success, testID)
		}
	}
}

func TestRateLimit(t *testing.T) {
	log := zap.NewNop().Sugar()
	rl := mid.NewRateLimiter(0.001, 2)

	app := web.NewApp(nil, mid.Errors(log), mid.RateLimit(rl))
	app.Handle(http.MethodGet, "", "/", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	})

	t.Log("Given the need to limit the request rate per client.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a client exhausts its burst.", testID)
		{
			for i := range 2 {
				if w := serve(app, "/"); w.Code != http.StatusNoContent {
					t.Fatalf("\t%s\tTest %d:\tShould allow request %d: got %d", failed, testID, i, w.Code)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould allow the burst.", success, testID)

			if w := serve(app, "/"); w.Code != http.StatusTooManyRequests {
				t.Fatalf("\t%s\tTest %d:\tShould refuse the next request: got %d", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse the next request.", success, testID)

			if !rl.Allow("10.0.0.2") {
				t.Fatalf("\t%s\tTest %d:\tShould allow another client.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould allow another client.", success, testID)
		}
	}
}
