package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type transferReq struct {
	To     string `json:"to" validate:"required"`
	Amount uint64 `json:"amount" validate:"gt=0"`
}

func TestRouting(t *testing.T) {
	var order []string
	mw := func(name string) web.Middleware {
		return func(next web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return next(ctx, w, r)
			}
		}
	}

	app := web.NewApp(nil, mw("app"))

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v, err := web.GetValues(ctx)
		if err != nil {
			return err
		}
		if v.TraceID == "" {
			t.Fatalf("\t%s\tShould carry a trace id.", failed)
		}
		return web.Respond(ctx, w, map[string]string{"account": web.Param(r, "account")}, http.StatusOK)
	}
	app.Handle(http.MethodGet, "v1", "/balances/:account", h, mw("route"))

	t.Log("Given the need to route requests through middleware.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen requesting a grouped route.", testID)
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/balances/0xabc", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 200: got %d", failed, testID, w.Code)
			}
			if !strings.Contains(w.Body.String(), `"account":"0xabc"`) {
				t.Fatalf("\t%s\tTest %d:\tShould see the route parameter: %s", failed, testID, w.Body.String())
			}
			t.Logf("\t%s\tTest %d:\tShould see the route parameter.", success, testID)

			if len(order) != 2 || order[0] != "app" || order[1] != "route" {
				t.Fatalf("\t%s\tTest %d:\tShould run app middleware first: got %v", failed, testID, order)
			}
			t.Logf("\t%s\tTest %d:\tShould run app middleware first.", success, testID)
		}
	}
}

func TestDecode(t *testing.T) {
	t.Log("Given the need to decode and validate request bodies.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen required fields are missing.", testID)
		{
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0}`))

			var req transferReq
			err := web.Decode(r, &req)
			if !web.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest %d:\tShould return field errors: %v", failed, testID, err)
			}

			fields := web.GetFieldErrors(err).Fields()
			if _, ok := fields["to"]; !ok {
				t.Fatalf("\t%s\tTest %d:\tShould name the json field: %v", failed, testID, fields)
			}
			if _, ok := fields["amount"]; !ok {
				t.Fatalf("\t%s\tTest %d:\tShould name the json field: %v", failed, testID, fields)
			}
			t.Logf("\t%s\tTest %d:\tShould name the json fields.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the body holds unknown fields.", testID)
		{
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"to":"x","amount":1,"tip":2}`))

			var req transferReq
			if err := web.Decode(r, &req); err == nil || web.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the body: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the body.", success, testID)
		}
	}
}
