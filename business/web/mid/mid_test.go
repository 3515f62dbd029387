package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blacksilk/node/business/sys/validate"
	"github.com/blacksilk/node/business/web/errs"
	"github.com/blacksilk/node/business/web/mid"
	"github.com/blacksilk/node/foundation/blockchain/metrics"
	"github.com/blacksilk/node/foundation/web"
)

type request struct {
	Address string `json:"address" validate:"required"`
}

func newApp(m *metrics.Metrics) *web.App {
	log := zap.NewNop().Sugar()
	shutdown := make(chan os.Signal, 1)

	app := web.NewApp(shutdown, mid.Logger(log), mid.Metrics(m), mid.Errors(log), mid.Cors("*"), mid.Panics(m))

	app.Handle(http.MethodGet, "", "/ok", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	app.Handle(http.MethodGet, "", "/trusted", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errs.NewTrusted(errors.New("bad height"), http.StatusBadRequest)
	})
	app.Handle(http.MethodGet, "", "/fields", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return validate.Check(request{})
	})
	app.Handle(http.MethodGet, "", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	return app
}

func call(t *testing.T, app *web.App, path string) (*httptest.ResponseRecorder, errs.Response) {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	var resp errs.Response
	if w.Code != http.StatusOK {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	}

	return w, resp
}

func TestErrorMapping(t *testing.T) {
	m := metrics.New()
	app := newApp(m)

	w, _ := call(t, app, "/ok")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w, resp := call(t, app, "/trusted")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "bad height", resp.Error)

	w, resp = call(t, app, "/fields")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "data validation error", resp.Error)
	require.Contains(t, resp.Fields, "address")

	w, resp = call(t, app, "/panic")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, http.StatusText(http.StatusInternalServerError), resp.Error)

	body := scrape(t, m)
	require.Contains(t, body, `blacksilk_http_requests_total{code="2xx"} 1`)
	require.Contains(t, body, `blacksilk_http_requests_total{code="4xx"} 2`)
	require.Contains(t, body, `blacksilk_http_requests_total{code="5xx"} 1`)
	require.Contains(t, body, "blacksilk_http_panics_total 1")
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	return w.Body.String()
}
