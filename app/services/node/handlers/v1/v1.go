// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/blacksilk/node/app/services/node/handlers/v1/private"
	"github.com/blacksilk/node/app/services/node/handlers/v1/public"
	"github.com/blacksilk/node/foundation/blockchain/state"
	"github.com/blacksilk/node/foundation/events"
	"github.com/blacksilk/node/foundation/nameservice"
	"github.com/blacksilk/node/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds the routes wallets and miners call. They are served
// without a version prefix since deployed miners depend on the paths.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, "", "/events", pbl.Events)
	app.Handle(http.MethodGet, "", "/health", pbl.Health)
	app.Handle(http.MethodGet, "", "/info", pbl.Info)
	app.Handle(http.MethodGet, "", "/get_blocks", pbl.GetBlocks)
	app.Handle(http.MethodGet, "", "/mempool", pbl.Mempool)
	app.Handle(http.MethodPost, "", "/submit_tx", pbl.SubmitTransaction)
	app.Handle(http.MethodPost, "", "/mining/get_block_template", pbl.BlockTemplate)
	app.Handle(http.MethodPost, "", "/mining/submit_block", pbl.SubmitBlock)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/peers", prv.Peers)
	app.Handle(http.MethodGet, version, "/node/pow/stats", prv.PoWStats)
	app.Handle(http.MethodGet, version, "/node/pow/peers/:peer", prv.PoWPeer)
	app.Handle(http.MethodGet, version, "/node/block/list/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/node/contracts", prv.Contracts)
}
