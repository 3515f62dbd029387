package mid

import (
	"context"
	"net/http"

	"github.com/blacksilk/node/foundation/blockchain/metrics"
	"github.com/blacksilk/node/foundation/web"
)

// Metrics updates program counters.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// The status code is only known once the handler chain
			// has responded.
			if v, verr := web.GetValues(ctx); verr == nil {
				m.Request(v.StatusCode)
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return mw
}
