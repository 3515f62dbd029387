// Package private maintains the group of handlers for operator access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blacksilk/node/business/web/errs"
	"github.com/blacksilk/node/foundation/blockchain/state"
	"github.com/blacksilk/node/foundation/nameservice"
	"github.com/blacksilk/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Status(), http.StatusOK)
}

// Peers returns the live connections, named through the name service,
// and the peer book.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	infos := h.State.ConnectedPeers()

	connected := make([]connectedPeer, len(infos))
	for i, info := range infos {
		connected[i] = connectedPeer{
			PeerInfo: info,
			Name:     h.NS.Lookup(info.NodeID),
		}
	}

	resp := peersResponse{
		Connected: connected,
		Known:     h.State.RetrieveKnownPeers(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// PoWStats returns the counters of the proof of work verifier.
func (h Handlers) PoWStats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	stats, ok := h.State.PoWStats()
	if !ok {
		return errs.NotFound(errors.New("proof of work verifier not configured"))
	}

	return web.Respond(ctx, w, stats, http.StatusOK)
}

// PoWPeer returns the proof of work score of a single peer.
func (h Handlers) PoWPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	peerID := web.Param(r, "peer")

	score, ok := h.State.PoWPeerScore(peerID)
	if !ok {
		return errs.NotFound(fmt.Errorf("peer %q has no score", peerID))
	}

	return web.Respond(ctx, w, score, http.StatusOK)
}

// BlocksByNumber returns all the blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.BadRequest(err)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.BadRequest(err)
	}

	if from > to {
		return errs.BadRequest(errors.New("from greater than to"))
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Contracts returns the deployed contracts.
func (h Handlers) Contracts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	contracts := h.State.QueryContracts()
	if len(contracts) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, contracts, http.StatusOK)
}
