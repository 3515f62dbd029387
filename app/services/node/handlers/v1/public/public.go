// Package public maintains the group of handlers wallets and miners call.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blacksilk/node/business/web/errs"
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/state"
	"github.com/blacksilk/node/foundation/events"
	"github.com/blacksilk/node/foundation/web"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
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

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Health reports the node is serving requests.
func (h Handlers) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := struct {
		Status string `json:"status"`
	}{
		Status: "ok",
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Info returns the public summary of the node.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Info(), http.StatusOK)
}

// GetBlocks returns the blocks at or above from_height. Wallets scanning
// for outputs ask for the bare array with simple=true.
func (h Handlers) GetBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()

	var from uint64
	if s := query.Get("from_height"); s != "" {
		var err error
		from, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return errs.BadRequest(fmt.Errorf("invalid from_height %q", s))
		}
	}

	blocks := h.State.QueryBlocksFrom(from)
	if blocks == nil {
		blocks = []database.Block{}
	}

	if query.Get("simple") == "true" || query.Get("wallet") == "true" {
		return web.Respond(ctx, w, blocks, http.StatusOK)
	}

	resp := blocksResponse{
		Blocks:      blocks,
		TotalHeight: h.State.Height() + 1,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of pending transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.RetrieveMempool()
	if txs == nil {
		txs = []database.Tx{}
	}

	resp := mempoolResponse{
		Transactions: txs,
		Count:        len(txs),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction adds a wallet transaction to the mempool and shares
// it with the connected peers.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		resp := submitTxResponse{
			Message: fmt.Sprintf("invalid transaction format: %s", err),
		}
		return web.Respond(ctx, w, resp, http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "tx", tx.ID(), "inputs", len(tx.Inputs), "outputs", len(tx.Outputs), "fee", tx.Fee)

	txHash, err := h.State.SubmitTransaction(tx)
	if err != nil {
		resp := submitTxResponse{
			Message: fmt.Sprintf("transaction rejected: %s", err),
		}
		return web.Respond(ctx, w, resp, http.StatusBadRequest)
	}

	resp := submitTxResponse{
		Success: true,
		Message: "transaction accepted",
		TxHash:  txHash.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockTemplate returns the next block for a miner to work on.
func (h Handlers) BlockTemplate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req templateRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	tmpl, err := h.State.BlockTemplate(database.Address(req.Address))
	if err != nil {
		if errors.Is(err, state.ErrInvalidAddress) {
			return errs.BadRequest(err)
		}
		return err
	}

	return web.Respond(ctx, w, tmpl, http.StatusOK)
}

// SubmitBlock accepts a solved template from a miner.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitBlockRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	mined := state.MinedBlock{
		Header:       req.Header,
		Nonce:        req.Nonce,
		Hash:         req.Hash,
		MinerAddress: req.MinerAddress,
	}

	remote := web.RemoteHost(r)

	block, err := h.State.SubmitMinedBlock(mined, remote)
	if err != nil {
		h.Log.Infow("submit block", "traceid", v.TraceID, "remote", remote, "miner", req.MinerAddress, "nonce", req.Nonce, "ERROR", err)

		resp := submitBlockResponse{
			Message: fmt.Sprintf("block rejected: %s", err),
		}
		return web.Respond(ctx, w, resp, http.StatusBadRequest)
	}

	h.Log.Infow("submit block", "traceid", v.TraceID, "remote", remote, "miner", req.MinerAddress, "height", block.Header.Height, "hash", block.Hash())

	resp := submitBlockResponse{
		Success: true,
		Message: fmt.Sprintf("block accepted at height %d", block.Header.Height),
		Height:  block.Header.Height,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
