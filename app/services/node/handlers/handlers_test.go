package handlers_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blacksilk/node/app/services/node/handlers"
	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/database/storage/memory"
	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/metrics"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
	"github.com/blacksilk/node/foundation/blockchain/rangeproof"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
	"github.com/blacksilk/node/foundation/blockchain/state"
	"github.com/blacksilk/node/foundation/events"
	"github.com/blacksilk/node/foundation/nameservice"
)

const minerAddress = "0x8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"

type stepClock struct {
	now atomic.Int64
}

func (c *stepClock) Now() time.Time {
	return time.Unix(0, c.now.Add(int64(time.Millisecond)))
}

func (c *stepClock) TickAfter(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

type api struct {
	public  http.Handler
	private http.Handler
	debug   http.Handler
	pow     *randomx.Verifier
}

func newAPI(t *testing.T) api {
	t.Helper()

	pow, err := randomx.NewVerifier(randomx.Config{
		Mode:  randomx.ModeLight,
		Clock: &stepClock{},
	})
	require.NoError(t, err)

	registry := contract.New(context.Background(), nil)
	t.Cleanup(func() { registry.Close(context.Background()) })

	m := metrics.New()

	st, err := state.New(state.Config{
		Genesis:     genesis.Testnet(),
		Host:        "127.0.0.1:0",
		NodeVersion: "test",
		Storage:     memory.New(),
		PoW:         pow,
		Contracts:   registry,
		Metrics:     m,
		Clock:       clock.NewTestClock(time.Unix(1_716_200_000, 0)),
	})
	require.NoError(t, err)

	ns, err := nameservice.New("")
	require.NoError(t, err)

	evts := events.New()
	t.Cleanup(evts.Shutdown)

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		NS:       ns,
		Evts:     evts,
		Metrics:  m,
	}

	return api{
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
		debug:   handlers.DebugMux("test", cfg.Log, st, m),
		pow:     pow,
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if out != nil && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}

	return w
}

func payment(t *testing.T, extra string) database.Tx {
	t.Helper()

	sk, pk, err := ringsig.GenerateKey()
	require.NoError(t, err)
	_, decoy, err := ringsig.GenerateKey()
	require.NoError(t, err)

	ring := [][32]byte{decoy, pk}
	sig, err := ringsig.Sign([]byte(extra), ring, sk, 1)
	require.NoError(t, err)

	ki, err := ringsig.KeyImage(sk)
	require.NoError(t, err)

	oneTime, txPub, err := ringsig.DeriveStealth(decoy, pk)
	require.NoError(t, err)

	return database.Tx{
		Kind: database.Payment{},
		Inputs: []database.TxInput{{
			KeyImage:      ki,
			RingSignature: database.RingSignature{Ring: []database.PublicKey{decoy, pk}, Signature: sig},
		}},
		Outputs: []database.TxOutput{{
			AmountCommitment: bytes.Repeat([]byte{9}, 32),
			StealthAddress:   database.StealthAddress{ViewKey: txPub, SpendKey: oneTime},
			RangeProof:       make([]byte, rangeproof.ProofSize64),
		}},
		Fee:   10,
		Extra: []byte(extra),
	}
}

// =============================================================================

func TestHealthAndInfo(t *testing.T) {
	a := newAPI(t)

	var health map[string]string
	w := do(t, a.public, http.MethodGet, "/health", nil, &health)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var info state.Info
	w = do(t, a.public, http.MethodGet, "/info", nil, &info)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "test", info.Version)
	require.Equal(t, genesis.NetworkTestnet, info.Network)
	require.Zero(t, info.Height)
	require.Zero(t, info.Peers)
	require.Equal(t, uint64(1), info.Difficulty)

	w = do(t, a.public, http.MethodOptions, "/preflight", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestGetBlocks(t *testing.T) {
	a := newAPI(t)

	var resp struct {
		Blocks      []json.RawMessage `json:"blocks"`
		TotalHeight uint64            `json:"total_height"`
	}
	w := do(t, a.public, http.MethodGet, "/get_blocks?from_height=0", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Blocks, 1)
	require.Equal(t, uint64(1), resp.TotalHeight)

	var simple []json.RawMessage
	w = do(t, a.public, http.MethodGet, "/get_blocks?from_height=5&simple=true", nil, &simple)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = do(t, a.public, http.MethodGet, "/get_blocks?from_height=abc", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitTransaction(t *testing.T) {
	a := newAPI(t)
	tx := payment(t, "coffee")

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		TxHash  string `json:"tx_hash"`
	}
	w := do(t, a.public, http.MethodPost, "/submit_tx", tx, &resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, resp.Success)
	require.Equal(t, tx.ID().String(), resp.TxHash)

	var pool struct {
		Transactions []database.Tx `json:"transactions"`
		Count        int           `json:"count"`
	}
	do(t, a.public, http.MethodGet, "/mempool", nil, &pool)
	require.Equal(t, 1, pool.Count)
	require.Equal(t, tx.ID(), pool.Transactions[0].ID())

	resp.TxHash = ""
	w = do(t, a.public, http.MethodPost, "/submit_tx", tx, &resp)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, resp.Success)
	require.Empty(t, resp.TxHash)

	r := httptest.NewRequest(http.MethodPost, "/submit_tx", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	a.public.ServeHTTP(rec, r)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid transaction format")
}

func TestMiningRoundTrip(t *testing.T) {
	a := newAPI(t)

	var bad struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	w := do(t, a.public, http.MethodPost, "/mining/get_block_template", map[string]string{"address": "0x12"}, &bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, bad.Fields, "address")

	var tmpl state.Template
	w = do(t, a.public, http.MethodPost, "/mining/get_block_template", map[string]string{"address": minerAddress}, &tmpl)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, uint64(1), tmpl.Height)
	require.Equal(t, database.Address(minerAddress), tmpl.CoinbaseAddress)
	require.Equal(t, []byte(tmpl.PrevHash[:]), []byte(tmpl.Seed))

	var submit struct {
		Header       string        `json:"header"`
		Nonce        uint64        `json:"nonce"`
		Hash         database.Hash `json:"hash"`
		MinerAddress string        `json:"miner_address"`
	}
	submit.Header = tmpl.Header.String()
	submit.MinerAddress = minerAddress

	for nonce := uint64(0); ; nonce++ {
		require.Less(t, nonce, uint64(1000), "no nonce found")

		input := binary.LittleEndian.AppendUint64(append([]byte(nil), tmpl.Header...), nonce)
		hash, err := a.pow.Hasher().Hash(tmpl.Seed, input)
		require.NoError(t, err)

		if database.MeetsTarget(database.Hash(hash), tmpl.Difficulty) {
			submit.Nonce = nonce
			submit.Hash = database.Hash(hash)
			break
		}
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	w = do(t, a.public, http.MethodPost, "/mining/submit_block", submit, &resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, resp.Success)

	w = do(t, a.public, http.MethodPost, "/mining/submit_block", submit, &resp)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, resp.Success)

	var stats randomx.Stats
	w = do(t, a.private, http.MethodGet, "/v1/node/pow/stats", nil, &stats)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, uint64(1), stats.TotalSubmissions)

	// httptest requests come from 192.0.2.1; the claimed miner address is
	// not a scoring identity.
	var score randomx.PeerScore
	w = do(t, a.private, http.MethodGet, "/v1/node/pow/peers/192.0.2.1", nil, &score)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, uint32(1), score.TotalSubmissions)

	w = do(t, a.private, http.MethodGet, "/v1/node/pow/peers/"+minerAddress, nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, a.private, http.MethodGet, "/v1/node/pow/peers/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var blocks []json.RawMessage
	w = do(t, a.private, http.MethodGet, "/v1/node/block/list/0/latest", nil, &blocks)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, blocks, 2)

	w = do(t, a.private, http.MethodGet, "/v1/node/block/list/2/1", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperatorRoutes(t *testing.T) {
	a := newAPI(t)

	var status struct {
		Network string `json:"network"`
		Height  uint64 `json:"height"`
	}
	w := do(t, a.private, http.MethodGet, "/v1/node/status", nil, &status)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, genesis.NetworkTestnet, status.Network)

	var peers struct {
		Connected []json.RawMessage `json:"connected"`
	}
	w = do(t, a.private, http.MethodGet, "/v1/node/peers", nil, &peers)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, peers.Connected)

	w = do(t, a.private, http.MethodGet, "/v1/node/contracts", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, a.debug, http.MethodGet, "/debug/readiness", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, a.debug, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `blacksilk_http_requests_total{code="2xx"}`)
}
