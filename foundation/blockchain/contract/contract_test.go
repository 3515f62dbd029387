package contract_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database"
)

// emptyModule is the smallest valid WASM binary: magic and version.
var emptyModule = []byte("\x00asm\x01\x00\x00\x00")

func newRegistry(t *testing.T) *contract.Registry {
	ctx := context.Background()
	r := contract.New(ctx, nil)
	t.Cleanup(func() { r.Close(ctx) })
	return r
}

func TestParse(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Parse(ctx, emptyModule))
	require.ErrorIs(t, r.Parse(ctx, []byte("not wasm")), contract.ErrInvalidModule)
	require.ErrorIs(t, r.Parse(ctx, make([]byte, contract.MaxCodeSize+1)), contract.ErrCodeTooLarge)
}

func TestApplyBlock(t *testing.T) {
	r := newRegistry(t)
	creator := database.GenesisAddress()
	addr := contract.AddressOf(emptyModule)

	deploy := database.Block{
		Header: database.BlockHeader{Height: 1, Timestamp: 100},
		Transactions: []database.Tx{
			database.NewCoinbaseTx(1, creator),
			{Kind: database.ContractDeploy{WasmCode: emptyModule, Creator: creator}},
		},
	}
	require.NoError(t, r.ApplyBlock(deploy))

	c, err := r.Contract(addr)
	require.NoError(t, err)
	require.Equal(t, creator, c.Creator)
	require.Equal(t, uint64(1), c.Height)
	require.Equal(t, uint64(100), c.DeployedAt)

	invoke := database.Block{
		Header: database.BlockHeader{Height: 2},
		Transactions: []database.Tx{
			database.NewCoinbaseTx(2, creator),
			{Kind: database.ContractInvoke{ContractAddress: addr, Function: "run", Caller: creator}},
			{Kind: database.ContractInvoke{ContractAddress: creator, Function: "run", Caller: creator}},
		},
	}
	err = r.ApplyBlock(invoke)
	require.ErrorIs(t, err, contract.ErrContractNotFound)

	calls := r.Invocations(addr)
	require.Len(t, calls, 1)
	require.Equal(t, "run", calls[0].Function)

	c, err = r.Contract(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.Invocations)
	require.Len(t, r.Contracts(), 1)
}
