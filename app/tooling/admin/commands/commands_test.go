package commands_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blacksilk/node/app/tooling/admin/commands"
)

func TestKeyGen(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, commands.KeyGen(&out, []string{"admin", "keygen", dir, "seed1"}))
	require.Contains(t, out.String(), "Name: seed1")

	first := out.String()
	out.Reset()
	require.NoError(t, commands.KeyGen(&out, []string{"admin", "keygen", dir, "seed1"}))
	require.Equal(t, first, out.String(), "the existing key must be reused")

	err := commands.KeyGen(&out, []string{"admin", "keygen"})
	require.True(t, errors.Is(err, commands.ErrUsage))
}

func TestGenesisAndEmission(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, commands.Genesis(&out, []string{"admin", "genesis", "mainnet"}))
	require.Contains(t, out.String(), `"network": "mainnet"`)

	require.Error(t, commands.Genesis(&out, []string{"admin", "genesis", "devnet"}))

	out.Reset()
	require.NoError(t, commands.Emission(&out, []string{"admin", "emission", "testnet", "1"}))
	require.True(t, strings.HasPrefix(out.String(), "Height: 1  Reward: "))
}
