// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/signature"
	"github.com/blacksilk/node/foundation/nameservice"
)

// ErrUsage is returned when a command is missing arguments.
var ErrUsage = errors.New("missing arguments")

// KeyGen creates the node key <folder>/<name>.ecdsa the node signs its
// handshake with and prints the node id. The file name is the name the
// name service reports for the node.
func KeyGen(w io.Writer, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("keygen <folder> <name>: %w", ErrUsage)
	}

	path := filepath.Join(args[2], args[3]+".ecdsa")
	privateKey, err := signature.LoadOrGenerate(path)
	if err != nil {
		return err
	}

	ns, err := nameservice.New(args[2])
	if err != nil {
		return err
	}

	nodeID := signature.NodeID(privateKey)
	fmt.Fprintf(w, "Node: %s  Name: %s  Key: %s\n", nodeID, ns.Lookup(nodeID), path)

	return nil
}

// Genesis prints the profile of the named network.
func Genesis(w io.Writer, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("genesis <network>: %w", ErrUsage)
	}

	gen, err := genesis.ForNetwork(args[2])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(gen, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(w, string(data))
	return nil
}

// Emission prints the block reward and the supply minted at a height.
func Emission(w io.Writer, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("emission <network> <height>: %w", ErrUsage)
	}

	gen, err := genesis.ForNetwork(args[2])
	if err != nil {
		return err
	}

	height, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return err
	}

	reward := gen.BlockReward(height)
	minted := gen.Minted(height)

	fmt.Fprintf(w, "Height: %d  Reward: %d (%.6f BLK)  Minted: %d (%.6f BLK)  Zero reward at: %d\n",
		height, reward, float64(reward)/genesis.Coin, minted, float64(minted)/genesis.Coin, gen.ZeroHeight())

	return nil
}
