// Package nameservice reads a folder of node keys and creates a name
// service lookup for the node ids operators know about.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blacksilk/node/foundation/blockchain/signature"
)

// keyExt is the extension of the node key files.
const keyExt = ".ecdsa"

// NameService maintains a map of node ids for name lookup.
type NameService struct {
	nodes map[string]string
}

// New constructs a name service with the node keys found under root. The
// name of a node is its key file name without the extension. A missing
// root produces an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		nodes: make(map[string]string),
	}

	if root == "" {
		return &ns, nil
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != keyExt {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("%s: %w", fileName, err)
		}

		nodeID := strings.ToLower(signature.NodeID(privateKey))
		ns.nodes[nodeID] = strings.TrimSuffix(filepath.Base(fileName), keyExt)

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ns, nil
		}
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified node id, or the id itself when
// the node is unknown.
func (ns *NameService) Lookup(nodeID string) string {
	name, exists := ns.nodes[strings.ToLower(nodeID)]
	if !exists {
		return nodeID
	}
	return name
}

// Copy returns a copy of the map of node ids and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.nodes))
	for nodeID, name := range ns.nodes {
		cpy[nodeID] = name
	}
	return cpy
}
