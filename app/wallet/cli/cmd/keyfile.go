package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
)

// keyFile is the on disk form of a ring signature key pair.
type keyFile struct {
	SecretKey database.Hash `json:"secret_key"`
	PublicKey database.Hash `json:"public_key"`
}

func saveKey(path string, kf keyFile) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func loadKey(path string) (keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return keyFile{}, err
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return keyFile{}, fmt.Errorf("decoding key file %s: %w", path, err)
	}

	pk, err := ringsig.PublicKey(kf.SecretKey)
	if err != nil {
		return keyFile{}, err
	}
	if database.Hash(pk) != kf.PublicKey {
		return keyFile{}, errors.New("key file public key does not match the secret key")
	}

	return kf, nil
}
