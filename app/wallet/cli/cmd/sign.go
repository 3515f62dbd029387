package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
)

var (
	ringKeys   string
	ringIndex  int
	inputIndex int
	outFile    string
)

var signCmd = &cobra.Command{
	Use:   "sign <tx.json>",
	Short: "Sign an input of a transaction with the key file",
	Long: `Sign places the key file's public key at the ring index, signs the
transaction extra field over the ring and records the key image. Without
--ring the ring already present in the input is used.`,
	Args: cobra.ExactArgs(1),
	RunE: signRun,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVarP(&ringKeys, "ring", "r", "", "Comma separated decoy public keys.")
	signCmd.Flags().IntVarP(&ringIndex, "index", "i", 0, "Position of the signer in the ring.")
	signCmd.Flags().IntVar(&inputIndex, "input", 0, "Input of the transaction to sign.")
	signCmd.Flags().StringVarP(&outFile, "out", "o", "", "File to write the signed transaction to, stdout when empty.")
}

func signRun(cmd *cobra.Command, args []string) error {
	kf, err := loadKey(getKeyFilePath())
	if err != nil {
		return err
	}

	tx, err := readTx(args[0])
	if err != nil {
		return err
	}

	if err := signInput(&tx, kf, inputIndex, ringKeys, ringIndex); err != nil {
		return err
	}

	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}

	if outFile == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	return os.WriteFile(outFile, data, 0o644)
}

// signInput builds the ring for the input and signs the extra field.
func signInput(tx *database.Tx, kf keyFile, input int, decoys string, index int) error {
	if input < 0 {
		return fmt.Errorf("input index %d out of range", input)
	}
	for len(tx.Inputs) <= input {
		tx.Inputs = append(tx.Inputs, database.TxInput{})
	}
	in := &tx.Inputs[input]

	ring := in.RingSignature.Ring
	if decoys != "" {
		ring = nil
		for _, s := range strings.Split(decoys, ",") {
			pk, err := database.ToHash(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("decoy %q: %w", s, err)
			}
			ring = append(ring, pk)
		}

		if index < 0 || index > len(ring) {
			return fmt.Errorf("ring index %d out of range", index)
		}
		ring = append(ring[:index], append([]database.PublicKey{kf.PublicKey}, ring[index:]...)...)
	}

	if index < 0 || index >= len(ring) || ring[index] != kf.PublicKey {
		return fmt.Errorf("ring index %d does not hold the signer public key", index)
	}

	keys := make([][32]byte, len(ring))
	for i, pk := range ring {
		keys[i] = pk
	}

	sig, err := ringsig.Sign(tx.Extra, keys, kf.SecretKey, index)
	if err != nil {
		return err
	}

	ki, err := ringsig.KeyImage(kf.SecretKey)
	if err != nil {
		return err
	}

	in.KeyImage = ki
	in.RingSignature.Ring = ring
	in.RingSignature.Signature = sig

	return nil
}

func readTx(path string) (database.Tx, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return database.Tx{}, err
	}

	var tx database.Tx
	if err := json.Unmarshal(data, &tx); err != nil {
		return database.Tx{}, fmt.Errorf("decoding transaction %s: %w", path, err)
	}

	return tx, nil
}
