package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new ring signature key pair",
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	sk, pk, err := ringsig.GenerateKey()
	if err != nil {
		return err
	}

	path := getKeyFilePath()
	if err := saveKey(path, keyFile{SecretKey: sk, PublicKey: pk}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "key written to %s\npublic key: %s\n", path, database.Hash(pk))
	return nil
}
