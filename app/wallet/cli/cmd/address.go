package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the public key and key image of the key file",
	RunE:  addressRun,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func addressRun(cmd *cobra.Command, args []string) error {
	kf, err := loadKey(getKeyFilePath())
	if err != nil {
		return err
	}

	ki, err := ringsig.KeyImage(kf.SecretKey)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\nkey image:  %s\n", kf.PublicKey, database.Hash(ki))
	return nil
}
