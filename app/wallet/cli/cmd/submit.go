package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <tx.json>",
	Short: "Submit a signed transaction to the node",
	Args:  cobra.ExactArgs(1),
	RunE:  submitRun,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func submitRun(cmd *cobra.Command, args []string) error {
	tx, err := readTx(args[0])
	if err != nil {
		return err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	return post(cmd.OutOrStdout(), "/submit_tx", data)
}
