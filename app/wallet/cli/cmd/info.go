package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	fromHeight uint64
	simple     bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the node summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return get(cmd.OutOrStdout(), "/info")
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the blocks at or above a height",
	RunE: func(cmd *cobra.Command, args []string) error {
		return get(cmd.OutOrStdout(), fmt.Sprintf("/get_blocks?from_height=%d&simple=%t", fromHeight, simple))
	},
}

var mempoolCmd = &cobra.Command{
	Use:   "mempool",
	Short: "Print the pending transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return get(cmd.OutOrStdout(), "/mempool")
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(mempoolCmd)
	blocksCmd.Flags().Uint64VarP(&fromHeight, "from", "f", 0, "Height of the first block.")
	blocksCmd.Flags().BoolVarP(&simple, "simple", "s", false, "Print the bare block array.")
}
