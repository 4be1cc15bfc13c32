package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"walletledger/internal/app"
)

var (
	showLimit int
	showAlias string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the most recent ledger records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Limit: showLimit, Alias: showAlias})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().StringVar(&showAlias, "alias", "", "Only show records of this wallet")
}
