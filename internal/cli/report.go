package cli

import (
	"github.com/spf13/cobra"
)

var reportAlias string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print ledger reports",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Total income, spending and net balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Report(cmd.Context(), "summary", reportAlias)
	},
}

var reportCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Spending grouped by purpose",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Report(cmd.Context(), "categories", reportAlias)
	},
}

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Inspect registered wallets",
}

var walletsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Wallets(cmd.Context())
	},
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportAlias, "alias", "", "Restrict the report to one wallet")
	reportCmd.AddCommand(reportSummaryCmd, reportCategoriesCmd)
	walletsCmd.AddCommand(walletsListCmd)
}
