package cli

import (
	"github.com/spf13/cobra"

	"walletledger/internal/app"
)

var (
	exportAlias   string
	exportPNGPath string
	exportCSVPath string
	exportMaxRows int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger as CSV and/or a category PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Alias:   exportAlias,
			CSVPath: exportCSVPath,
			PNGPath: exportPNGPath,
			MaxRows: exportMaxRows,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportAlias, "alias", "", "Only export records of this wallet")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write the spending pie chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write ledger CSV")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Export only the newest N rows (defaults to config)")
}
