package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"walletledger/internal/app"
)

var (
	simulateAlias  string
	simulateAmount string
	simulateChat   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-event",
	Short: "Send a categorization request for a fabricated transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAlias == "" || simulateAmount == "" {
			return errors.New("--alias and --amount are required")
		}
		_, err := getApp().SimulateEvent(cmd.Context(), app.SimulateOptions{
			Alias:  simulateAlias,
			Amount: simulateAmount,
			Target: simulateChat,
		})
		return err
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAlias, "alias", "", "Registered wallet alias")
	simulateCmd.Flags().StringVar(&simulateAmount, "amount", "", "Signed amount; positive is incoming")
	simulateCmd.Flags().StringVar(&simulateChat, "chat", "", "Target chat id (defaults to telegram.chat_id)")
}
