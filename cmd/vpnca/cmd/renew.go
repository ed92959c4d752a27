package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renewWindow int

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Scan issued certificates and request renewal for those expiring soon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		renewals, err := e.svc.ScanAndRenew(ctx, renewWindow)
		if err != nil {
			return err
		}
		fmt.Printf("Created %d renewal request(s)\n", renewals)

		// Renewal pipelines run in the background; wait for them.
		e.svc.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renewCmd)
	renewCmd.Flags().IntVar(&renewWindow, "window", 0, "Renewal window in days (default: configured value)")
}
