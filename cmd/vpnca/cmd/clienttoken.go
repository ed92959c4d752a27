package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clientTokenCmd = &cobra.Command{
	Use:   "client-token NAME EMAIL",
	Short: "Create a client issuance request and email its redemption token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, email := args[0], args[1]

		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Println("Creating client config request...")
		fmt.Println("Key generation may take several minutes.")

		tokenString, err := e.svc.RequestClient(cmd.Context(), name, email)
		if err != nil {
			return err
		}
		fmt.Println(tokenString)

		if err := e.notifier.RenewalNotice(name, email, tokenString); err != nil {
			e.log.Error("emailing token", "error", err)
		}

		// Block until the pipeline finishes so the process doesn't kill it.
		e.svc.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientTokenCmd)
}
