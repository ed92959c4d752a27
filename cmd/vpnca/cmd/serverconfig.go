package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var serverConfigOut string

var serverConfigCmd = &cobra.Command{
	Use:   "server-config",
	Short: "Generate the server key material and write the assembled .ovpn file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		out := serverConfigOut
		if out == "" {
			out = e.params.ServerConfigPath
		}
		if out == "" {
			out = filepath.Join(dataDir, "server.ovpn")
		}

		fmt.Println("Creating server config...")
		fmt.Println("Key generation may take several minutes.")

		if err := e.authority.EnsureServer(ctx); err != nil {
			return err
		}
		bundle, err := e.authority.ServerConfig()
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, []byte(bundle), 0o600); err != nil {
			return fmt.Errorf("writing server config: %w", err)
		}
		if err := e.authority.RemovePrivateServerFiles(); err != nil {
			return err
		}
		fmt.Printf("Server config written to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverConfigCmd)
	serverConfigCmd.Flags().StringVarP(&serverConfigOut, "out", "o", "", "Output path for the assembled config")
}
