package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "vpnca",
	Short: "vpnca operates a private OpenVPN certificate authority",
	Long: `vpnca automates a private certificate authority for an OpenVPN service:
it bootstraps the CA, issues and renews server and client key material, and
serves a token-based API for retrieving configuration bundles.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Directory for CA material and persistent state")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the params file (default: <data-dir>/params.json)")
}

func paramsPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(dataDir, "params.json")
}
