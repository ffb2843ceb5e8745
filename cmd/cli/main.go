package main

import (
	"log"

	"github.com/absmach/fedcoord/cli"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defCoordinatorURL  = "http://localhost:7080"
	defTLSVerification = false
)

func main() {
	var (
		coordinatorURL  string
		tlsVerification bool
	)

	rootCmd := &cobra.Command{
		Use:   "fedcoord-cli",
		Short: "Federated learning coordinator CLI",
		Long:  `fedcoord-cli is a command line interface for inspecting and steering a running coordinator.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: tlsVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", defCoordinatorURL, "Coordinator admin API URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", defTLSVerification, "Verify the coordinator's TLS certificate")

	rootCmd.AddCommand(cli.NewModelCmd())
	rootCmd.AddCommand(cli.NewHyperparamsCmd())
	rootCmd.AddCommand(cli.NewUpdatesCmd())
	rootCmd.AddCommand(cli.NewSessionsCmd())
	rootCmd.AddCommand(cli.NewTelemetryCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
