package cli

import (
	"encoding/json"
	"strconv"

	"github.com/absmach/fedcoord"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	defOffset  uint64 = 0
	defLimit   uint64 = 10
	paramsFile string
)

var csdk sdk.SDK

func SetSDK(s sdk.SDK) {
	csdk = s
}

func NewModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "View current model",
		Long:  `View the current model version, its hyperparameters and weights.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := csdk.Model()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}
}

func NewHyperparamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hyperparams [view|set]",
		Short: "Hyperparameters manager",
		Long:  `View or replace the hyperparameters sent to clients.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View hyperparameters",
		Long:  `View hyperparameters.`,
		Run: func(cmd *cobra.Command, _ []string) {
			m, err := csdk.Model()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m.Hyperparams)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [<json>]",
		Short: "Set hyperparameters",
		Long: `Replace the hyperparameters and broadcast them to every client.

Examples:
  fedcoord-cli hyperparams set '{"learning_rate":0.01,"epochs":5}'

  # Load the [hyperparams] table of a coordinator file
  fedcoord-cli hyperparams set --file fedcoord.toml`,
		Run: func(cmd *cobra.Command, args []string) {
			var params map[string]any
			switch {
			case paramsFile != "" && len(args) == 0:
				cfg, err := fedcoord.LoadConfig(paramsFile)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				params = cfg.Hyperparams
			case paramsFile == "" && len(args) == 1:
				if err := json.Unmarshal([]byte(args[0]), &params); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			default:
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := csdk.SetHyperparams(params)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	setCmd.Flags().StringVarP(&paramsFile, "file", "f", "", "TOML file with a [hyperparams] table")

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(setCmd)

	return cmd
}

func NewUpdatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updates [list|discard]",
		Short: "Pending updates manager",
		Long:  `List buffered client updates per model version or discard a version's buffer.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending updates",
		Long:  `List pending updates.`,
		Run: func(cmd *cobra.Command, _ []string) {
			p, err := csdk.PendingUpdates()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	discardCmd := &cobra.Command{
		Use:   "discard <version>",
		Short: "Discard pending updates",
		Long:  `Discard the buffered updates of a model version.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			n, err := csdk.DiscardUpdates(version)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]any{"model_version": version, "discarded": n})
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(discardCmd)

	return cmd
}

func NewSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List connected clients",
		Long:  `List connected clients.`,
		Run: func(cmd *cobra.Command, _ []string) {
			s, err := csdk.Sessions()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, s)
		},
	}
}

func NewTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "List client data records",
		Long:  `List client data records.`,
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := csdk.Telemetry(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)

	return cmd
}
