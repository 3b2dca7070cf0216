package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wycats/SferaDev-sub001/internal/di"
	"github.com/wycats/SferaDev-sub001/pkg/config"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/version"
)

var (
	verbose bool
	quiet   bool

	app     *di.App
	cleanup func()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "tokenest",
	Short:         "Estimate chat request input tokens",
	Long:          `tokenest estimates how many input tokens a chat request will use and learns from the counts the provider reports.`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var logger logging.Logger
		switch {
		case quiet:
			logger = logging.NewQuietLogger()
		case verbose:
			logger = logging.NewVerboseLogger()
		default:
			logger = logging.NewDefaultLogger()
		}
		logging.SetGlobalLogger(logger)

		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		var err error
		app, cleanup, err = di.InitializeApp()
		if err != nil {
			return fmt.Errorf("failed to initialize estimator: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cleanup != nil {
			cleanup()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug level)")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")

	addCommands()
}

func currentApp() *di.App {
	return app
}

// addCommands adds all CLI subcommands to the root command
func addCommands() {
	RootCmd.AddCommand(NewEstimateCommand(currentApp))
	RootCmd.AddCommand(NewLimitCommand(currentApp))
	RootCmd.AddCommand(NewCalibrationCommand(currentApp))
	RootCmd.AddCommand(NewVersionCommand())
}
