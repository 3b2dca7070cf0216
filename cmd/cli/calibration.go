package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wycats/SferaDev-sub001/internal/di"
)

// NewCalibrationCommand creates the calibration command group.
func NewCalibrationCommand(appProvider func() *di.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibration",
		Aliases: []string{"cal"},
		Short:   "Inspect and manage per-family calibration",
	}

	cmd.AddCommand(newCalibrationListCommand(appProvider))
	cmd.AddCommand(newCalibrationResetCommand(appProvider))
	cmd.AddCommand(newCalibrationRecordCommand(appProvider))

	return cmd
}

func requireApp(appProvider func() *di.App) (*di.App, error) {
	app := appProvider()
	if app == nil {
		return nil, errors.New("estimator is not initialized")
	}
	return app, nil
}

func newCalibrationListCommand(appProvider func() *di.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calibrated model families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(appProvider)
			if err != nil {
				return err
			}
			manager := app.Estimator.Calibration()
			states := manager.All()

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), states)
			}

			if len(states) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No calibration data.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FAMILY\tFACTOR\tSAMPLES\tDRIFT\tCONFIDENCE\tLAST CALIBRATED")
			for _, s := range states {
				fmt.Fprintf(w, "%s\t%.4f\t%d\t%.4f\t%s\t%s\n",
					s.ModelFamily, s.CorrectionFactor, s.SampleCount, s.Drift,
					manager.Confidence(s.ModelFamily), s.LastCalibrated.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}

func newCalibrationResetCommand(appProvider func() *di.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset [FAMILY]",
		Short: "Forget the calibration of a family, or of all families with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(appProvider)
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")
			manager := app.Estimator.Calibration()
			switch {
			case all:
				manager.ResetAll()
				fmt.Fprintln(cmd.OutOrStdout(), "Reset all calibration data.")
			case len(args) == 1:
				manager.Reset(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Reset calibration for %s.\n", args[0])
			default:
				return errors.New("give a FAMILY or --all")
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "reset every family")
	return cmd
}

func newCalibrationRecordCommand(appProvider func() *di.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record MODEL",
		Short: "Feed one estimated/actual pair into a model family's calibration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(appProvider)
			if err != nil {
				return err
			}
			estimated, _ := cmd.Flags().GetInt("estimated")
			actual, _ := cmd.Flags().GetInt("actual")
			if estimated <= 0 || actual <= 0 {
				return errors.New("--estimated and --actual must both be positive")
			}

			model := app.Models.Lookup(args[0])
			app.Estimator.Calibration().Calibrate(model.Family, estimated, actual)
			return writeJSON(cmd.OutOrStdout(), app.Estimator.CalibrationStatus(model.Family))
		},
	}
	cmd.Flags().Int("estimated", 0, "tokens that were estimated")
	cmd.Flags().Int("actual", 0, "tokens the provider reported")
	return cmd
}
