package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/wycats/SferaDev-sub001/internal/di"
	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/estimator"
)

type limitReport struct {
	Model chat.Model `json:"model"`
	estimator.EffectiveLimit
}

// NewLimitCommand creates the limit command, which prints the usable input
// limit of a model.
func NewLimitCommand(appProvider func() *di.App) *cobra.Command {
	return &cobra.Command{
		Use:   "limit MODEL",
		Short: "Show the effective input limit of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appProvider()
			if app == nil {
				return errors.New("estimator is not initialized")
			}
			model := app.Models.Lookup(args[0])
			return writeJSON(cmd.OutOrStdout(), limitReport{
				Model:          model,
				EffectiveLimit: app.Estimator.EffectiveLimit(model),
			})
		},
	}
}
