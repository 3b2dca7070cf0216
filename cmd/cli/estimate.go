package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wycats/SferaDev-sub001/internal/di"
	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/estimator"
)

// estimateReport is what the estimate command prints.
type estimateReport struct {
	Model chat.Model `json:"model"`
	estimator.RequestEstimate
	Limit     estimator.EffectiveLimit `json:"limit"`
	OverLimit bool                     `json:"overLimit"`
}

// NewEstimateCommand creates the estimate command. appProvider is called
// when the command runs.
func NewEstimateCommand(appProvider func() *di.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [FILE]",
		Short: "Estimate the input tokens of a request",
		Long: `Estimate the input tokens of a request read from FILE (YAML or JSON).
Use "-" or pipe the request on stdin to read it from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd, args, appProvider())
		},
	}

	cmd.Flags().StringP("model", "m", "", "model ID the request is sent to")
	cmd.Flags().String("conversation", "", "conversation ID (conversation state is kept in memory, so it only matches within one process)")
	cmd.Flags().Int("actual", 0, "input tokens the provider reported for the whole request; calibrates the model family")
	cmd.Flags().Bool("metrics", false, "print metrics after the estimate")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runEstimate(cmd *cobra.Command, args []string, app *di.App) error {
	if app == nil {
		return errors.New("estimator is not initialized")
	}

	path := "-"
	if len(args) == 1 {
		path = args[0]
	} else if !hasStdinInput() {
		return errors.New("no request given: pass a FILE or pipe one on stdin")
	}

	req, err := readRequest(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	modelID, _ := cmd.Flags().GetString("model")
	conversationID, _ := cmd.Flags().GetString("conversation")
	actual, _ := cmd.Flags().GetInt("actual")
	showMetrics, _ := cmd.Flags().GetBool("metrics")

	model := app.Models.Lookup(modelID)
	h := app.Estimator

	report := estimateReport{
		Model:           model,
		RequestEstimate: h.EstimateRequest(*req, model, conversationID),
		Limit:           h.EffectiveLimit(model),
	}
	report.OverLimit = report.Total > report.Limit.Limit

	if actual > 0 {
		h.RecordActual(req.Messages, model, actual, conversationID)
	}

	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return fmt.Errorf("failed to write estimate: %w", err)
	}
	if showMetrics && app.Metrics != nil {
		return writeMetrics(cmd.OutOrStdout(), app.Metrics)
	}
	return nil
}
