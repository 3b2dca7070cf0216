package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycats/SferaDev-sub001/pkg/estimate"
	"github.com/wycats/SferaDev-sub001/pkg/estimator"
)

const sampleRequest = `
system: You are terse.
tools:
  - name: read_file
    description: Read a file
    input_schema:
      type: object
messages:
  - role: user
    content: hello there world
  - role: assistant
    parts:
      - type: tool_call
        name: read_file
        call_id: c1
        input:
          path: README.md
  - role: user
    parts:
      - type: tool_result
        call_id: c1
        content: ["# readme"]
`

func decodeReport(t *testing.T, out string) estimateReport {
	t.Helper()
	var report estimateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func TestEstimateCommand(t *testing.T) {
	t.Run("estimates a request file", func(t *testing.T) {
		app := newTestApp(t)
		path := filepath.Join(t.TempDir(), "request.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleRequest), 0o644))

		out, err := run(t, NewEstimateCommand(providerOf(app)), "", path, "--model", "claude-sonnet-4-20250514")
		require.NoError(t, err)

		report := decodeReport(t, out)
		assert.Equal(t, "claude", report.Model.Family)
		require.Len(t, report.Messages, 3)
		for _, m := range report.Messages {
			assert.Equal(t, estimate.SourceTokenizer, m.Source)
			assert.Greater(t, m.Tokens, 0)
		}
		assert.Greater(t, report.SystemPrompt, 0)
		assert.Greater(t, report.Tools, 0)
		assert.Equal(t, estimator.SourceEstimated, report.Conversation.Source)
		assert.Equal(t, report.Conversation.Tokens+report.SystemPrompt+report.Tools, report.Total)
		assert.Equal(t, 150000, report.Limit.Limit)
		assert.False(t, report.OverLimit)
	})

	t.Run("reads stdin when the file is -", func(t *testing.T) {
		app := newTestApp(t)
		out, err := run(t, NewEstimateCommand(providerOf(app)), `{"messages":[{"role":"user","content":"hi"}]}`, "-", "--model", "gpt-4o")
		require.NoError(t, err)

		report := decodeReport(t, out)
		assert.Equal(t, "gpt-4o", report.Model.Family)
		assert.Len(t, report.Messages, 1)
	})

	t.Run("records the actual count and answers exactly next time", func(t *testing.T) {
		app := newTestApp(t)
		input := `{"messages":[{"role":"user","content":"hello there world"}]}`
		cmd := NewEstimateCommand(providerOf(app))
		_, err := run(t, cmd, input, "-", "--model", "gpt-4o", "--conversation", "c1", "--actual", "42")
		require.NoError(t, err)

		out, err := run(t, NewEstimateCommand(providerOf(app)), input, "-", "--model", "gpt-4o", "--conversation", "c1")
		require.NoError(t, err)
		report := decodeReport(t, out)
		assert.Equal(t, estimator.SourceExact, report.Conversation.Source)
		assert.Equal(t, 42, report.Conversation.Tokens)

		status := app.Estimator.CalibrationStatus("gpt-4o")
		assert.True(t, status.Calibrated)
		assert.Equal(t, 1, status.State.SampleCount)
	})

	t.Run("feeding back its own total leaves calibration neutral", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "request.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleRequest), 0o644))

		out, err := run(t, NewEstimateCommand(providerOf(newTestApp(t))), "", path, "--model", "claude-sonnet-4")
		require.NoError(t, err)
		first := decodeReport(t, out)
		require.Greater(t, first.SystemPrompt, 0)
		require.Greater(t, first.Tools, 0)

		app := newTestApp(t)
		actual := strconv.Itoa(first.Total)
		_, err = run(t, NewEstimateCommand(providerOf(app)), "", path, "--model", "claude-sonnet-4", "--conversation", "c1", "--actual", actual)
		require.NoError(t, err)

		status := app.Estimator.CalibrationStatus("claude")
		require.True(t, status.Calibrated)
		assert.InDelta(t, 1.0, status.State.CorrectionFactor, 1e-9)
		assert.InDelta(t, 0.0, status.State.Drift, 1e-9)

		out, err = run(t, NewEstimateCommand(providerOf(app)), "", path, "--model", "claude-sonnet-4", "--conversation", "c1")
		require.NoError(t, err)
		again := decodeReport(t, out)
		assert.Equal(t, estimator.SourceExact, again.Conversation.Source)
		assert.Equal(t, first.Total, again.Total, "system prompt and tools are already in the reported count")
	})

	t.Run("prints metrics", func(t *testing.T) {
		app := newTestApp(t)
		out, err := run(t, NewEstimateCommand(providerOf(app)), `{"messages":[{"role":"user","content":"hi"}]}`, "-", "--model", "gpt-4o", "--metrics")
		require.NoError(t, err)
		assert.Contains(t, out, "tokenest_conversation_lookups_total")
	})

	t.Run("requires a model", func(t *testing.T) {
		_, err := run(t, NewEstimateCommand(providerOf(newTestApp(t))), "{}", "-")
		assert.Error(t, err)
	})

	t.Run("reports a bad request", func(t *testing.T) {
		_, err := run(t, NewEstimateCommand(providerOf(newTestApp(t))), `{"messages":[{"role":"robot"}]}`, "-", "--model", "gpt-4o")
		assert.ErrorContains(t, err, "unknown role")
	})

	t.Run("fails without an app", func(t *testing.T) {
		_, err := run(t, NewEstimateCommand(providerOf(nil)), "{}", "-", "--model", "gpt-4o")
		assert.ErrorContains(t, err, "not initialized")
	})
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest([]byte(`
messages:
  - content: plain
  - role: user
    parts:
      - type: image
        media_type: image/png
        data: aGVsbG8=
      - text: trailing
`))
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "user", string(req.Messages[0].Role))
	assert.Equal(t, "plain", req.Messages[0].Text())
	require.Len(t, req.Messages[1].Parts, 2)

	_, err = parseRequest([]byte(`messages: [{parts: [{type: image, data: "!!"}]}]`))
	assert.ErrorContains(t, err, "base64")

	_, err = parseRequest([]byte(`messages: [{parts: [{type: video}]}]`))
	assert.ErrorContains(t, err, "unknown part type")
}
