package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/profilescan/models"
)

func sampleDoc() *Document {
	return &Document{
		Profile: &models.Profile{URL: "https://www.linkedin.com/in/alice", Title: "Alice", Source: "browser"},
		Scrape:  &models.ScrapeResult{Strategy: "main-region", Length: 4499, Rounds: 1, Authenticated: true},
		Report: &models.Report{
			RiskLevel:       models.RiskHigh,
			RedFlags:        []string{"Account created last week"},
			PositiveSignals: []string{"Consistent job history"},
			Conclusion:      "Likely fabricated.",
			Model:           "gpt-4o",
			FellBack:        true,
		},
	}
}

func TestWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatText, false)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleDoc()))

	out := buf.String()
	assert.Contains(t, out, "https://www.linkedin.com/in/alice")
	assert.Contains(t, out, "gpt-4o (fallback)")
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "Red flags")
	assert.Contains(t, out, "Account created last week")
	assert.Contains(t, out, "Likely fabricated.")
	assert.NotContains(t, out, "\x1b[", "colors disabled")
}

func TestWriter_TextColor(t *testing.T) {
	text.EnableColors()
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, "", true)

	require.NoError(t, w.Write(sampleDoc()))

	assert.Contains(t, buf.String(), "\x1b[")
}

func TestWriter_TextError(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, FormatText, false)

	require.NoError(t, w.Write(&Document{Error: &models.ErrorDetail{
		Code:     models.ErrCodeRetriesExhausted,
		Message:  "3 rounds failed",
		Artifact: "scrape_failed_ab12cd34_r3.png",
	}}))

	assert.Contains(t, buf.String(), "Error: RETRIES_EXHAUSTED")
	assert.Contains(t, buf.String(), "scrape_failed_ab12cd34_r3.png")
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, FormatJSON, true)

	require.NoError(t, w.Write(sampleDoc()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "report")
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNewWriter_UnknownFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "yaml", false)
	assert.Error(t, err)
}
