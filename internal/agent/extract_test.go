package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/investreport/pkg/models"
)

const bareAnswer = `{"target_price": 150, "recommendation": "HOLD", "risk_level": "LOW",
 "key_strengths": ["Brand"], "key_risks": ["Valuation"], "analysis_summary": "Fairly valued."}`

func TestExtractAnalysisFenced(t *testing.T) {
	result, err := ExtractAnalysis(validAnswer)
	require.NoError(t, err)
	assert.Equal(t, "441.58", result.TargetPrice.String())
	assert.Equal(t, models.Buy, result.Recommendation)
}

func TestExtractAnalysisBareObject(t *testing.T) {
	result, err := ExtractAnalysis("Sure! " + bareAnswer + " Let me know if you need more.")
	require.NoError(t, err)
	assert.Equal(t, models.Hold, result.Recommendation)
	assert.Equal(t, models.RiskLow, result.RiskLevel)
	assert.Equal(t, "150", result.TargetPrice.String())
}

func TestExtractAnalysisBracesInsideStrings(t *testing.T) {
	answer := strings.Replace(bareAnswer, `"Fairly valued."`, `"Margins {ex-items} held; \"quoted\" }"`, 1)
	result, err := ExtractAnalysis(answer)
	require.NoError(t, err)
	assert.Equal(t, `Margins {ex-items} held; "quoted" }`, result.Narrative)
}

func TestExtractAnalysisFinalAnswerWins(t *testing.T) {
	sell := strings.Replace(bareAnswer, "HOLD", "SELL", 1)
	text := "Initial view:\n```json\n" + bareAnswer + "\n```\n" +
		"I revise my call. Final answer:\n```json\n" + sell + "\n```"
	result, err := ExtractAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, models.Sell, result.Recommendation)
}

func TestExtractAnalysisSkipsInvalidTrailingObject(t *testing.T) {
	text := bareAnswer + "\nNote: {\"recommendation\": \"MAYBE\"}"
	result, err := ExtractAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, models.Hold, result.Recommendation)
}

func TestExtractAnalysisTrimsItems(t *testing.T) {
	answer := strings.Replace(bareAnswer, `["Brand"]`, `["  Brand  ", "Cash flow"]`, 1)
	result, err := ExtractAnalysis(answer)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brand", "Cash flow"}, result.Strengths)
}

func TestExtractAnalysisRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no json", "I cannot help with that.", "no JSON object"},
		{"missing field", strings.Replace(bareAnswer, `"risk_level": "LOW",`, "", 1), "risk_level"},
		{"empty strengths", strings.Replace(bareAnswer, `["Brand"]`, `[]`, 1), "key_strengths"},
		{"blank item", strings.Replace(bareAnswer, `["Valuation"]`, `["   "]`, 1), "key_risks[0] is empty"},
		{"zero target", strings.Replace(bareAnswer, `150`, `0`, 1), "target_price"},
		{"negative target", strings.Replace(bareAnswer, `150`, `-3`, 1), "target_price"},
		{"string target", strings.Replace(bareAnswer, `150`, `"150"`, 1), "target_price"},
		{"lowercase enum", strings.Replace(bareAnswer, `"HOLD"`, `"hold"`, 1), "recommendation"},
		{"blank summary", strings.Replace(bareAnswer, `"Fairly valued."`, `" "`, 1), "empty analysis summary"},
		{"truncated", bareAnswer[:len(bareAnswer)-10], "no JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractAnalysis(tt.text)
			assert.Nil(t, result)
			require.ErrorIs(t, err, ErrAnalysisFailed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJSONCandidates(t *testing.T) {
	text := "```json\n{\"a\":1}\n```\nand {\"a\":1} and {\"b\":{\"c\":2}}"
	assert.Equal(t, []string{`{"a":1}`, `{"b":{"c":2}}`}, jsonCandidates(text))

	text = "{\"b\":1} then\n```json\n{\"a\":1}\n```"
	assert.Equal(t, []string{`{"b":1}`, `{"a":1}`}, jsonCandidates(text))
}

func TestMatchBrace(t *testing.T) {
	assert.Equal(t, 7, matchBrace(`{"a":{}}`, 0))
	assert.Equal(t, -1, matchBrace(`{"a":"}"`, 0))
	assert.Equal(t, 10, matchBrace(`{"a":"\"}"}`, 0))
}
