package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"github.com/seenimoa/investreport/pkg/models"
)

// analysisWire is the JSON object the analyst must return. Other fields the
// model echoes back (ticker, company_name, market_cap, ...) are ignored.
type analysisWire struct {
	TargetPrice    float64  `json:"target_price" jsonschema:"exclusiveMinimum=0"`
	Recommendation string   `json:"recommendation" jsonschema:"enum=BUY,enum=HOLD,enum=SELL"`
	RiskLevel      string   `json:"risk_level" jsonschema:"enum=LOW,enum=MEDIUM,enum=HIGH"`
	KeyStrengths   []string `json:"key_strengths" jsonschema:"minItems=1"`
	KeyRisks       []string `json:"key_risks" jsonschema:"minItems=1"`
	Summary        string   `json:"analysis_summary" jsonschema:"minLength=1"`
}

var fencedBlock = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// analysisSchema is compiled once from analysisWire.
var analysisSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&analysisWire{})
	s.Version = ""
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
})

// ExtractAnalysis finds the analysis JSON in free-form model output.
// Candidates are fenced ```json blocks and every balanced {...} object in
// the text. The model is told to end with its answer, so the last candidate
// that passes schema validation wins and earlier drafts are ignored. Nothing
// partial is ever returned: if no candidate validates, the error wraps
// ErrAnalysisFailed and lists why each candidate was rejected.
func ExtractAnalysis(text string) (*models.AnalysisResult, error) {
	schema, err := analysisSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: compile output schema: %w", ErrAnalysisFailed, err)
	}

	candidates := jsonCandidates(text)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no JSON object found in model output", ErrAnalysisFailed)
	}

	var problems []string
	for i := len(candidates) - 1; i >= 0; i-- {
		result, err := validateCandidate(schema, candidates[i])
		if err == nil {
			return result, nil
		}
		problems = append(problems, fmt.Sprintf("candidate %d: %v", i+1, err))
	}
	return nil, fmt.Errorf("%w: model output failed validation: %s", ErrAnalysisFailed, strings.Join(problems, "; "))
}

func validateCandidate(schema *gojsonschema.Schema, candidate string) (*models.AnalysisResult, error) {
	res, err := schema.Validate(gojsonschema.NewStringLoader(candidate))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%s", strings.Join(msgs, ", "))
	}

	var w analysisWire
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return w.toResult()
}

func (w analysisWire) toResult() (*models.AnalysisResult, error) {
	rec, err := models.ParseRecommendation(w.Recommendation)
	if err != nil {
		return nil, err
	}
	risk, err := models.ParseRiskLevel(w.RiskLevel)
	if err != nil {
		return nil, err
	}
	strengths, err := cleanItems("key_strengths", w.KeyStrengths)
	if err != nil {
		return nil, err
	}
	risks, err := cleanItems("key_risks", w.KeyRisks)
	if err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		TargetPrice:    decimal.NewFromFloat(w.TargetPrice),
		Recommendation: rec,
		RiskLevel:      risk,
		Strengths:      strengths,
		Risks:          risks,
		Narrative:      strings.TrimSpace(w.Summary),
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// cleanItems trims every entry and rejects blank ones.
func cleanItems(field string, items []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("%s[%d] is empty", field, i)
		}
		out = append(out, item)
	}
	return out, nil
}

// jsonCandidates returns fenced blocks and top-level balanced objects in
// the order they appear, without duplicates. A repeated object is placed at
// its last occurrence.
func jsonCandidates(text string) []string {
	last := make(map[string]int)
	note := func(c string, at int) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}
		if prev, ok := last[c]; !ok || at > prev {
			last[c] = at
		}
	}

	for _, m := range fencedBlock.FindAllStringSubmatchIndex(text, -1) {
		body := text[m[2]:m[3]]
		if strings.HasPrefix(strings.TrimSpace(body), "{") {
			note(body, m[2])
			continue
		}
		for _, obj := range balancedObjects(body) {
			note(obj.text, m[2]+obj.at)
		}
	}
	for _, obj := range balancedObjects(text) {
		note(obj.text, obj.at)
	}

	out := make([]string, 0, len(last))
	for c := range last {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if last[out[i]] != last[out[j]] {
			return last[out[i]] < last[out[j]]
		}
		return len(out[i]) < len(out[j])
	})
	return out
}

type span struct {
	at   int
	text string
}

// balancedObjects scans for top-level {...} spans, honouring JSON string
// quoting and escapes.
func balancedObjects(text string) []span {
	var out []span
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if end := matchBrace(text, i); end > 0 {
			out = append(out, span{at: i, text: text[i : end+1]})
			i = end
		}
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
