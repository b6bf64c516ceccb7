package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/errs"
)

// Criterion score bounds.
const (
	MinCriterionScore = 0
	MaxCriterionScore = 10
	MaxTotalScore     = 100
)

// CriterionScore is the oracle's verdict on one criterion.
type CriterionScore struct {
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// Analysis is the structured scoring of one question.
type Analysis struct {
	Originality CriterionScore `json:"originality"`
	Clarity     CriterionScore `json:"clarity"`
	Engagement  CriterionScore `json:"engagement"`
	Relevance   CriterionScore `json:"relevance"`
	Language    CriterionScore `json:"language"`
	Summary     string         `json:"summary"`
}

type namedCriterion struct {
	Name  string
	Score CriterionScore
}

func (a *Analysis) criteria() []namedCriterion {
	return []namedCriterion{
		{"Originality", a.Originality},
		{"Clarity", a.Clarity},
		{"Engagement", a.Engagement},
		{"Relevance", a.Relevance},
		{"Language", a.Language},
	}
}

// Validate checks every criterion is within bounds.
func (a *Analysis) Validate() error {
	for _, c := range a.criteria() {
		if c.Score.Score < MinCriterionScore || c.Score.Score > MaxCriterionScore {
			return fmt.Errorf("%s score %d outside %d-%d", strings.ToLower(c.Name), c.Score.Score, MinCriterionScore, MaxCriterionScore)
		}
	}
	return nil
}

// Total is the aggregate score on a 0-100 scale: the five criteria summed and doubled.
func (a *Analysis) Total() int {
	sum := 0
	for _, c := range a.criteria() {
		sum += c.Score.Score
	}
	return sum * MaxTotalScore / (len(a.criteria()) * MaxCriterionScore)
}

// Scores converts the analysis into the persisted score columns.
func (a *Analysis) Scores() database.Scores {
	return database.Scores{
		Originality: a.Originality.Score,
		Clarity:     a.Clarity.Score,
		Engagement:  a.Engagement.Score,
		Relevance:   a.Relevance.Score,
		Language:    a.Language.Score,
		Total:       a.Total(),
	}
}

// Markdown renders the per-criterion breakdown as a markdown list.
func (a *Analysis) Markdown() string {
	var sb strings.Builder
	for _, c := range a.criteria() {
		fmt.Fprintf(&sb, "- **%s**: %d/%d", c.Name, c.Score.Score, MaxCriterionScore)
		if j := strings.TrimSpace(c.Score.Justification); j != "" {
			sb.WriteString(" ")
			sb.WriteString(j)
		}
		sb.WriteString("\n")
	}
	if s := strings.TrimSpace(a.Summary); s != "" {
		sb.WriteString("\n")
		sb.WriteString(s)
	}
	return sb.String()
}

// ParseAnalysis decodes and validates the oracle's JSON answer. Every failure
// is tagged malformed.
func ParseAnalysis(text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, errs.Malformed(fmt.Errorf("empty analysis"))
	}

	var raw struct {
		Originality *CriterionScore `json:"originality"`
		Clarity     *CriterionScore `json:"clarity"`
		Engagement  *CriterionScore `json:"engagement"`
		Relevance   *CriterionScore `json:"relevance"`
		Language    *CriterionScore `json:"language"`
		Summary     string          `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errs.Malformed(fmt.Errorf("invalid analysis JSON: %w", err))
	}

	for name, c := range map[string]*CriterionScore{
		"originality": raw.Originality,
		"clarity":     raw.Clarity,
		"engagement":  raw.Engagement,
		"relevance":   raw.Relevance,
		"language":    raw.Language,
	} {
		if c == nil {
			return nil, errs.Malformed(fmt.Errorf("analysis is missing %s", name))
		}
	}

	a := Analysis{
		Originality: *raw.Originality,
		Clarity:     *raw.Clarity,
		Engagement:  *raw.Engagement,
		Relevance:   *raw.Relevance,
		Language:    *raw.Language,
		Summary:     raw.Summary,
	}
	if err := a.Validate(); err != nil {
		return nil, errs.Malformed(err)
	}
	return &a, nil
}
