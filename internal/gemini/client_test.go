package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/genai"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/errs"
)

const validAnalysisJSON = `{
  "originality": {"score": 8, "justification": "Fresh angle."},
  "clarity": {"score": 7, "justification": "Clear."},
  "engagement": {"score": 9, "justification": "Many will care."},
  "relevance": {"score": 10, "justification": "On topic."},
  "language": {"score": 6, "justification": "Minor typos."},
  "summary": "Strong question."
}`

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func testConfig() config.GeminiConfig {
	return config.GeminiConfig{
		ModelName:       "test-model",
		MaxRetries:      1,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: 30 * time.Second,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedGenerator struct {
	calls     int
	lastCfg   *genai.GenerateContentConfig
	responses []func() (*genai.GenerateContentResponse, error)
}

func (g *scriptedGenerator) generate(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := g.calls
	g.calls++
	g.lastCfg = cfg
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i]()
}

func respond(text string) func() (*genai.GenerateContentResponse, error) {
	return func() (*genai.GenerateContentResponse, error) { return textResponse(text), nil }
}

func fail(err error) func() (*genai.GenerateContentResponse, error) {
	return func() (*genai.GenerateContentResponse, error) { return nil, err }
}

func TestParseAnalysis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantTotal int
	}{
		{name: "valid", input: validAnalysisJSON, wantTotal: 80},
		{name: "fenced", input: "```json\n" + validAnalysisJSON + "\n```", wantTotal: 80},
		{name: "empty", input: "  ", wantErr: true},
		{name: "not json", input: "great question!", wantErr: true},
		{name: "missing criterion", input: `{"originality":{"score":1},"clarity":{"score":1},"engagement":{"score":1},"relevance":{"score":1}}`, wantErr: true},
		{name: "out of range", input: `{"originality":{"score":11},"clarity":{"score":1},"engagement":{"score":1},"relevance":{"score":1},"language":{"score":1}}`, wantErr: true},
		{name: "negative", input: `{"originality":{"score":-1},"clarity":{"score":1},"engagement":{"score":1},"relevance":{"score":1},"language":{"score":1}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAnalysis(tt.input)
			if tt.wantErr {
				if errs.KindOf(err) != errs.KindMalformed {
					t.Fatalf("ParseAnalysis() error = %v, want malformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAnalysis() error = %v", err)
			}
			if got.Total() != tt.wantTotal {
				t.Errorf("Total() = %d, want %d", got.Total(), tt.wantTotal)
			}
		})
	}
}

func TestAnalysisScoresAndMarkdown(t *testing.T) {
	t.Parallel()

	a, err := ParseAnalysis(validAnalysisJSON)
	if err != nil {
		t.Fatalf("ParseAnalysis() error = %v", err)
	}
	s := a.Scores()
	if s.Originality != 8 || s.Language != 6 || s.Total != 80 {
		t.Errorf("Scores() = %+v, want originality 8, language 6, total 80", s)
	}
	md := a.Markdown()
	for _, want := range []string{"**Originality**: 8/10 Fresh angle.", "**Language**: 6/10", "Strong question."} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() = %q, want it to contain %q", md, want)
		}
	}
}

func TestScoreQuestion(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){respond(validAnalysisJSON)}}
	c := newClient(gen.generate, testConfig(), discardLogger())

	got, err := c.ScoreQuestion(context.Background(), "How will you scale?", "")
	if err != nil {
		t.Fatalf("ScoreQuestion() error = %v", err)
	}
	if got.Total() != 80 {
		t.Errorf("ScoreQuestion() total = %d, want 80", got.Total())
	}

	if _, err := c.ScoreQuestion(context.Background(), "   ", "topic"); errs.KindOf(err) != errs.KindMalformed {
		t.Errorf("ScoreQuestion(empty) error = %v, want malformed", err)
	}
}

func TestScoreQuestionRateLimited(t *testing.T) {
	t.Parallel()

	apiErr := genai.APIError{
		Code: 429,
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "36.2s"},
		},
	}
	gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){fail(apiErr)}}
	c := newClient(gen.generate, testConfig(), discardLogger())

	_, err := c.ScoreQuestion(context.Background(), "q?", "t")
	if !errs.IsRateLimited(err) {
		t.Fatalf("ScoreQuestion() error = %v, want rate limited", err)
	}
	if got := errs.RetryAfter(err); got != 37 {
		t.Errorf("RetryAfter() = %d, want 37", got)
	}
	if gen.calls != 1 {
		t.Errorf("generate called %d times, want 1 (no in-client retry on 429)", gen.calls)
	}
}

func TestScoreQuestionRetriesServerErrors(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){
		fail(genai.APIError{Code: 503}),
		respond(validAnalysisJSON),
	}}
	c := newClient(gen.generate, testConfig(), discardLogger())

	if _, err := c.ScoreQuestion(context.Background(), "q?", "t"); err != nil {
		t.Fatalf("ScoreQuestion() error = %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generate called %d times, want 2", gen.calls)
	}
}

func TestScoreQuestionSystemInstruction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		operator string
		topic    string
		want     []string
	}{
		{name: "scoring prompt only", topic: "Rollups", want: []string{"Session topic: Rollups"}},
		{name: "default topic", want: []string{"Session topic: " + defaultTopic}},
		{
			name:     "operator text appended",
			operator: "Questions in Spanish are expected.",
			topic:    "Bridges",
			want:     []string{"Session topic: Bridges", "Questions in Spanish are expected."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.SystemInstruction = tt.operator
			gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){respond(validAnalysisJSON)}}
			c := newClient(gen.generate, cfg, discardLogger())

			if _, err := c.ScoreQuestion(context.Background(), "q?", tt.topic); err != nil {
				t.Fatalf("ScoreQuestion() error = %v", err)
			}
			if gen.lastCfg == nil || gen.lastCfg.SystemInstruction == nil || len(gen.lastCfg.SystemInstruction.Parts) == 0 {
				t.Fatal("generate got no system instruction")
			}
			got := gen.lastCfg.SystemInstruction.Parts[0].Text
			if !strings.HasPrefix(got, "You are the judge") {
				t.Errorf("system instruction = %q, want the scoring prompt first", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("system instruction = %q, want it to contain %q", got, want)
				}
			}
			if strings.Index(got, "Session topic:") > strings.Index(got, tt.operator) && tt.operator != "" {
				t.Errorf("system instruction = %q, want operator text after the scoring prompt", got)
			}
		})
	}

	// The base config is shared between calls and must stay untouched.
	cfg := testConfig()
	cfg.SystemInstruction = "extra"
	c := newClient(nil, cfg, discardLogger())
	c.scoringConfig("a")
	c.scoringConfig("b")
	if got := c.contentConfig.SystemInstruction.Parts[0].Text; got != "extra" {
		t.Errorf("base system instruction = %q, want %q", got, "extra")
	}
}

func TestScoreQuestionServerErrorWaitsRetryDelay(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RetryDelaySeconds = 5
	gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){
		fail(genai.APIError{Code: 500}),
		respond(validAnalysisJSON),
	}}
	c := newClient(gen.generate, cfg, discardLogger())
	fc := clockwork.NewFakeClock()
	c.clock = fc

	done := make(chan error, 1)
	go func() {
		_, err := c.ScoreQuestion(context.Background(), "q?", "t")
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("client never waited for the retry delay: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generate called %d times before the delay elapsed, want 1", gen.calls)
	}

	fc.Advance(4 * time.Second)
	select {
	case err := <-done:
		t.Fatalf("ScoreQuestion() returned %v before the retry delay elapsed", err)
	default:
	}

	fc.Advance(time.Second)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ScoreQuestion() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("ScoreQuestion() did not return after the retry delay")
	}
	if gen.calls != 2 {
		t.Errorf("generate called %d times, want 2", gen.calls)
	}
}

func TestScoreQuestionMalformedDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){respond("nope")}}
	c := newClient(gen.generate, testConfig(), discardLogger())

	for i := 0; i < 4; i++ {
		_, err := c.ScoreQuestion(context.Background(), "q?", "t")
		if errs.KindOf(err) != errs.KindMalformed {
			t.Fatalf("call %d error = %v, want malformed", i+1, err)
		}
	}
}

func TestScoreQuestionOpenBreakerIsRateLimited(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	gen := &scriptedGenerator{responses: []func() (*genai.GenerateContentResponse, error){fail(boom)}}
	c := newClient(gen.generate, testConfig(), discardLogger())

	for i := 0; i < 2; i++ {
		_, err := c.ScoreQuestion(context.Background(), "q?", "t")
		if !errors.Is(err, boom) || errs.KindOf(err) != errs.KindOther {
			t.Fatalf("call %d error = %v, want untagged upstream error", i+1, err)
		}
	}

	_, err := c.ScoreQuestion(context.Background(), "q?", "t")
	if !errs.IsRateLimited(err) {
		t.Fatalf("ScoreQuestion() with open breaker error = %v, want rate limited", err)
	}
	if got := errs.RetryAfter(err); got != 30 {
		t.Errorf("RetryAfter() = %d, want breaker cooldown 30", got)
	}
	if gen.calls != 2 {
		t.Errorf("generate called %d times, want 2", gen.calls)
	}
}

func TestExtractTextBlockedIsMalformed(t *testing.T) {
	t.Parallel()

	c := newClient(nil, testConfig(), discardLogger())
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason:        genai.BlockedReasonSafety,
			BlockReasonMessage: "unsafe",
		},
	}
	if _, err := c.extractTextFromResponse(context.Background(), resp); errs.KindOf(err) != errs.KindMalformed {
		t.Errorf("extractTextFromResponse(blocked) error = %v, want malformed", err)
	}
	if _, err := c.extractTextFromResponse(context.Background(), &genai.GenerateContentResponse{}); errs.KindOf(err) != errs.KindMalformed {
		t.Errorf("extractTextFromResponse(empty) error = %v, want malformed", err)
	}
}
