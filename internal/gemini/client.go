// Package gemini implements the question-scoring oracle on top of Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/genai"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/errs"
	"github.com/edgard/amabot/internal/resilience"
)

// Client scores AMA questions.
type Client interface {
	// ScoreQuestion returns the analysis of one question. Errors are tagged
	// errs.KindRateLimited (retry later), errs.KindMalformed (never retry) or
	// left untagged.
	ScoreQuestion(ctx context.Context, question, topic string) (*Analysis, error)
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type sdkClient struct {
	generate         generateFunc
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
	breaker          *resilience.CircuitBreaker
	clock            clockwork.Clock
}

var criterionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":         {Type: genai.TypeInteger, Description: "Integer from 0 to 10."},
		"justification": {Type: genai.TypeString, Description: "One sentence explaining the score."},
	},
	Required: []string{"score", "justification"},
}

var analysisSchema = &genai.Schema{
	Type:        genai.TypeObject,
	Description: "Scores of one AMA question on five criteria.",
	Properties: map[string]*genai.Schema{
		"originality": criterionSchema,
		"clarity":     criterionSchema,
		"engagement":  criterionSchema,
		"relevance":   criterionSchema,
		"language":    criterionSchema,
		"summary":     {Type: genai.TypeString, Description: "At most two sentences about the overall score."},
	},
	Required: []string{"originality", "clarity", "engagement", "relevance", "language", "summary"},
}

// NewClient creates a new Gemini scoring client with the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return newClient(gi.Models.GenerateContent, cfg, logger), nil
}

func newClient(generate generateFunc, cfg config.GeminiConfig, log *slog.Logger) *sdkClient {
	baseCfg := &genai.GenerateContentConfig{
		Temperature:      &cfg.Temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if strings.TrimSpace(cfg.SystemInstruction) != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "gemini",
		MaxFailures: cfg.BreakerFailures,
		Timeout:     cfg.Timeout,
		Cooldown:    cfg.BreakerCooldown,
		IsFailure:   countsAgainstBreaker,
		Logger:      log,
	})

	return &sdkClient{
		generate:         generate,
		log:              log,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		breaker:          breaker,
		clock:            clockwork.NewRealClock(),
	}
}

// countsAgainstBreaker keeps answers that prove the service is up (bad JSON,
// explicit rate limiting) and our own cancellations from tripping the breaker.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errs.KindOf(err) == errs.KindOther
}

// ScoreQuestion asks the model to score one question.
func (c *sdkClient) ScoreQuestion(ctx context.Context, question, topic string) (*Analysis, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errs.Malformed(fmt.Errorf("question is empty"))
	}
	if strings.TrimSpace(topic) == "" {
		topic = defaultTopic
	}

	contents := []*genai.Content{genai.NewContentFromText(question, genai.RoleUser)}
	copyCfg := c.scoringConfig(topic)

	var analysis *Analysis
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, copyCfg)
		if err != nil {
			return err
		}
		text, err := c.extractTextFromResponse(ctx, resp)
		if err != nil {
			return err
		}
		analysis, err = ParseAnalysis(text)
		if err != nil {
			c.log.WarnContext(ctx, "Gemini returned an invalid analysis", "error", err, "response_text", text)
		}
		return err
	})
	if resilience.IsOpen(err) {
		cooldown := int(math.Ceil(c.breaker.Cooldown().Seconds()))
		c.log.WarnContext(ctx, "Gemini circuit open, deferring question", "cooldown_seconds", cooldown)
		return nil, errs.RateLimited(cooldown, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to score question: %w", err)
	}

	c.log.DebugContext(ctx, "Question scored", "total", analysis.Total())
	return analysis, nil
}

// scoringConfig puts the scoring prompt for topic ahead of the operator's
// configured system instruction.
func (c *sdkClient) scoringConfig(topic string) *genai.GenerateContentConfig {
	copyCfg := *c.contentConfig
	header := fmt.Sprintf(ScoringSystemInstruction, topic)

	var existingText string
	if c.contentConfig.SystemInstruction != nil && len(c.contentConfig.SystemInstruction.Parts) > 0 {
		existingText = "\n" + c.contentConfig.SystemInstruction.Parts[0].Text
	}

	copyCfg.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{
			{Text: header + existingText},
		},
	}
	return &copyCfg
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err := c.generate(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr genai.APIError
		if !errors.As(err, &apiErr) {
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}

		switch apiErr.Code {
		case http.StatusTooManyRequests:
			retryAfter := retryDelayFromDetails(apiErr.Details)
			c.log.WarnContext(ctx, "Gemini API rate limited", "retry_after_seconds", retryAfter)
			return nil, errs.RateLimited(retryAfter, err)
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError",
					"attempt", i+1, "max_retries", c.maxRetries, "delay", c.retryDelay, "code", apiErr.Code)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-c.clock.After(c.retryDelay):
				}
				continue
			}
		default:
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable APIError", "error", err, "code", apiErr.Code)
			return nil, fmt.Errorf("gemini API call failed (code %d): %w", apiErr.Code, err)
		}
	}

	c.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", lastErr)
	return nil, fmt.Errorf("gemini API call failed after %d retries: %w", c.maxRetries, lastErr)
}

// retryDelayFromDetails reads google.rpc.RetryInfo from an error's details.
func retryDelayFromDetails(details []map[string]any) int {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		delay, err := time.ParseDuration(raw)
		if err != nil || delay <= 0 {
			continue
		}
		return int(math.Ceil(delay.Seconds()))
	}
	return 0
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errs.Malformed(fmt.Errorf("nil response"))
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", errs.Malformed(fmt.Errorf("blocked by safety filter: %s", reasonMsg))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", errs.Malformed(fmt.Errorf("no content, finish reason: %s", finishReason))
	}

	return resp.Text(), nil
}
