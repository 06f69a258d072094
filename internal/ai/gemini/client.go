package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/utils"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	provider = "gemini"

	defaultModel         = "gemini-2.5-flash"
	defaultMaxRetries    = 3
	defaultMaxRetryDelay = 30 * time.Second
	defaultMaxLogLength  = 200

	baseBackoff = time.Second
	maxBackoff  = 16 * time.Second

	jsonMIMEType = "application/json"
)

var (
	wait = utils.WaitFor

	errEmptyResponse = errors.New("gemini api returned empty response")
	retryAfterRe     = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(?:s\b|sec|second)`)
)

// contentModels is the slice of *genai.Models the generator needs.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options tunes a Generator. Zero values fall back to defaults.
type Options struct {
	Model string
	// MaxRetries is the total number of attempts for one call.
	MaxRetries int
	// MaxRetryDelay caps the server-requested delay the generator is willing to wait.
	MaxRetryDelay time.Duration
	MaxLogLength  int
}

// Generator implements ai.Completer on top of the Google GenAI client.
type Generator struct {
	models        contentModels
	model         string
	maxRetries    int
	maxRetryDelay time.Duration
	maxLogLen     int
	logger        *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, opts Options, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, opts, log), nil
}

func newGenerator(models contentModels, opts Options, log *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	maxRetryDelay := opts.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Generator{
		models:        models,
		model:         model,
		maxRetries:    maxRetries,
		maxRetryDelay: maxRetryDelay,
		maxLogLen:     maxLogLen,
		logger:        logger.WithProvider(log, provider, ""),
	}
}

// Model returns the default model used when a request does not name one.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Complete sends the prompt and returns the textual response.
func (g *Generator) Complete(ctx context.Context, req ai.Request) (string, error) {
	return g.generate(ctx, req, g.baseConfig(req))
}

// CompleteStructured asks for JSON constrained by req.Schema and decodes it.
// Undecodable output is reported as *ai.MalformedResponseError carrying the raw text.
func (g *Generator) CompleteStructured(ctx context.Context, req ai.Request) (*ai.Structured, error) {
	if req.Schema == nil {
		return nil, fmt.Errorf("%s: response schema is required for structured completion", opName(req))
	}

	cfg := g.baseConfig(req)
	cfg.ResponseMIMEType = jsonMIMEType
	cfg.ResponseSchema = req.Schema

	raw, err := g.generate(ctx, req, cfg)
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &value); err != nil {
		return nil, &ai.MalformedResponseError{Op: opName(req), Raw: raw, Err: fmt.Errorf("decode json: %w", err)}
	}

	return &ai.Structured{Raw: raw, Value: value}, nil
}

func (g *Generator) baseConfig(req ai.Request) *genai.GenerateContentConfig {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.MaxOutputTokens
	}
	return cfg
}

func (g *Generator) generate(ctx context.Context, req ai.Request, cfg *genai.GenerateContentConfig) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	op := opName(req)
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", fmt.Errorf("%s: prompt must not be empty", op)
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = g.model
	}

	log := g.logger.With(zap.String("op", op), zap.String(logger.FieldModel, model))
	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
		zap.Bool("structured", cfg.ResponseSchema != nil),
	)

	var resp *genai.GenerateContentResponse
	for attempt := 1; ; attempt++ {
		var err error
		resp, err = g.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err == nil {
			break
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", op, ctxErr)
		}

		delay, retry := g.retryDelay(err, attempt)
		if !retry || attempt >= g.maxRetries {
			return "", &ai.ServiceError{Op: op, Model: model, Attempts: attempt, Err: err}
		}

		log.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	output := responseText(resp)
	if output == "" {
		return "", &ai.MalformedResponseError{Op: op, Err: describeEmpty(resp)}
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

// retryDelay decides whether err is transient and how long to wait before the next attempt.
func (g *Generator) retryDelay(err error, attempt int) (time.Duration, bool) {
	backoff := baseBackoff << (attempt - 1)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		// Transport level failures (dial, reset, timeout) are worth another try.
		return backoff, true
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests,
		apiErr.Code == http.StatusRequestTimeout,
		apiErr.Code >= http.StatusInternalServerError:
	default:
		return 0, false
	}

	if hinted, ok := hintedDelay(apiErr); ok {
		if hinted > g.maxRetryDelay {
			return hinted, false
		}
		if hinted > backoff {
			return hinted, true
		}
	}

	return backoff, true
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}

	return genai.APIError{}, false
}

// hintedDelay reads the server-requested delay from RetryInfo details or the message text.
func hintedDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		kind, _ := detail["@type"].(string)
		if !strings.HasSuffix(kind, "RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			return d, true
		}
	}

	if m := retryAfterRe.FindStringSubmatch(apiErr.Message); len(m) == 2 {
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return time.Duration(seconds * float64(time.Second)), true
		}
	}

	return 0, false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// Only the first candidate with content is used.
		if builder.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String())
}

func describeEmpty(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return errEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: prompt blocked (%s)", errEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.FinishReason != "" {
			return fmt.Errorf("%w: finish reason %s", errEmptyResponse, candidate.FinishReason)
		}
	}
	return errEmptyResponse
}

// extractJSON strips markdown code fences some models wrap JSON into.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

func opName(req ai.Request) string {
	if op := strings.TrimSpace(req.Op); op != "" {
		return op
	}
	return "generate content"
}
