package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/spigell/resume-analyzer/internal/ai"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModels struct {
	mu    sync.Mutex
	calls []modelCall
	queue []fakeResponse
}

type modelCall struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := ""
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		prompt = contents[0].Parts[0].Text
	}
	f.calls = append(f.calls, modelCall{model: model, prompt: prompt, config: config})

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func stubWait(t *testing.T) *[]time.Duration {
	t.Helper()

	original := wait
	waited := make([]time.Duration, 0)
	wait = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	t.Cleanup(func() { wait = original })

	return &waited
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	waited := stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	g := newGenerator(models, Options{Model: "gemini-pro", MaxRetries: 2}, zap.NewNop())

	output, err := g.Complete(context.Background(), ai.Request{Op: "normalize resume", Prompt: "message", Temperature: 0.2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}

	if len(*waited) != 1 || (*waited)[0] != baseBackoff {
		t.Fatalf("expected a single base backoff wait, got %v", *waited)
	}

	for _, call := range models.calls {
		if call.model != "gemini-pro" {
			t.Fatalf("unexpected model: %q", call.model)
		}
		if call.prompt != "message" {
			t.Fatalf("unexpected prompt: %q", call.prompt)
		}
		if call.config == nil || call.config.Temperature == nil || *call.config.Temperature != 0.2 {
			t.Fatalf("expected temperature to be forwarded")
		}
		if call.config.ResponseSchema != nil {
			t.Fatalf("free text completion must not carry a schema")
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	g := newGenerator(models, Options{Model: "gemini-pro", MaxRetries: 2}, zap.NewNop())

	_, err := g.Complete(context.Background(), ai.Request{Op: "extract skills", Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	var svcErr *ai.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %T: %v", err, err)
	}
	if svcErr.Attempts != 2 || svcErr.Model != "gemini-pro" || svcErr.Op != "extract skills" {
		t.Fatalf("unexpected service error: %+v", svcErr)
	}

	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGenerator(models, Options{Model: "gemini-pro", MaxRetries: 3}, zap.NewNop())

	_, err := g.Complete(context.Background(), ai.Request{Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorHonoursRetryInfoDelay(t *testing.T) {
	waited := stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:   http.StatusTooManyRequests,
		Status: "RESOURCE_EXHAUSTED",
		Details: []map[string]any{{
			"@type":      "type.googleapis.com/google.rpc.RetryInfo",
			"retryDelay": "7s",
		}},
	})
	models.enqueue(textResponse("ok"), nil)

	g := newGenerator(models, Options{MaxRetries: 3}, zap.NewNop())

	if _, err := g.Complete(context.Background(), ai.Request{Prompt: "msg"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*waited) != 1 || (*waited)[0] != 7*time.Second {
		t.Fatalf("expected hinted 7s delay, got %v", *waited)
	}

	if models.calls[0].model != defaultModel {
		t.Fatalf("expected default model, got %q", models.calls[0].model)
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED", Message: "API key not valid"})

	g := newGenerator(models, Options{MaxRetries: 3}, zap.NewNop())

	_, err := g.Complete(context.Background(), ai.Request{Prompt: "msg"})

	var svcErr *ai.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorReturnsContextErrorWhenCancelled(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, errors.New("connection reset"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newGenerator(models, Options{MaxRetries: 3}, zap.NewNop())

	_, err := g.Complete(ctx, ai.Request{Prompt: "msg"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	var svcErr *ai.ServiceError
	if errors.As(err, &svcErr) {
		t.Fatalf("cancellation must not be reported as a service error")
	}
}

func TestCompleteStructuredSetsSchemaAndDecodes(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse("```json\n{\"hard_skills\": [\"Go\"], \"soft_skills\": []}\n```"), nil)

	g := newGenerator(models, Options{}, zap.NewNop())

	schema := &genai.Schema{Type: genai.TypeObject}
	out, err := g.CompleteStructured(context.Background(), ai.Request{Prompt: "jd", Schema: schema})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := models.calls[0].config
	if cfg.ResponseMIMEType != jsonMIMEType || cfg.ResponseSchema != schema {
		t.Fatalf("expected structured output config, got %+v", cfg)
	}

	value, ok := out.Value.(map[string]any)
	if !ok {
		t.Fatalf("expected object value, got %T", out.Value)
	}
	hard, ok := value["hard_skills"].([]any)
	if !ok || len(hard) != 1 || hard[0] != "Go" {
		t.Fatalf("unexpected hard skills: %#v", value["hard_skills"])
	}
	if out.Raw == "" {
		t.Fatalf("expected raw payload to be kept")
	}
}

func TestCompleteStructuredReportsMalformedJSON(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse(`{"hard_skills": ["Go"`), nil)

	g := newGenerator(models, Options{}, zap.NewNop())

	_, err := g.CompleteStructured(context.Background(), ai.Request{Op: "extract skills", Prompt: "jd", Schema: &genai.Schema{Type: genai.TypeObject}})

	var malformed *ai.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if malformed.Raw != `{"hard_skills": ["Go"` {
		t.Fatalf("raw payload not preserved: %q", malformed.Raw)
	}
}

func TestCompleteStructuredRequiresSchema(t *testing.T) {
	g := newGenerator(&fakeModels{}, Options{}, zap.NewNop())

	if _, err := g.CompleteStructured(context.Background(), ai.Request{Prompt: "jd"}); err == nil {
		t.Fatal("expected error without schema")
	}
}

func TestGeneratorEmptyResponseIsMalformed(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	}, nil)

	g := newGenerator(models, Options{}, zap.NewNop())

	_, err := g.Complete(context.Background(), ai.Request{Prompt: "msg"})

	var malformed *ai.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if !errors.Is(err, errEmptyResponse) {
		t.Fatalf("expected empty response cause, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1,2]\n```":         `[1,2]`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}

	for input, want := range cases {
		if got := extractJSON(input); got != want {
			t.Fatalf("extractJSON(%q) = %q, want %q", input, got, want)
		}
	}
}
