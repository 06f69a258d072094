package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spigell/resume-analyzer/internal/ai"
)

// stubCompleter answers requests by operation name and records every call.
type stubCompleter struct {
	mu         sync.Mutex
	calls      []ai.Request
	text       map[string]func(context.Context, ai.Request) (string, error)
	structured map[string]func(context.Context, ai.Request) (*ai.Structured, error)
}

func newStubCompleter() *stubCompleter {
	return &stubCompleter{
		text:       map[string]func(context.Context, ai.Request) (string, error){},
		structured: map[string]func(context.Context, ai.Request) (*ai.Structured, error){},
	}
}

func (s *stubCompleter) onText(op, reply string, err error) *stubCompleter {
	s.text[op] = func(context.Context, ai.Request) (string, error) { return reply, err }
	return s
}

func (s *stubCompleter) onJSON(t *testing.T, op, raw string) *stubCompleter {
	t.Helper()

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		t.Fatalf("invalid fixture for %s: %v", op, err)
	}
	s.structured[op] = func(context.Context, ai.Request) (*ai.Structured, error) {
		return &ai.Structured{Raw: raw, Value: value}, nil
	}
	return s
}

func (s *stubCompleter) onStructuredError(op string, err error) *stubCompleter {
	s.structured[op] = func(context.Context, ai.Request) (*ai.Structured, error) { return nil, err }
	return s
}

func (s *stubCompleter) record(req ai.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
}

func (s *stubCompleter) Complete(ctx context.Context, req ai.Request) (string, error) {
	s.record(req)
	handler, ok := s.text[req.Op]
	if !ok {
		return "", fmt.Errorf("unexpected text call %q", req.Op)
	}
	return handler(ctx, req)
}

func (s *stubCompleter) CompleteStructured(ctx context.Context, req ai.Request) (*ai.Structured, error) {
	s.record(req)
	if req.Schema == nil {
		return nil, errors.New("structured call without schema")
	}
	handler, ok := s.structured[req.Op]
	if !ok {
		return nil, fmt.Errorf("unexpected structured call %q", req.Op)
	}
	return handler(ctx, req)
}

func (s *stubCompleter) callsFor(op string) []ai.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ai.Request
	for _, call := range s.calls {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testStages() Stages {
	stages, _ := EnvironmentStages(EnvironmentPrototype)
	return stages
}
