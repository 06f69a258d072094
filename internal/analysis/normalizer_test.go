package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const rawResume = `Jane Doe
Experience
• Built billing services in Go
• Led migration to Kubernetes
Education
- BSc Computer Science`

func TestNormalizerReturnsCompletionUnmodified(t *testing.T) {
	normalized := "## Experience\n- Built billing services in Go\n- Led migration to Kubernetes\n## Education\n- BSc Computer Science\n"
	stub := newStubCompleter().onText(opNormalize, normalized, nil)

	core, observed := observer.New(zapcore.WarnLevel)
	normalizer := NewNormalizer(stub, testStages().Normalize, zap.New(core))

	got, err := normalizer.Normalize(context.Background(), rawResume)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != normalized {
		t.Fatalf("completion text was modified: %q", got)
	}

	call := stub.callsFor(opNormalize)[0]
	if call.Schema != nil {
		t.Fatalf("normalization is a free-text call")
	}
	if !strings.Contains(call.Prompt, "Led migration to Kubernetes") {
		t.Fatalf("resume text missing from prompt")
	}

	if observed.Len() != 0 {
		t.Fatalf("expected no warnings, got %d", observed.Len())
	}
}

func TestNormalizerWarnsWhenStructureIsLost(t *testing.T) {
	stub := newStubCompleter().onText(opNormalize, "Jane Doe built billing services and led a migration.", nil)

	core, observed := observer.New(zapcore.WarnLevel)
	normalizer := NewNormalizer(stub, testStages().Normalize, zap.New(core))

	if _, err := normalizer.Normalize(context.Background(), rawResume); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := observed.FilterMessage("normalized resume lost structural markers").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if ctx := entries[0].ContextMap(); ctx["source_bullets"] != int64(3) || ctx["stage"] != "normalize" {
		t.Fatalf("unexpected warning fields: %v", ctx)
	}
}

func TestNormalizerRejectsEmptyResume(t *testing.T) {
	stub := newStubCompleter()

	_, err := NewNormalizer(stub, testStages().Normalize, zap.NewNop()).Normalize(context.Background(), " \n\t")
	if !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
	if stub.callCount() != 0 {
		t.Fatalf("expected no model calls")
	}
}

func TestOutlineOf(t *testing.T) {
	cases := []struct {
		text string
		want Outline
	}{
		{text: rawResume, want: Outline{Bullets: 3}},
		{text: "# Name\n## Skills\n* Go\n+ Rust\n-not a bullet\n#hashtag", want: Outline{Headings: 2, Bullets: 2}},
		{text: "", want: Outline{}},
		{text: "– dash item\n•", want: Outline{Bullets: 1}},
	}

	for _, tc := range cases {
		if got := OutlineOf(tc.text); got != tc.want {
			t.Fatalf("OutlineOf(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}
