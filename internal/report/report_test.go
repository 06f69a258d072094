package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/analysis"
	"github.com/spigell/resume-analyzer/internal/document"

	"github.com/google/uuid"
)

func sampleResult() *analysis.Result {
	feedback := "1. Quantify the Kubernetes migration."
	return &analysis.Result{
		ID:       uuid.New(),
		JobTitle: "Platform Engineer",
		Resume:   "## Experience\n- Go services",
		Skills:   analysis.SkillTaxonomy{Hard: []string{"Go", "Terraform"}, Soft: []string{"Mentoring"}},
		Match: analysis.SkillMatch{
			Hard: []analysis.SkillPresence{{Skill: "Go", Present: true}, {Skill: "Terraform", Present: false}},
			Soft: []analysis.SkillPresence{{Skill: "Mentoring", Present: true}},
		},
		Score:    66,
		Feedback: &feedback,
	}
}

func TestBands(t *testing.T) {
	bands := DefaultBands()

	cases := map[int]string{0: BandLow, 39: BandLow, 40: BandMedium, 69: BandMedium, 70: BandHigh, 100: BandHigh}
	for score, want := range cases {
		if got := bands.Band(score); got != want {
			t.Fatalf("Band(%d) = %s, want %s", score, got, want)
		}
	}

	if err := (Bands{Low: 80, High: 50}).Validate(); err == nil {
		t.Fatalf("expected inverted bands to be rejected")
	}
	if err := bands.Validate(); err != nil {
		t.Fatalf("default bands invalid: %v", err)
	}
}

func TestRenderPlain(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(DefaultBands(), false).Render(&buf, sampleResult()); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, fragment := range []string{"66/100 (medium)", "Hard skills", "Soft skills", "Terraform", markPresent, markMissing, "Quantify the Kubernetes", "## Experience"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("report missing %q:\n%s", fragment, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("plain report must not contain ANSI escapes")
	}
}

func TestGaugeColour(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	result.Score = 10

	if err := NewRenderer(DefaultBands(), true).Gauge(&buf, result); err != nil {
		t.Fatalf("gauge: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") || !strings.Contains(buf.String(), "(low)") {
		t.Fatalf("expected coloured low gauge, got %q", buf.String())
	}
}

func TestSuggestionsFallbacks(t *testing.T) {
	r := NewRenderer(DefaultBands(), false)

	result := sampleResult()
	result.Feedback = nil
	result.FeedbackError = "quota exceeded"

	var buf bytes.Buffer
	_ = r.Suggestions(&buf, result)
	if !strings.Contains(buf.String(), "unavailable: quota exceeded") {
		t.Fatalf("unexpected suggestions: %q", buf.String())
	}

	result.FeedbackError = ""
	buf.Reset()
	_ = r.Suggestions(&buf, result)
	if !strings.Contains(buf.String(), "not requested") {
		t.Fatalf("unexpected suggestions: %q", buf.String())
	}
}

func TestDump(t *testing.T) {
	result := sampleResult()
	result.Match.Soft = nil

	path, err := Dump(result, DefaultBands())
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("dump is not JSON: %v", err)
	}
	if decoded["band"] != BandMedium || decoded["score"] != float64(66) {
		t.Fatalf("unexpected dump: %v", decoded)
	}

	match := decoded["match"].(map[string]any)
	if soft, ok := match["soft_skills"].([]any); !ok || len(soft) != 0 {
		t.Fatalf("expected empty soft list, got %#v", match["soft_skills"])
	}
}

func TestDescribeError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: &document.UnsupportedFormatError{Name: "cv.odt", Ext: ".odt"}, want: "not supported"},
		{err: &document.ExtractionError{Name: "cv.pdf", Err: errors.New("bad xref")}, want: "bad xref"},
		{err: analysis.ErrEmptySubmission, want: "both a resume and a job description"},
		{err: &ai.MalformedResponseError{Op: "match skills", Err: &analysis.SkillMatchCardinalityError{Category: analysis.CategoryHard, Expected: 2, Got: 1}}, want: "every requested skill"},
		{err: &ai.MalformedResponseError{Op: "extract skills", Err: errors.New("eof")}, want: "extract skills"},
		{err: &ai.ServiceError{Op: "normalize resume", Attempts: 3, Err: errors.New("503")}, want: "3 attempt(s)"},
	}

	for _, tc := range cases {
		if got := DescribeError(tc.err); !strings.Contains(got, tc.want) {
			t.Fatalf("DescribeError(%v) = %q, want it to contain %q", tc.err, got, tc.want)
		}
	}

	if DescribeError(nil) != "" {
		t.Fatalf("expected empty description for nil")
	}
}

func TestDescribeErrorShowsRawResponse(t *testing.T) {
	raw := `{"hard_skills": [oops`
	cases := []error{
		&ai.MalformedResponseError{Op: "extract skills", Raw: raw, Err: errors.New("unexpected end of JSON input")},
		fmt.Errorf("analysis: %w", &ai.MalformedResponseError{
			Op:  "match skills",
			Raw: raw,
			Err: &analysis.SkillMatchCardinalityError{Category: analysis.CategorySoft, Expected: 3, Got: 0},
		}),
	}

	for _, err := range cases {
		got := DescribeError(err)
		if !strings.Contains(got, "Raw response: "+raw) {
			t.Fatalf("DescribeError(%v) = %q, want the raw payload", err, got)
		}
		if RawResponse(err) != raw {
			t.Fatalf("RawResponse(%v) = %q", err, RawResponse(err))
		}
	}

	long := strings.Repeat("x", rawPreviewLimit*2)
	got := DescribeError(&ai.MalformedResponseError{Op: "extract skills", Raw: long, Err: errors.New("eof")})
	if strings.Contains(got, long) || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected a truncated payload, got %d bytes", len(got))
	}

	if got := DescribeError(&ai.MalformedResponseError{Op: "extract skills", Err: errors.New("eof")}); strings.Contains(got, "Raw response") {
		t.Fatalf("unexpected raw section for empty payload: %q", got)
	}
	if RawResponse(errors.New("plain")) != "" {
		t.Fatalf("expected no payload for a plain error")
	}
}
