package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/analysis"
	"github.com/spigell/resume-analyzer/internal/document"
	"github.com/spigell/resume-analyzer/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
)

const (
	gaugeWidth  = 40
	markPresent = "✅"
	markMissing = "❌"

	rawPreviewLimit = 500
)

// Renderer writes the human readable parts of a Result.
type Renderer struct {
	Bands Bands
	// Color enables ANSI colours for the gauge.
	Color bool
}

func NewRenderer(bands Bands, color bool) *Renderer {
	return &Renderer{Bands: bands, Color: color}
}

// Render writes every section of the report.
func (r *Renderer) Render(w io.Writer, result *analysis.Result) error {
	sections := []func(io.Writer, *analysis.Result) error{
		r.Gauge,
		r.SkillTables,
		r.Suggestions,
		r.Resume,
	}

	for i, section := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := section(w, result); err != nil {
			return err
		}
	}
	return nil
}

// Gauge writes the score as a 0-100 bar coloured by band.
func (r *Renderer) Gauge(w io.Writer, result *analysis.Result) error {
	score := clamp(result.Score)
	band := r.Bands.Band(score)

	filled := score * gaugeWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)

	_, err := fmt.Fprintf(w, "Match score: %s %s (%s)\n", r.style(band, bar), r.style(band, fmt.Sprintf("%3d/100", score)), band)
	return err
}

// SkillTables writes the hard and soft skill presence tables.
func (r *Renderer) SkillTables(w io.Writer, result *analysis.Result) error {
	if _, err := fmt.Fprintln(w, "Hard skills"); err != nil {
		return err
	}
	presenceTable(w, result.Match.Hard)

	if _, err := fmt.Fprintln(w, "\nSoft skills"); err != nil {
		return err
	}
	presenceTable(w, result.Match.Soft)

	return nil
}

// Suggestions writes the feedback text or the reason it is missing.
func (r *Renderer) Suggestions(w io.Writer, result *analysis.Result) error {
	var text string
	switch {
	case result.Feedback != nil:
		text = *result.Feedback
	case result.FeedbackError != "":
		text = "Suggestions are unavailable: " + result.FeedbackError
	default:
		text = "Suggestions were not requested."
	}

	_, err := fmt.Fprintf(w, "Suggestions\n%s\n", text)
	return err
}

// Resume writes the normalized markdown resume.
func (r *Renderer) Resume(w io.Writer, result *analysis.Result) error {
	_, err := fmt.Fprintf(w, "Resume\n%s\n", result.Resume)
	return err
}

func (r *Renderer) style(band, text string) string {
	if !r.Color {
		return text
	}

	switch band {
	case BandLow:
		return promptui.Styler(promptui.FGRed, promptui.FGBold)(text)
	case BandMedium:
		return promptui.Styler(promptui.FGYellow, promptui.FGBold)(text)
	default:
		return promptui.Styler(promptui.FGGreen, promptui.FGBold)(text)
	}
}

func presenceTable(w io.Writer, entries []analysis.SkillPresence) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Skill", "In resume"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	if len(entries) == 0 {
		table.Append([]string{"(none requested)", ""})
	}

	for _, entry := range entries {
		mark := markMissing
		if entry.Present {
			mark = markPresent
		}
		table.Append([]string{entry.Skill, mark})
	}

	table.Render()
}

func clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// DescribeError turns a pipeline failure into a short message for the user.
func DescribeError(err error) string {
	var (
		unsupported *document.UnsupportedFormatError
		extraction  *document.ExtractionError
		cardinality *analysis.SkillMatchCardinalityError
		malformed   *ai.MalformedResponseError
		service     *ai.ServiceError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		return fmt.Sprintf("The file %q is not supported. Upload one of: %s.", unsupported.Name, strings.Join(document.Supported(), ", "))
	case errors.As(err, &extraction):
		return fmt.Sprintf("Could not read text from %q: %v.", extraction.Name, extraction.Err)
	case errors.Is(err, analysis.ErrEmptySubmission):
		return "Please provide both a resume and a job description."
	case errors.Is(err, analysis.ErrEmptyTaxonomy):
		return "No skills could be found in the job description. Try pasting the full posting."
	case errors.As(err, &cardinality):
		return withRaw(fmt.Sprintf("The model did not assess every requested skill (%v). Please try again.", cardinality), err)
	case errors.As(err, &malformed):
		return withRaw(fmt.Sprintf("The model returned an unexpected answer during %q. Please try again.", malformed.Op), err)
	case errors.As(err, &service):
		return fmt.Sprintf("The model service is unavailable (%s after %d attempt(s)). Please try again later.", service.Op, service.Attempts)
	case errors.Is(err, analysis.ErrSuperseded):
		return "The analysis was replaced by a newer submission."
	default:
		return err.Error()
	}
}

// RawResponse returns the model payload carried by a malformed response
// error, or "" when err has none.
func RawResponse(err error) string {
	var malformed *ai.MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.Raw
	}
	return ""
}

func withRaw(message string, err error) string {
	raw := strings.TrimSpace(RawResponse(err))
	if raw == "" {
		return message
	}
	return message + "\nRaw response: " + utils.TruncateForLog(raw, rawPreviewLimit)
}
