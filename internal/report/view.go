package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spigell/resume-analyzer/internal/analysis"

	"github.com/google/uuid"
)

const (
	BandLow    = "low"
	BandMedium = "medium"
	BandHigh   = "high"
)

// Bands splits the 0-100 score into three colour bands: scores below Low are
// low, scores below High are medium and the rest are high.
type Bands struct {
	Low  int `mapstructure:"low-band" json:"low"`
	High int `mapstructure:"high-band" json:"high"`
}

// DefaultBands returns the bands used when none are configured.
func DefaultBands() Bands {
	return Bands{Low: 40, High: 70}
}

func (b Bands) Validate() error {
	if b.Low < 0 || b.High > 100 || b.Low > b.High {
		return fmt.Errorf("score bands must satisfy 0 <= low <= high <= 100, got low=%d high=%d", b.Low, b.High)
	}
	return nil
}

// Band names the band score falls into.
func (b Bands) Band(score int) string {
	switch {
	case score < b.Low:
		return BandLow
	case score < b.High:
		return BandMedium
	default:
		return BandHigh
	}
}

// View is the serialized form of a Result shared by the JSON output, the
// dump file and the HTTP API.
type View struct {
	ID            uuid.UUID              `json:"id"`
	CreatedAt     time.Time              `json:"created_at"`
	JobTitle      string                 `json:"job_title,omitempty"`
	Resume        string                 `json:"resume"`
	Skills        analysis.SkillTaxonomy `json:"skills"`
	Match         analysis.SkillMatch    `json:"match"`
	Score         int                    `json:"score"`
	Band          string                 `json:"band"`
	Feedback      *string                `json:"feedback"`
	FeedbackError string                 `json:"feedback_error,omitempty"`
}

func NewView(result *analysis.Result, bands Bands) View {
	view := View{
		ID:            result.ID,
		CreatedAt:     result.CreatedAt,
		JobTitle:      result.JobTitle,
		Resume:        result.Resume,
		Skills:        result.Skills,
		Match:         result.Match,
		Score:         result.Score,
		Band:          bands.Band(result.Score),
		Feedback:      result.Feedback,
		FeedbackError: result.FeedbackError,
	}

	// Keep empty lists as [] rather than null in JSON.
	if view.Skills.Hard == nil {
		view.Skills.Hard = []string{}
	}
	if view.Skills.Soft == nil {
		view.Skills.Soft = []string{}
	}
	if view.Match.Hard == nil {
		view.Match.Hard = []analysis.SkillPresence{}
	}
	if view.Match.Soft == nil {
		view.Match.Soft = []analysis.SkillPresence{}
	}

	return view
}

// Dump writes the result as indented JSON into a new temporary file and
// returns its path.
func Dump(result *analysis.Result, bands Bands) (string, error) {
	file, err := os.CreateTemp("", "resume_analysis_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewView(result, bands)); err != nil {
		return "", err
	}
	return file.Name(), nil
}
