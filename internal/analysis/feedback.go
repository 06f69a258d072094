package analysis

import (
	"context"
	"strings"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"

	"go.uber.org/zap"
)

const (
	opFeedback      = "general feedback"
	defaultJobTitle = "the advertised role"
)

// Reviewer produces free-text improvement suggestions for a resume.
type Reviewer struct {
	completer ai.Completer
	stage     Stage
	logger    *zap.Logger
}

func NewReviewer(completer ai.Completer, stage Stage, log *zap.Logger) *Reviewer {
	return &Reviewer{
		completer: completer,
		stage:     stage,
		logger:    logger.WithStage(log, "feedback", stage.Model),
	}
}

// Suggest asks for three concrete improvements aligning the resume with the job.
func (r *Reviewer) Suggest(ctx context.Context, jobTitle, jobDescription, resume string) (string, error) {
	if strings.TrimSpace(jobTitle) == "" {
		jobTitle = defaultJobTitle
	}

	prompt := renderPrompt(feedbackTemplate, map[string]string{
		"JOB_TITLE":       jobTitle,
		"JOB_DESCRIPTION": jobDescription,
		"RESUME":          resume,
	})

	text, err := r.completer.Complete(ctx, ai.Request{
		Op:              opFeedback,
		Model:           r.stage.Model,
		Prompt:          prompt,
		Temperature:     r.stage.Temperature,
		MaxOutputTokens: r.stage.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	r.logger.Debug("feedback generated", zap.Int("length", len(text)))
	return text, nil
}
