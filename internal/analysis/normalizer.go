package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"

	"go.uber.org/zap"
)

const opNormalize = "normalize resume"

// Normalizer re-flows raw resume text into a fixed markdown layout.
type Normalizer struct {
	completer ai.Completer
	stage     Stage
	logger    *zap.Logger
}

func NewNormalizer(completer ai.Completer, stage Stage, log *zap.Logger) *Normalizer {
	return &Normalizer{
		completer: completer,
		stage:     stage,
		logger:    logger.WithStage(log, "normalize", stage.Model),
	}
}

// Normalize returns the completion text as the model client hands it back:
// leading and trailing whitespace is trimmed, nothing else is rewritten.
// Markdown correctness is left to the prompt; a drop in structural markers is
// only logged.
func (n *Normalizer) Normalize(ctx context.Context, resumeText string) (string, error) {
	if strings.TrimSpace(resumeText) == "" {
		return "", fmt.Errorf("%w: resume text is empty", ErrEmptySubmission)
	}

	prompt := renderPrompt(normalizeTemplate, map[string]string{"RESUME": resumeText})

	normalized, err := n.completer.Complete(ctx, ai.Request{
		Op:              opNormalize,
		Model:           n.stage.Model,
		Prompt:          prompt,
		Temperature:     n.stage.Temperature,
		MaxOutputTokens: n.stage.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	source, result := OutlineOf(resumeText), OutlineOf(normalized)
	if result.Bullets < source.Bullets || result.Headings < source.Headings {
		n.logger.Warn("normalized resume lost structural markers",
			zap.Int("source_headings", source.Headings),
			zap.Int("source_bullets", source.Bullets),
			zap.Int("normalized_headings", result.Headings),
			zap.Int("normalized_bullets", result.Bullets),
		)
	}

	n.logger.Debug("resume normalized",
		zap.Int("headings", result.Headings),
		zap.Int("bullets", result.Bullets),
	)

	return normalized, nil
}
