package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"

	"go.uber.org/zap"
)

const opExtract = "extract skills"

// Extractor turns a job description into a SkillTaxonomy.
type Extractor struct {
	completer ai.Completer
	stage     Stage
	policy    EmptyTaxonomyPolicy
	logger    *zap.Logger
}

func NewExtractor(completer ai.Completer, stage Stage, policy EmptyTaxonomyPolicy, log *zap.Logger) *Extractor {
	if policy == "" {
		policy = EmptyTaxonomyAllow
	}

	return &Extractor{
		completer: completer,
		stage:     stage,
		policy:    policy,
		logger:    logger.WithStage(log, "extract", stage.Model),
	}
}

// Extract issues one schema-constrained request and validates the payload.
func (e *Extractor) Extract(ctx context.Context, jobDescription string) (SkillTaxonomy, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return SkillTaxonomy{}, fmt.Errorf("%w: job description is empty", ErrEmptySubmission)
	}

	out, err := e.completer.CompleteStructured(ctx, ai.Request{
		Op:              opExtract,
		Model:           e.stage.Model,
		Prompt:          renderPrompt(extractTemplate, map[string]string{"JOB_DESCRIPTION": jobDescription}),
		Temperature:     e.stage.Temperature,
		MaxOutputTokens: e.stage.MaxOutputTokens,
		Schema:          taxonomySchema(),
	})
	if err != nil {
		return SkillTaxonomy{}, err
	}

	var payload taxonomyPayload
	if err := decodeObject(opExtract, out, []string{fieldHardSkills, fieldSoftSkills}, &payload); err != nil {
		return SkillTaxonomy{}, err
	}

	hard, err := cleanSkillNames(fieldHardSkills, payload.Hard)
	if err != nil {
		return SkillTaxonomy{}, &ai.MalformedResponseError{Op: opExtract, Raw: out.Raw, Err: err}
	}

	soft, err := cleanSkillNames(fieldSoftSkills, payload.Soft)
	if err != nil {
		return SkillTaxonomy{}, &ai.MalformedResponseError{Op: opExtract, Raw: out.Raw, Err: err}
	}

	taxonomy := SkillTaxonomy{Hard: hard, Soft: soft}

	e.logger.Debug("skills extracted",
		zap.Int("hard_skills", len(taxonomy.Hard)),
		zap.Int("soft_skills", len(taxonomy.Soft)),
	)

	if taxonomy.Len() == 0 {
		if e.policy == EmptyTaxonomyReject {
			return SkillTaxonomy{}, ErrEmptyTaxonomy
		}
		e.logger.Info("job description yielded no skills")
	}

	return taxonomy, nil
}

func cleanSkillNames(field string, names []string) ([]string, error) {
	cleaned := make([]string, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%s[%d]: skill name is empty", field, i)
		}
		cleaned = append(cleaned, name)
	}
	return cleaned, nil
}
