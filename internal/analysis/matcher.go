package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/utils"

	"go.uber.org/zap"
)

const (
	opMatch = "match skills"

	// noSkillsListed stands in for an empty category so the model cannot
	// mistake a placeholder for a skill name.
	noSkillsListed = "(no skills listed; return an empty array)"
)

// Matcher asks the model which taxonomy skills the resume demonstrates.
type Matcher struct {
	completer ai.Completer
	stage     Stage
	logger    *zap.Logger
}

func NewMatcher(completer ai.Completer, stage Stage, log *zap.Logger) *Matcher {
	return &Matcher{
		completer: completer,
		stage:     stage,
		logger:    logger.WithStage(log, "match", stage.Model),
	}
}

// Match returns presence for every taxonomy skill, in taxonomy order and with
// taxonomy names. A response that does not cover the queried skills one to one
// fails with *ai.MalformedResponseError wrapping *SkillMatchCardinalityError.
func (m *Matcher) Match(ctx context.Context, resume string, taxonomy SkillTaxonomy) (SkillMatch, error) {
	if strings.TrimSpace(resume) == "" {
		return SkillMatch{}, fmt.Errorf("%w: normalized resume is empty", ErrEmptySubmission)
	}

	prompt := renderPrompt(matchTemplate, map[string]string{
		"HARD_SKILLS": skillList(taxonomy.Hard),
		"SOFT_SKILLS": skillList(taxonomy.Soft),
		"RESUME":      resume,
	})

	out, err := m.completer.CompleteStructured(ctx, ai.Request{
		Op:              opMatch,
		Model:           m.stage.Model,
		Prompt:          prompt,
		Temperature:     m.stage.Temperature,
		MaxOutputTokens: m.stage.MaxOutputTokens,
		Schema:          matchSchema(),
	})
	if err != nil {
		return SkillMatch{}, err
	}

	var payload matchPayload
	if err := decodeObject(opMatch, out, []string{fieldHardSkills, fieldSoftSkills}, &payload); err != nil {
		return SkillMatch{}, err
	}

	hard, err := alignPresence(CategoryHard, taxonomy.Hard, payload.Hard)
	if err != nil {
		return SkillMatch{}, &ai.MalformedResponseError{Op: opMatch, Raw: out.Raw, Err: err}
	}

	soft, err := alignPresence(CategorySoft, taxonomy.Soft, payload.Soft)
	if err != nil {
		return SkillMatch{}, &ai.MalformedResponseError{Op: opMatch, Raw: out.Raw, Err: err}
	}

	match := SkillMatch{Hard: hard, Soft: soft}

	m.logger.Debug("skills matched",
		zap.Int("skills", len(match.Hard)+len(match.Soft)),
		zap.Int("present", match.PresentCount()),
	)

	return match, nil
}

// alignPresence checks that got and expected are the same multiset of skill
// names (case and spacing insensitive) and reorders got to expected's order.
func alignPresence(category Category, expected []string, got []presencePayload) ([]SkillPresence, error) {
	for i, entry := range got {
		if entry.Present == nil {
			return nil, fmt.Errorf("%s skills[%d]: present flag is missing", category, i)
		}
	}

	pending := make(map[string][]presencePayload, len(got))
	order := make([]string, 0, len(got))
	for _, entry := range got {
		key := skillKey(entry.Skill)
		if _, seen := pending[key]; !seen {
			order = append(order, key)
		}
		pending[key] = append(pending[key], entry)
	}

	aligned := make([]SkillPresence, 0, len(expected))
	var missing []string
	for _, name := range expected {
		key := skillKey(name)
		queue := pending[key]
		if len(queue) == 0 {
			missing = append(missing, name)
			continue
		}
		aligned = append(aligned, SkillPresence{Skill: name, Present: *queue[0].Present})
		pending[key] = queue[1:]
	}

	var unexpected []string
	for _, key := range order {
		for _, entry := range pending[key] {
			unexpected = append(unexpected, entry.Skill)
		}
	}

	if len(missing) > 0 || len(unexpected) > 0 {
		return nil, &SkillMatchCardinalityError{
			Category:   category,
			Expected:   len(expected),
			Got:        len(got),
			Missing:    missing,
			Unexpected: unexpected,
		}
	}

	return aligned, nil
}

func skillKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func skillList(skills []string) string {
	if list := utils.CommaJoin(skills); list != "" {
		return list
	}
	return noSkillsListed
}
