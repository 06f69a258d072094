package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TextExtractor converts an uploaded document into plain text.
type TextExtractor interface {
	ExtractText(name string, data []byte) (string, error)
}

// Pipeline runs normalize -> extract -> match -> score for one submission,
// with the optional feedback stage alongside.
type Pipeline struct {
	normalizer *Normalizer
	extractor  *Extractor
	matcher    *Matcher
	reviewer   *Reviewer
	documents  TextExtractor
	sequential bool
	logger     *zap.Logger
}

// NewPipeline wires every stage to completer according to cfg.
// documents may be nil when only Analyze is used.
func NewPipeline(completer ai.Completer, documents TextExtractor, cfg Config, log *zap.Logger) (*Pipeline, error) {
	if completer == nil {
		return nil, errors.New("model completer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	log = logger.With(log)

	p := &Pipeline{
		normalizer: NewNormalizer(completer, cfg.Stages.Normalize, log),
		extractor:  NewExtractor(completer, cfg.Stages.Extract, cfg.EmptyTaxonomy, log),
		matcher:    NewMatcher(completer, cfg.Stages.Match, log),
		documents:  documents,
		sequential: cfg.Sequential,
		logger:     log,
	}

	if cfg.Feedback {
		p.reviewer = NewReviewer(completer, cfg.Stages.Feedback, log)
	}

	return p, nil
}

// AnalyzeDocument extracts text from the uploaded document and analyzes it.
// Extraction failures are returned before any model call is made.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, name string, data []byte, jobTitle, jobDescription string) (*Result, error) {
	if p.documents == nil {
		return nil, errors.New("document extractor is not configured")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("%w: job description is empty", ErrEmptySubmission)
	}

	text, err := p.documents.ExtractText(name, data)
	if err != nil {
		return nil, err
	}

	return p.Analyze(ctx, Submission{ResumeText: text, JobTitle: jobTitle, JobDescription: jobDescription})
}

type feedbackOutcome struct {
	text string
	err  error
}

// Analyze runs the pipeline. Any failure of normalize, extract or match aborts
// the run and no Result is returned; a feedback failure only leaves Feedback nil.
func (p *Pipeline) Analyze(ctx context.Context, sub Submission) (*Result, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	id := uuid.New()
	log := logger.WithSubmission(p.logger, id.String())
	start := time.Now()

	log.Info("analysis started",
		zap.String("job_title", sub.JobTitle),
		zap.Int("resume_length", len(sub.ResumeText)),
		zap.Int("job_description_length", len(sub.JobDescription)),
	)

	normalized, taxonomy, err := p.prepare(ctx, sub)
	if err != nil {
		log.Warn("analysis aborted", zap.Error(err))
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feedback := p.startFeedback(runCtx, sub, normalized, log)

	match, err := p.matcher.Match(ctx, normalized, taxonomy)
	if err != nil {
		log.Warn("analysis aborted", zap.Error(err))
		return nil, err
	}

	result := &Result{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		JobTitle:  strings.TrimSpace(sub.JobTitle),
		Resume:    normalized,
		Skills:    taxonomy,
		Match:     match,
		Score:     Score(match),
	}

	if feedback != nil {
		out := <-feedback
		if out.err != nil {
			log.Warn("feedback stage failed, continuing without it", zap.Error(out.err))
			result.FeedbackError = out.err.Error()
		} else {
			text := out.text
			result.Feedback = &text
		}
	}

	if err := ctx.Err(); err != nil {
		log.Info("analysis cancelled, discarding result", zap.Error(err))
		return nil, err
	}

	log.Info("analysis finished",
		zap.Int("score", result.Score),
		zap.Int("skills", len(match.Hard)+len(match.Soft)),
		zap.Int("present", match.PresentCount()),
		zap.Bool("feedback", result.Feedback != nil),
		zap.Duration("took", time.Since(start)),
	)

	return result, nil
}

// prepare runs normalization and extraction. They share no data, so they run
// concurrently unless the pipeline is configured as sequential.
func (p *Pipeline) prepare(ctx context.Context, sub Submission) (string, SkillTaxonomy, error) {
	if p.sequential {
		normalized, err := p.normalizer.Normalize(ctx, sub.ResumeText)
		if err != nil {
			return "", SkillTaxonomy{}, err
		}
		taxonomy, err := p.extractor.Extract(ctx, sub.JobDescription)
		if err != nil {
			return "", SkillTaxonomy{}, err
		}
		return normalized, taxonomy, nil
	}

	var (
		normalized string
		taxonomy   SkillTaxonomy
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		normalized, err = p.normalizer.Normalize(gctx, sub.ResumeText)
		return err
	})
	g.Go(func() error {
		var err error
		taxonomy, err = p.extractor.Extract(gctx, sub.JobDescription)
		return err
	})

	if err := g.Wait(); err != nil {
		return "", SkillTaxonomy{}, err
	}

	return normalized, taxonomy, nil
}

func (p *Pipeline) startFeedback(ctx context.Context, sub Submission, normalized string, log *zap.Logger) <-chan feedbackOutcome {
	if p.reviewer == nil {
		return nil
	}

	out := make(chan feedbackOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("feedback stage panicked", zap.Any("panic", r))
				out <- feedbackOutcome{err: fmt.Errorf("feedback stage panicked: %v", r)}
			}
		}()

		text, err := p.reviewer.Suggest(ctx, sub.JobTitle, sub.JobDescription, normalized)
		out <- feedbackOutcome{text: text, err: err}
	}()

	return out
}

func validateSubmission(sub Submission) error {
	var missing []string
	if strings.TrimSpace(sub.ResumeText) == "" {
		missing = append(missing, "resume text")
	}
	if strings.TrimSpace(sub.JobDescription) == "" {
		missing = append(missing, "job description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrEmptySubmission, strings.Join(missing, " and "))
	}
	return nil
}
