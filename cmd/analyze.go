package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spigell/resume-analyzer/internal/analysis"
	"github.com/spigell/resume-analyzer/internal/document"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/report"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowGauge       = "Show match score"
	PromptShowSkills      = "Show skill tables"
	PromptShowSuggestions = "Show suggestions"
	PromptShowResume      = "Show normalized resume"
	PromptDumpToFile      = "Dump result to file"
	PromptNewSubmission   = "New submission"
	PromptExit            = "Exit"

	outputText = "text"
	outputJSON = "json"

	progressInterval = 2 * time.Second
)

var errExit = errors.New("exit requested")

var reviewPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{
		PromptShowGauge,
		PromptShowSkills,
		PromptShowSuggestions,
		PromptShowResume,
		PromptDumpToFile,
		PromptNewSubmission,
		PromptExit,
	},
	Size: 7,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a resume against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("resume", "r", "", "path to the resume ("+strings.Join(document.Supported(), ", ")+")")
	analyzeCmd.Flags().StringP("job-title", "t", "", "job title used for suggestions")
	analyzeCmd.Flags().StringP("job-description", "D", "", "job description text")
	analyzeCmd.Flags().String("job-description-file", "", "file with the job description")
	analyzeCmd.Flags().BoolP("non-interactive", "n", false, "print the report once and exit")
	analyzeCmd.Flags().StringP("output", "o", outputText, "report format for non-interactive mode: text or json")
	analyzeCmd.Flags().Bool("no-color", false, "disable colored output")
	analyzeCmd.Flags().Bool("no-feedback", false, "skip the suggestions stage")
}

// form holds the inputs of one submission, as typed or loaded from flags.
type form struct {
	ResumePath     string
	JobTitle       string
	JobDescription string
}

// analyze runs the form -> analysis -> review loop.
func analyze(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if noFeedback, _ := cmd.Flags().GetBool("no-feedback"); noFeedback {
		config.Analysis.Feedback = false
	}

	logger.Info("starting the resume-analyzer", zap.String("version", version), zap.String("environment", config.Environment))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	flags := cmd.Flags()
	nonInteractive, _ := flags.GetBool("non-interactive")
	output, _ := flags.GetString("output")
	noColor, _ := flags.GetBool("no-color")

	output = strings.ToLower(strings.TrimSpace(output))
	if output != outputText && output != outputJSON {
		logger.Fatal("unsupported output format", zap.String("output", output))
	}

	input, err := formFromFlags(cmd)
	if err != nil {
		logger.Fatal("reading flags", zap.Error(err))
	}

	pipeline, documents, err := newPipeline(cmd.Context(), config, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	runner := &analysisRunner{
		session:   analysis.NewSession(pipeline),
		documents: documents,
		timeout:   config.Analysis.Timeout,
		renderer:  report.NewRenderer(config.Report, !noColor && !nonInteractive),
		bands:     config.Report,
		logger:    logger,
	}

	if nonInteractive {
		if err := runner.once(cmd.Context(), input, output, os.Stdout); err != nil {
			logger.Fatal("analysis failed",
				zap.Error(err),
				zap.String("hint", report.DescribeError(err)),
				zap.String("raw", report.RawResponse(err)),
			)
		}
		return
	}

	if err := runner.interactive(cmd.Context(), input); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func formFromFlags(cmd *cobra.Command) (form, error) {
	flags := cmd.Flags()

	resume, _ := flags.GetString("resume")
	title, _ := flags.GetString("job-title")
	description, _ := flags.GetString("job-description")
	descriptionFile, _ := flags.GetString("job-description-file")

	if descriptionFile != "" {
		if description != "" {
			return form{}, errors.New("--job-description and --job-description-file are mutually exclusive")
		}
		data, err := os.ReadFile(descriptionFile)
		if err != nil {
			return form{}, fmt.Errorf("reading job description: %w", err)
		}
		description = string(data)
	}

	return form{ResumePath: resume, JobTitle: title, JobDescription: description}, nil
}

type analysisRunner struct {
	session   *analysis.Session
	documents *document.Extractor
	timeout   time.Duration
	renderer  *report.Renderer
	bands     report.Bands
	logger    *zap.Logger
}

func (r *analysisRunner) once(ctx context.Context, input form, output string, w io.Writer) error {
	if input.ResumePath == "" || strings.TrimSpace(input.JobDescription) == "" {
		return fmt.Errorf("%w: --resume and --job-description (or --job-description-file) are required in non-interactive mode", analysis.ErrEmptySubmission)
	}

	result, err := r.run(ctx, input)
	if err != nil {
		return err
	}

	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.NewView(result, r.bands))
	}

	return r.renderer.Render(w, result)
}

func (r *analysisRunner) interactive(ctx context.Context, input form) error {
	for {
		var err error
		input, err = askForm(input)
		if err != nil {
			return err
		}

		if _, err := r.run(ctx, input); err != nil {
			fmt.Fprintln(os.Stderr, report.DescribeError(err))
			r.logger.Warn("analysis failed", zap.Error(err), zap.String("raw", report.RawResponse(err)))

			// The previous result, if any, is still available for review.
			if r.session.Current() == nil {
				continue
			}
		}

		if err := r.review(); err != nil {
			if errors.Is(err, errNewSubmission) {
				continue
			}
			return err
		}
	}
}

var errNewSubmission = errors.New("new submission requested")

func (r *analysisRunner) review() error {
	for {
		result := r.session.Current()
		if result == nil {
			return errNewSubmission
		}

		_, action, err := reviewPrompt.Run()
		if err != nil {
			return err
		}

		if err := r.handleAction(action, result); err != nil {
			return err
		}
	}
}

func (r *analysisRunner) handleAction(action string, result *analysis.Result) error {
	out := os.Stdout

	switch action {
	case PromptShowGauge:
		return r.renderer.Gauge(out, result)
	case PromptShowSkills:
		return r.renderer.SkillTables(out, result)
	case PromptShowSuggestions:
		return r.renderer.Suggestions(out, result)
	case PromptShowResume:
		return r.renderer.Resume(out, result)
	case PromptDumpToFile:
		filename, err := report.Dump(result, r.bands)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		r.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptNewSubmission:
		return errNewSubmission
	case PromptExit:
		r.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// run extracts the resume text and analyzes it through the session, printing
// progress until the outcome arrives. Ctrl-C abandons the run.
func (r *analysisRunner) run(ctx context.Context, input form) (*analysis.Result, error) {
	text, err := r.documents.ExtractFile(input.ResumePath)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	outcome := r.session.Submit(ctx, analysis.Submission{
		ResumeText:     text,
		JobTitle:       input.JobTitle,
		JobDescription: input.JobDescription,
	})

	start := time.Now()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	fmt.Fprintln(os.Stderr, "Analyzing resume, press Ctrl-C to abandon...")

	for {
		select {
		case got := <-outcome:
			fmt.Fprintf(os.Stderr, "Finished in %s\n", time.Since(start).Round(time.Second))
			return got.Result, got.Err
		case <-ticker.C:
			fmt.Fprintf(os.Stderr, "  still working (%s)\n", time.Since(start).Round(time.Second))
		case <-ctx.Done():
			r.session.Abandon()
			got := <-outcome
			if got.Err == nil {
				got.Err = ctx.Err()
			}
			r.logger.Info("submission abandoned", zap.Error(ctx.Err()))
			return nil, got.Err
		}
	}
}

func askForm(prefill form) (form, error) {
	title, err := ask("Job title", prefill.JobTitle, nil)
	if err != nil {
		return form{}, err
	}

	description, err := ask("Job description (text or path to a file)", prefill.JobDescription, notBlank)
	if err != nil {
		return form{}, err
	}
	if data, err := os.ReadFile(strings.TrimSpace(description)); err == nil {
		description = string(data)
	}

	resume, err := ask("Resume file", prefill.ResumePath, validResumePath)
	if err != nil {
		return form{}, err
	}

	return form{ResumePath: strings.TrimSpace(resume), JobTitle: title, JobDescription: description}, nil
}

func ask(label, defaultValue string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
		Validate:  validate,
	}
	return prompt.Run()
}

func notBlank(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func validResumePath(input string) error {
	path := strings.TrimSpace(input)
	if !document.IsSupported(path) {
		return fmt.Errorf("supported formats: %s", strings.Join(document.Supported(), ", "))
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}
