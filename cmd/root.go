package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/spigell/resume-analyzer/internal/ai/gemini"
	"github.com/spigell/resume-analyzer/internal/analysis"
	"github.com/spigell/resume-analyzer/internal/document"
	"github.com/spigell/resume-analyzer/internal/report"
	"github.com/spigell/resume-analyzer/internal/secrets"
	"github.com/spigell/resume-analyzer/internal/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app = "resume-analyzer"

	envGeminiAPIKey     = "GEMINI_API_KEY"
	envGeminiAPIKeyFile = "GEMINI_API_KEY_FILE"
	envEnvironment      = "RESUME_ANALYZER_ENV"
)

type Config struct {
	Environment  string                     `mapstructure:"environment"`
	Environments map[string]analysis.Stages `mapstructure:"environments"`
	AI           *AIConfig                  `mapstructure:"ai"`
	Analysis     *AnalysisConfig            `mapstructure:"analysis"`
	Report       report.Bands               `mapstructure:"report"`
	Server       server.Options             `mapstructure:"server"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey        string        `mapstructure:"api-key" json:"-"`
	APIKeyFile    string        `mapstructure:"api-key-file"`
	MaxRetries    int           `mapstructure:"max-retries"`
	MaxRetryDelay time.Duration `mapstructure:"max-retry-delay"`
	MaxLogLength  int           `mapstructure:"max-log-length"`
}

type AnalysisConfig struct {
	EmptyTaxonomy string        `mapstructure:"empty-taxonomy"`
	Feedback      bool          `mapstructure:"feedback"`
	Concurrent    bool          `mapstructure:"concurrent"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-analyzer compares a resume with a job description using Gemini models",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.gemini.api-key":      envGeminiAPIKey,
		"ai.gemini.api-key-file": envGeminiAPIKeyFile,
		"environment":            envEnvironment,
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-analyzer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("environment", "e", "", "model environment: "+strings.Join(analysis.Environments(), " or "))

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("environment", rootCmd.PersistentFlags().Lookup("environment"))
}

func setDefaults() {
	viper.SetDefault("environment", analysis.EnvironmentPrototype)

	for _, name := range analysis.Environments() {
		stages, _ := analysis.EnvironmentStages(name)
		for stage, settings := range map[string]analysis.Stage{
			"normalize": stages.Normalize,
			"extract":   stages.Extract,
			"match":     stages.Match,
			"feedback":  stages.Feedback,
		} {
			prefix := fmt.Sprintf("environments.%s.%s.", name, stage)
			viper.SetDefault(prefix+"model", settings.Model)
			viper.SetDefault(prefix+"temperature", settings.Temperature)
			viper.SetDefault(prefix+"max-output-tokens", settings.MaxOutputTokens)
		}
	}

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-retry-delay", "30s")
	viper.SetDefault("ai.gemini.max-log-length", 200)

	viper.SetDefault("analysis.empty-taxonomy", string(analysis.EmptyTaxonomyAllow))
	viper.SetDefault("analysis.feedback", true)
	viper.SetDefault("analysis.concurrent", true)
	viper.SetDefault("analysis.timeout", "5m")

	bands := report.DefaultBands()
	viper.SetDefault("report.low-band", bands.Low)
	viper.SetDefault("report.high-band", bands.High)

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.max-upload-size", 10<<20)
	viper.SetDefault("server.request-timeout", "3m")
}

func initConfig() {
	// .env is optional and never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	// version does not need any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Only an explicitly requested config file is mandatory.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		return nil, errors.New("config is empty")
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Analysis == nil {
		config.Analysis = &AnalysisConfig{Concurrent: true}
	}

	if err := config.Report.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// stages returns the stage mapping of the selected environment.
func (c *Config) stages() (analysis.Stages, error) {
	name := strings.ToLower(strings.TrimSpace(c.Environment))
	if stages, ok := c.Environments[name]; ok {
		return stages, nil
	}

	known := make([]string, 0, len(c.Environments))
	for env := range c.Environments {
		known = append(known, env)
	}
	sort.Strings(known)

	return analysis.Stages{}, fmt.Errorf("unknown environment %q (known: %s)", c.Environment, strings.Join(known, ", "))
}

func (c *Config) analysisConfig() (analysis.Config, error) {
	stages, err := c.stages()
	if err != nil {
		return analysis.Config{}, err
	}

	cfg := analysis.Config{
		Stages:        stages,
		EmptyTaxonomy: analysis.EmptyTaxonomyPolicy(strings.ToLower(strings.TrimSpace(c.Analysis.EmptyTaxonomy))),
		Feedback:      c.Analysis.Feedback,
		Sequential:    !c.Analysis.Concurrent,
		MaxLogLength:  c.AI.Gemini.MaxLogLength,
	}

	return cfg, cfg.Validate()
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   envGeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s, %s or ai.gemini.api-key-file)", err, envGeminiAPIKey, envGeminiAPIKeyFile)
	}

	return gemini.NewGenerator(ctx, apiKey, gemini.Options{
		MaxRetries:    cfg.Gemini.MaxRetries,
		MaxRetryDelay: cfg.Gemini.MaxRetryDelay,
		MaxLogLength:  cfg.Gemini.MaxLogLength,
	}, logger)
}

// newPipeline wires the generator, the document extractor and the selected
// environment into an analysis pipeline.
func newPipeline(ctx context.Context, config *Config, logger *zap.Logger) (*analysis.Pipeline, *document.Extractor, error) {
	cfg, err := config.analysisConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("analysis config: %w", err)
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building gemini generator: %w", err)
	}

	documents := document.NewExtractor(logger)

	pipeline, err := analysis.NewPipeline(generator, documents, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("pipeline ready",
		zap.String("environment", config.Environment),
		zap.String("normalize_model", cfg.Stages.Normalize.Model),
		zap.String("extract_model", cfg.Stages.Extract.Model),
		zap.String("match_model", cfg.Stages.Match.Model),
		zap.Bool("feedback", cfg.Feedback),
	)

	return pipeline, documents, nil
}
