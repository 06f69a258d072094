package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/analysis"
	"github.com/spigell/resume-analyzer/internal/document"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/report"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const (
	defaultListen         = ":8080"
	defaultMaxUploadSize  = 10 << 20
	defaultRequestTimeout = 3 * time.Minute
	shutdownTimeout       = 10 * time.Second

	formResume         = "resume"
	formJobTitle       = "job_title"
	formJobDescription = "job_description"
)

// DocumentAnalyzer runs the pipeline for an uploaded resume.
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, name string, data []byte, jobTitle, jobDescription string) (*analysis.Result, error)
}

// Options configures the HTTP server. Zero values fall back to defaults.
type Options struct {
	Listen         string        `mapstructure:"listen"`
	MaxUploadSize  int           `mapstructure:"max-upload-size"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	Bands          report.Bands  `mapstructure:"-"`
	Version        string        `mapstructure:"-"`
}

// Server exposes the analysis pipeline over HTTP.
type Server struct {
	app      *fiber.App
	analyzer DocumentAnalyzer
	opts     Options
	logger   *zap.Logger
}

// errorResponse mirrors the error body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

func New(analyzer DocumentAnalyzer, opts Options, log *zap.Logger) *Server {
	if opts.Listen == "" {
		opts.Listen = defaultListen
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = defaultMaxUploadSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Bands == (report.Bands{}) {
		opts.Bands = report.DefaultBands()
	}

	s := &Server{
		analyzer: analyzer,
		opts:     opts,
		logger:   logger.WithComponent(log, "http"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "resume-analyzer",
		BodyLimit:             opts.MaxUploadSize + 1<<20,
		ReadTimeout:           opts.RequestTimeout,
		WriteTimeout:          opts.RequestTimeout,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})

	app.Use(accessLog(s.logger))
	app.Use(recover.New())

	api := app.Group("/api/v1")
	api.Get("/health", s.health)
	api.Post("/analyze", s.analyze)

	s.app = app
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("listen", s.opts.Listen))
		errCh <- s.app.Listen(s.opts.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": s.opts.Version,
		"formats": document.Supported(),
		"time":    time.Now().UTC(),
	})
}

func (s *Server) analyze(c *fiber.Ctx) error {
	header, err := c.FormFile(formResume)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("multipart field %q with the resume file is required", formResume))
	}

	if !document.IsSupported(header.Filename) {
		return &document.UnsupportedFormatError{Name: header.Filename, Ext: strings.ToLower(filepath.Ext(header.Filename))}
	}

	if header.Size > int64(s.opts.MaxUploadSize) {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("resume file too large, max size is %d bytes", s.opts.MaxUploadSize))
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open uploaded resume: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read uploaded resume: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.RequestTimeout)
	defer cancel()

	result, err := s.analyzer.AnalyzeDocument(ctx, header.Filename, data, c.FormValue(formJobTitle), c.FormValue(formJobDescription))
	if err != nil {
		return err
	}

	return c.JSON(report.NewView(result, s.opts.Bands))
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	resp := errorResponse{
		Code:      statusFor(err),
		Error:     report.DescribeError(err),
		RequestID: requestID(c),
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		resp.Error = fiberErr.Message
	}

	var malformed *ai.MalformedResponseError
	if errors.As(err, &malformed) {
		resp.Raw = malformed.Raw
	}

	log := s.logger.With(zap.String("request_id", resp.RequestID), zap.Int("status", resp.Code), zap.Error(err))
	if resp.Code >= fiber.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Info("request rejected")
	}

	return c.Status(resp.Code).JSON(resp)
}

func statusFor(err error) int {
	var (
		fiberErr    *fiber.Error
		unsupported *document.UnsupportedFormatError
		extraction  *document.ExtractionError
		malformed   *ai.MalformedResponseError
		service     *ai.ServiceError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &unsupported):
		return fiber.StatusUnsupportedMediaType
	case errors.As(err, &extraction), errors.Is(err, analysis.ErrEmptyTaxonomy):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrEmptySubmission):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &malformed):
		return fiber.StatusBadGateway
	case errors.As(err, &service):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

