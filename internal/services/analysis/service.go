package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"article-analyzer/internal/metrics"
)

// Service runs the analysis pipeline: acquire, prompt, call, parse, assemble.
type Service struct {
	acquirer *Acquirer
	prompts  *PromptBuilder
	gateway  *Gateway
}

// NewService creates a new Service
func NewService(acquirer *Acquirer, prompts *PromptBuilder, gateway *Gateway) *Service {
	return &Service{
		acquirer: acquirer,
		prompts:  prompts,
		gateway:  gateway,
	}
}

// MaxFileSize exposes the upload limit for transport-level guards.
func (s *Service) MaxFileSize() int64 { return s.acquirer.MaxFileSize() }

// TooLarge is the payload error used when the transport rejects an oversized body.
func (s *Service) TooLarge() *Error { return s.acquirer.TooLarge() }

// Analyze validates in and returns the summary and entity list. Every
// returned error is an *Error.
func (s *Service) Analyze(ctx context.Context, in Input) (*Result, error) {
	return s.AnalyzeWithID(ctx, uuid.NewString(), in)
}

// AnalyzeWithID is Analyze with a caller-chosen correlation id for logs.
func (s *Service) AnalyzeWithID(ctx context.Context, id string, in Input) (*Result, error) {
	start := time.Now()
	logger := log.With().Str("analysis_id", id).Logger()

	result, err := s.analyze(ctx, in)
	if err != nil {
		aerr := AsError(err)
		metrics.IncAnalysis(string(aerr.Class))
		logger.Warn().
			Err(err).
			Str("class", string(aerr.Class)).
			Dur("duration", time.Since(start)).
			Msg("Analysis failed")
		return nil, aerr
	}

	metrics.IncAnalysis("success")
	logger.Info().
		Int("entities", len(result.Nationalities)).
		Dur("duration", time.Since(start)).
		Msg("Analysis completed")
	return result, nil
}

func (s *Service) analyze(ctx context.Context, in Input) (*Result, error) {
	text, err := s.acquirer.Acquire(in)
	if err != nil {
		return nil, err
	}

	raw, err := s.gateway.Run(ctx, s.prompts.Build(text))
	if err != nil {
		return nil, err
	}

	return &Result{
		Summary:       raw.Summary,
		Nationalities: ParseEntities(raw.Entities),
	}, nil
}

// AsError returns err as an *Error, wrapping unclassified failures as internal errors.
func AsError(err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}
	wrapped := newError(ClassInternal, "Internal server error", err)
	wrapped.Details = err.Error()
	return wrapped
}
