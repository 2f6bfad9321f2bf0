package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"article-analyzer/internal/metrics"
	"article-analyzer/internal/services/llm"
)

const (
	summaryTemperature = 0.3
	entityTemperature  = 0.1

	callSummary  = "summary"
	callEntities = "entities"
)

// GatewayOptions configures the two model calls.
type GatewayOptions struct {
	SummaryMaxTokens int
	EntityMaxTokens  int
	Timeout          time.Duration
	Parallel         bool
}

// RawResponses are the unparsed model replies. An empty Entities value is
// the provider's "no content" signal.
type RawResponses struct {
	Summary  string
	Entities string
}

// Gateway issues the summary and entity calls and classifies provider failures.
type Gateway struct {
	client  llm.Client
	prompts *PromptBuilder
	opts    GatewayOptions
}

// NewGateway accepts a nil client; Run then fails with an InternalError.
func NewGateway(client llm.Client, prompts *PromptBuilder, opts GatewayOptions) *Gateway {
	return &Gateway{client: client, prompts: prompts, opts: opts}
}

// Run executes both calls. The summary call runs first unless Parallel is set.
func (g *Gateway) Run(ctx context.Context, pair PromptPair) (RawResponses, error) {
	if g.client == nil {
		return RawResponses{}, newError(ClassInternal, "LLM client not initialized. Check API key configuration.", llm.ErrMissingCredential)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	if g.opts.Parallel {
		return g.runParallel(ctx, pair)
	}

	summary, err := g.summarize(ctx, pair.Summary)
	if err != nil {
		return RawResponses{}, err
	}
	entities, err := g.extract(ctx, pair.Entities)
	if err != nil {
		return RawResponses{}, err
	}
	return RawResponses{Summary: summary, Entities: entities}, nil
}

func (g *Gateway) runParallel(ctx context.Context, pair PromptPair) (RawResponses, error) {
	var out RawResponses
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		summary, err := g.summarize(egCtx, pair.Summary)
		out.Summary = summary
		return err
	})
	eg.Go(func() error {
		entities, err := g.extract(egCtx, pair.Entities)
		out.Entities = entities
		return err
	})

	if err := eg.Wait(); err != nil {
		return RawResponses{}, err
	}
	return out, nil
}

func (g *Gateway) summarize(ctx context.Context, prompt string) (string, error) {
	text, err := g.call(ctx, callSummary, llm.Completion{
		System:      g.prompts.SummarySystem(),
		Prompt:      prompt,
		MaxTokens:   g.opts.SummaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(ClassInternal, "LLM returned empty summary response", nil)
	}
	return text, nil
}

func (g *Gateway) extract(ctx context.Context, prompt string) (string, error) {
	text, err := g.call(ctx, callEntities, llm.Completion{
		System:      g.prompts.EntitySystem(),
		Prompt:      prompt,
		MaxTokens:   g.opts.EntityMaxTokens,
		Temperature: entityTemperature,
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		log.Warn().Str("provider", g.client.Name()).Msg("LLM returned empty entity response")
	}
	return text, nil
}

func (g *Gateway) call(ctx context.Context, call string, req llm.Completion) (string, error) {
	start := time.Now()
	text, err := g.client.Complete(ctx, req)
	dur := time.Since(start)

	if err != nil {
		aerr := classifyProviderError(err)
		metrics.ObserveLLM(g.client.Name(), g.client.Model(), call, string(aerr.Class), dur)
		log.Error().
			Err(err).
			Str("provider", g.client.Name()).
			Str("model", g.client.Model()).
			Str("call", call).
			Dur("duration", dur).
			Msg("LLM call failed")
		return "", aerr
	}

	metrics.ObserveLLM(g.client.Name(), g.client.Model(), call, "success", dur)
	log.Debug().
		Str("provider", g.client.Name()).
		Str("call", call).
		Dur("duration", dur).
		Int("chars", len(text)).
		Msg("LLM call completed")
	return text, nil
}

// classifyProviderError maps provider failures onto the pipeline taxonomy.
// Provider messages are surfaced; credentials never appear in them.
func classifyProviderError(err error) *Error {
	var perr *llm.ProviderError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(ClassInternal, "Analysis cancelled: "+err.Error(), err)
	case errors.As(err, &perr):
		switch perr.Kind {
		case llm.KindRateLimited:
			return newError(ClassRateLimited, "Rate limit exceeded. Please try again later.", err)
		case llm.KindRequest:
			return newError(ClassUpstream, perr.Message, err)
		default:
			return newError(ClassInternal, "AI service error: "+perr.Message, err)
		}
	default:
		return newError(ClassInternal, "Failed to analyze article with AI service: "+err.Error(), err)
	}
}
