package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-analyzer/internal/config"
	"article-analyzer/internal/services/llm"
)

func newTestGateway(client llm.Client, opts GatewayOptions) *Gateway {
	return NewGateway(client, NewPromptBuilder(config.ProfileExtended), opts)
}

func TestGateway_RunSequential(t *testing.T) {
	client := &fakeClient{summary: "Talks resumed.", entities: `["United States"]`}
	g := newTestGateway(client, testGatewayOptions())
	pair := NewPromptBuilder(config.ProfileExtended).Build(sampleArticle)

	raw, err := g.Run(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, RawResponses{Summary: "Talks resumed.", Entities: `["United States"]`}, raw)

	calls := client.Calls()
	require.Len(t, calls, 2)

	assert.Equal(t, pair.Summary, calls[0].Prompt)
	assert.Equal(t, 1500, calls[0].MaxTokens)
	assert.Equal(t, 0.3, calls[0].Temperature)
	assert.Equal(t, summarySystemPrompt, calls[0].System)

	assert.Equal(t, pair.Entities, calls[1].Prompt)
	assert.Equal(t, 500, calls[1].MaxTokens)
	assert.Equal(t, 0.1, calls[1].Temperature)
	assert.Contains(t, calls[1].System, "Always respond with valid JSON")
}

func TestGateway_RunParallel(t *testing.T) {
	client := &fakeClient{summary: "Talks resumed.", entities: `["China"]`}
	opts := testGatewayOptions()
	opts.Parallel = true
	g := newTestGateway(client, opts)

	raw, err := g.Run(context.Background(), NewPromptBuilder(config.ProfileExtended).Build(sampleArticle))
	require.NoError(t, err)
	assert.Equal(t, "Talks resumed.", raw.Summary)
	assert.Equal(t, `["China"]`, raw.Entities)
	assert.Len(t, client.Calls(), 2)
}

func TestGateway_NilClientFailsFast(t *testing.T) {
	g := newTestGateway(nil, testGatewayOptions())

	_, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	aerr := requireClass(t, err, ClassInternal)
	assert.Contains(t, aerr.Message, "API key")
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
}

func TestGateway_SummaryRateLimitSkipsEntityCall(t *testing.T) {
	client := &fakeClient{
		summaryErr: &llm.ProviderError{Kind: llm.KindRateLimited, Provider: "fake", StatusCode: 429, Message: "slow down"},
		entities:   `["China"]`,
	}
	g := newTestGateway(client, testGatewayOptions())

	_, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	aerr := requireClass(t, err, ClassRateLimited)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", aerr.Message)
	assert.Len(t, client.Calls(), 1)
}

func TestGateway_ParallelRateLimitDiscardsEntities(t *testing.T) {
	client := &fakeClient{
		summaryErr: &llm.ProviderError{Kind: llm.KindRateLimited, Provider: "fake", StatusCode: 429, Message: "slow down"},
		entities:   `["China"]`,
	}
	opts := testGatewayOptions()
	opts.Parallel = true
	g := newTestGateway(client, opts)

	raw, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	requireClass(t, err, ClassRateLimited)
	assert.Equal(t, RawResponses{}, raw)
}

func TestGateway_EmptySummaryIsFatal(t *testing.T) {
	client := &fakeClient{summary: "", entities: `["China"]`}
	g := newTestGateway(client, testGatewayOptions())

	_, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	aerr := requireClass(t, err, ClassInternal)
	assert.Equal(t, "LLM returned empty summary response", aerr.Message)
	assert.Len(t, client.Calls(), 1)
}

func TestGateway_WhitespaceSummaryIsFatal(t *testing.T) {
	client := &fakeClient{summary: "  \n\t ", entities: `["China"]`}
	g := newTestGateway(client, testGatewayOptions())

	_, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	aerr := requireClass(t, err, ClassInternal)
	assert.Equal(t, "LLM returned empty summary response", aerr.Message)
	assert.Len(t, client.Calls(), 1)
}

func TestGateway_SummaryIsTrimmed(t *testing.T) {
	client := &fakeClient{summary: "\n\nTalks resumed.\n", entities: `["China"]`}
	g := newTestGateway(client, testGatewayOptions())

	raw, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	require.NoError(t, err)
	assert.Equal(t, "Talks resumed.", raw.Summary)
}

func TestGateway_EmptyEntitiesTolerated(t *testing.T) {
	client := &fakeClient{summary: "Talks resumed.", entities: ""}
	g := newTestGateway(client, testGatewayOptions())

	raw, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	require.NoError(t, err)
	assert.Equal(t, "", raw.Entities)
}

func TestGateway_EntityErrorIsFatal(t *testing.T) {
	client := &fakeClient{
		summary:   "Talks resumed.",
		entityErr: &llm.ProviderError{Kind: llm.KindService, Provider: "fake", StatusCode: 503, Message: "overloaded"},
	}
	g := newTestGateway(client, testGatewayOptions())

	_, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	aerr := requireClass(t, err, ClassInternal)
	assert.Equal(t, "AI service error: overloaded", aerr.Message)
}

func TestGateway_TimeoutCancelsCall(t *testing.T) {
	opts := testGatewayOptions()
	opts.Timeout = 10 * time.Millisecond
	g := newTestGateway(blockingClient{}, opts)

	_, err := g.Run(context.Background(), PromptPair{Summary: "s", Entities: "e"})
	aerr := requireClass(t, err, ClassInternal)
	assert.Contains(t, aerr.Message, "Analysis cancelled")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateway_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &fakeClient{summary: "Talks resumed."}
	g := newTestGateway(client, testGatewayOptions())

	_, err := g.Run(ctx, PromptPair{Summary: "s", Entities: "e"})
	requireClass(t, err, ClassInternal)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		class   StatusClass
		message string
	}{
		{
			name:    "rate limited",
			err:     &llm.ProviderError{Kind: llm.KindRateLimited, StatusCode: 429, Message: "quota"},
			class:   ClassRateLimited,
			message: "Rate limit exceeded. Please try again later.",
		},
		{
			name:    "request rejected",
			err:     &llm.ProviderError{Kind: llm.KindRequest, StatusCode: 404, Message: "The model `gpt-9` does not exist"},
			class:   ClassUpstream,
			message: "The model `gpt-9` does not exist",
		},
		{
			name:    "service",
			err:     &llm.ProviderError{Kind: llm.KindService, StatusCode: 500, Message: "boom"},
			class:   ClassInternal,
			message: "AI service error: boom",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			class:   ClassInternal,
			message: "Analysis cancelled: context deadline exceeded",
		},
		{
			name:    "unclassified",
			err:     errors.New("socket closed"),
			class:   ClassInternal,
			message: "Failed to analyze article with AI service: socket closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyProviderError(tt.err)
			assert.Equal(t, tt.class, got.Class)
			assert.Equal(t, tt.message, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

// blockingClient waits for cancellation.
type blockingClient struct{}

func (blockingClient) Name() string  { return "blocking" }
func (blockingClient) Model() string { return "blocking-model" }

func (blockingClient) Complete(ctx context.Context, _ llm.Completion) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
