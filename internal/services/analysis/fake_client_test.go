package analysis

import (
	"context"
	"sync"

	"article-analyzer/internal/config"
	"article-analyzer/internal/services/llm"
)

const sampleArticle = "Trade negotiators from the United States and China met in Geneva this week to discuss tariffs on steel and electronics."

// fakeClient answers summary and entity calls from canned values.
type fakeClient struct {
	mu    sync.Mutex
	calls []llm.Completion

	summary    string
	entities   string
	summaryErr error
	entityErr  error
}

func (f *fakeClient) Name() string  { return "fake" }
func (f *fakeClient) Model() string { return "fake-model" }

func (f *fakeClient) Complete(ctx context.Context, req llm.Completion) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Temperature == summaryTemperature {
		return f.summary, f.summaryErr
	}
	return f.entities, f.entityErr
}

func (f *fakeClient) Calls() []llm.Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Completion, len(f.calls))
	copy(out, f.calls)
	return out
}

func testAnalyzerConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{
		Profile:          config.ProfileExtended,
		AllowedFileTypes: []string{".txt", ".docx"},
		MaxFileSize:      10 * 1024 * 1024,
		MinTextLength:    50,
		MaxTextLength:    50000,
	}
}

func testGatewayOptions() GatewayOptions {
	return GatewayOptions{SummaryMaxTokens: 1500, EntityMaxTokens: 500}
}

func newTestService(client llm.Client) *Service {
	cfg := testAnalyzerConfig()
	prompts := NewPromptBuilder(cfg.Profile)
	return NewService(NewAcquirer(cfg), prompts, NewGateway(client, prompts, testGatewayOptions()))
}
