package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-analyzer/internal/config"
	"article-analyzer/internal/services/analysis"
	"article-analyzer/internal/services/llm"
)

const tradeArticle = "A 60-character-or-longer neutral article about trade talks between the United States and China."

type stubClient struct {
	mu         sync.Mutex
	calls      int
	summary    string
	entities   string
	summaryErr error
}

func (s *stubClient) Name() string  { return "stub" }
func (s *stubClient) Model() string { return "stub-model" }

func (s *stubClient) Complete(_ context.Context, req llm.Completion) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if req.Temperature > 0.2 {
		return s.summary, s.summaryErr
	}
	return s.entities, nil
}

func (s *stubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider:        config.ProviderOpenAI,
			Model:           "gpt-3.5-turbo",
			MaxTokens:       1500,
			EntityMaxTokens: 500,
		},
		Analyzer: config.AnalyzerConfig{
			Profile:          config.ProfileExtended,
			AllowedFileTypes: []string{".txt", ".docx"},
			MaxFileSize:      1024,
			MinTextLength:    50,
			MaxTextLength:    50000,
		},
	}
}

func newTestServer(t *testing.T, client llm.Client) *httptest.Server {
	t.Helper()
	cfg := testConfig()

	prompts := analysis.NewPromptBuilder(cfg.Analyzer.Profile)
	gateway := analysis.NewGateway(client, prompts, analysis.GatewayOptions{
		SummaryMaxTokens: cfg.LLM.MaxTokens,
		EntityMaxTokens:  cfg.LLM.EntityMaxTokens,
	})
	svc := analysis.NewService(analysis.NewAcquirer(cfg.Analyzer), prompts, gateway)

	router := NewRouter(0, nil)
	router.RegisterHealthRoutes(NewStatusHandler(cfg, client != nil))
	router.RegisterAnalysisRoutes(NewAnalyzeHandler(svc))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postForm(t *testing.T, url string, fields map[string]string, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/analyze", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestAnalyze_TextSuccess(t *testing.T) {
	client := &stubClient{
		summary:  "Officials from both countries resumed trade talks.",
		entities: `["United States", "China", "American", "Chinese"]`,
	}
	server := newTestServer(t, client)

	resp := postForm(t, server.URL, map[string]string{"text": tradeArticle}, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Analysis-ID"))

	body := decodeBody(t, resp)
	assert.Equal(t, "Officials from both countries resumed trade talks.", body["summary"])
	assert.ElementsMatch(t, []interface{}{"United States", "China", "American", "Chinese"}, body["nationalities"])
	assert.Equal(t, 2, client.Calls())
}

func TestAnalyze_FileSuccess(t *testing.T) {
	client := &stubClient{summary: "Summary.", entities: "```json\n[\"China\"]\n```"}
	server := newTestServer(t, client)

	resp := postForm(t, server.URL, map[string]string{"text": ""}, "article.txt", []byte(tradeArticle))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, []interface{}{"China"}, body["nationalities"])
}

func TestAnalyze_JSONBody(t *testing.T) {
	client := &stubClient{summary: "Summary.", entities: "not json at all"}
	server := newTestServer(t, client)

	payload, _ := json.Marshal(map[string]string{"text": tradeArticle})
	resp, err := http.Post(server.URL+"/analyze", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Summary.", body["summary"])
	assert.Equal(t, []interface{}{}, body["nationalities"])
}

func TestAnalyze_NoInput(t *testing.T) {
	client := &stubClient{summary: "Summary."}
	server := newTestServer(t, client)

	resp := postForm(t, server.URL, nil, "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "No file or text provided", body["error"])
	assert.Equal(t, "HTTP 400", body["details"])
	assert.Zero(t, client.Calls())
}

func TestAnalyze_TextTooShort(t *testing.T) {
	client := &stubClient{summary: "Summary."}
	server := newTestServer(t, client)

	resp := postForm(t, server.URL, map[string]string{"text": "Too short."}, "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "Minimum length is 50")
	assert.Equal(t, "HTTP 400", body["details"])
}

func TestAnalyze_UnsupportedFileType(t *testing.T) {
	server := newTestServer(t, &stubClient{summary: "Summary."})

	resp := postForm(t, server.URL, nil, "article.pdf", []byte(tradeArticle))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["error"], "Unsupported file type")
}

func TestAnalyze_FileTooLarge(t *testing.T) {
	server := newTestServer(t, &stubClient{summary: "Summary."})

	resp := postForm(t, server.URL, nil, "article.txt", bytes.Repeat([]byte("a"), 2048))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "File too large. Maximum size is 1024 bytes", body["error"])
	assert.Equal(t, "HTTP 413", body["details"])
}

func TestAnalyze_BodyOverTransportLimit(t *testing.T) {
	server := newTestServer(t, &stubClient{summary: "Summary."})

	resp := postForm(t, server.URL, nil, "article.txt", bytes.Repeat([]byte("a"), (1<<20)+8192))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAnalyze_ProviderRateLimited(t *testing.T) {
	client := &stubClient{
		summaryErr: &llm.ProviderError{Kind: llm.KindRateLimited, Provider: "stub", StatusCode: 429, Message: "Rate limit reached"},
		entities:   `["China"]`,
	}
	server := newTestServer(t, client)

	resp := postForm(t, server.URL, map[string]string{"text": tradeArticle}, "", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, strings.ToLower(body["error"].(string)), "rate limit")
	assert.Equal(t, "HTTP 429", body["details"])
	assert.Equal(t, 1, client.Calls(), "entity call must not be issued")
}

func TestAnalyze_MissingCredential(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postForm(t, server.URL, map[string]string{"text": tradeArticle}, "", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "HTTP 500", decodeBody(t, resp)["details"])
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["openai_configured"])
	assert.Equal(t, "gpt-3.5-turbo", body["model"])
	assert.Equal(t, float64(1500), body["max_tokens"])
	assert.Equal(t, "extended", body["profile"])
}

func TestRoot(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := decodeBody(t, resp)
	assert.Equal(t, "Article Analyzer API is running", body["message"])
	assert.Equal(t, "ok", body["status"])
}
