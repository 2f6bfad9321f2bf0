package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"article-analyzer/internal/config"
	"article-analyzer/internal/middleware"
	"article-analyzer/internal/services/analysis"
)

// formOverhead is the body allowance on top of the file limit for multipart framing and the text field.
const formOverhead = 1 << 20

// AnalyzeHandler handles article analysis requests
type AnalyzeHandler struct {
	service *analysis.Service
}

// NewAnalyzeHandler creates a new AnalyzeHandler
func NewAnalyzeHandler(service *analysis.Service) *AnalyzeHandler {
	return &AnalyzeHandler{service: service}
}

// RegisterRoutes registers the analysis routes
func (h *AnalyzeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.Analyze)
}

// Analyze accepts a multipart form with a "file" or "text" field, or a JSON
// body {"text": "..."}.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set("X-Analysis-ID", id)

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxFileSize()+formOverhead)

	in, err := h.readInput(r)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}

	result, err := h.service.AnalyzeWithID(r.Context(), id, in)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *AnalyzeHandler) readInput(r *http.Request) (analysis.Input, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var req analysis.AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if isTooLarge(err) {
				return analysis.Input{}, h.service.TooLarge()
			}
			if errors.Is(err, io.EOF) {
				return analysis.Input{}, nil
			}
			return analysis.Input{}, analysis.BadRequest("Invalid JSON body")
		}
		return analysis.Input{Text: req.Text}, nil

	case "multipart/form-data":
		return h.readMultipart(r)

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			if isTooLarge(err) {
				return analysis.Input{}, h.service.TooLarge()
			}
			return analysis.Input{}, analysis.BadRequest("Invalid form data")
		}
		var in analysis.Input
		if values, ok := r.PostForm["text"]; ok && len(values) > 0 {
			in.Text = &values[0]
		}
		return in, nil

	default:
		return analysis.Input{}, nil
	}
}

func (h *AnalyzeHandler) readMultipart(r *http.Request) (analysis.Input, error) {
	maxFile := h.service.MaxFileSize()

	if err := r.ParseMultipartForm(maxFile + formOverhead); err != nil {
		if isTooLarge(err) {
			return analysis.Input{}, h.service.TooLarge()
		}
		return analysis.Input{}, analysis.BadRequest("Invalid form data")
	}

	var in analysis.Input
	if values, ok := r.MultipartForm.Value["text"]; ok && len(values) > 0 {
		in.Text = &values[0]
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 || (files[0].Filename == "" && files[0].Size == 0) {
		return in, nil
	}
	fh := files[0]
	if fh.Size > maxFile {
		return analysis.Input{}, h.service.TooLarge()
	}

	f, err := fh.Open()
	if err != nil {
		return analysis.Input{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFile+1))
	if err != nil {
		return analysis.Input{}, err
	}

	in.File = &analysis.Upload{Filename: fh.Filename, Data: data}
	// Browser forms send an empty text field alongside the file.
	if in.Text != nil && strings.TrimSpace(*in.Text) == "" {
		in.Text = nil
	}
	return in, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func writeAnalysisError(w http.ResponseWriter, err error) {
	aerr := analysis.AsError(err)
	if aerr.Class == analysis.ClassInternal {
		log.Error().Err(err).Msg("Analysis request failed")
	}
	middleware.WriteError(w, aerr.Class.HTTPStatus(), aerr.Message, aerr.DetailText())
}

// StatusHandler serves the liveness and configuration endpoints
type StatusHandler struct {
	cfg           *config.Config
	llmConfigured bool
}

func NewStatusHandler(cfg *config.Config, llmConfigured bool) *StatusHandler {
	return &StatusHandler{cfg: cfg, llmConfigured: llmConfigured}
}

// HealthResponse reports whether the service can reach a model.
type HealthResponse struct {
	Status           string   `json:"status"`
	OpenAIConfigured bool     `json:"openai_configured"`
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	MaxTokens        int      `json:"max_tokens"`
	Profile          string   `json:"profile"`
	AllowedFileTypes []string `json:"allowed_file_types"`
}

func (h *StatusHandler) Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Article Analyzer API is running",
		"status":  "ok",
	})
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		OpenAIConfigured: h.llmConfigured,
		Provider:         h.cfg.LLM.Provider,
		Model:            h.cfg.LLM.Model,
		MaxTokens:        h.cfg.LLM.MaxTokens,
		Profile:          h.cfg.Analyzer.Profile,
		AllowedFileTypes: h.cfg.Analyzer.AllowedFileTypes,
	})
}
