package analysis

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"article-analyzer/internal/config"
	"article-analyzer/internal/ingest"
)

// Upload is a file received from the caller.
type Upload struct {
	Filename string
	Data     []byte
}

// Input carries either an uploaded file or raw text. Exactly one must be set.
type Input struct {
	File *Upload
	Text *string
}

// TextInput is a convenience constructor for the text path.
func TextInput(text string) Input {
	return Input{Text: &text}
}

// FileInput is a convenience constructor for the upload path.
func FileInput(filename string, data []byte) Input {
	return Input{File: &Upload{Filename: filename, Data: data}}
}

// Acquirer validates input and produces normalized article text.
type Acquirer struct {
	allowed     map[string]bool
	allowedList string
	maxFileSize int64
	minLength   int
	maxLength   int
}

func NewAcquirer(cfg config.AnalyzerConfig) *Acquirer {
	allowed := make(map[string]bool, len(cfg.AllowedFileTypes))
	for _, ext := range cfg.AllowedFileTypes {
		allowed[strings.ToLower(ext)] = true
	}
	return &Acquirer{
		allowed:     allowed,
		allowedList: strings.Join(cfg.AllowedFileTypes, ", "),
		maxFileSize: cfg.MaxFileSize,
		minLength:   cfg.MinTextLength,
		maxLength:   cfg.MaxTextLength,
	}
}

// MaxFileSize is the largest accepted upload in bytes.
func (a *Acquirer) MaxFileSize() int64 { return a.maxFileSize }

// Acquire returns the trimmed article text or an *Error.
func (a *Acquirer) Acquire(in Input) (string, error) {
	var (
		text string
		err  error
	)

	switch {
	case in.File == nil && in.Text == nil:
		return "", badRequest("No file or text provided")
	case in.File != nil && in.Text != nil:
		return "", badRequest("Provide either a file or text, not both")
	case in.File != nil:
		text, err = a.fromFile(in.File)
	default:
		text, err = a.fromText(*in.Text)
	}
	if err != nil {
		return "", err
	}

	if err := a.checkLength(text); err != nil {
		return "", err
	}
	return text, nil
}

func (a *Acquirer) fromFile(f *Upload) (string, error) {
	if int64(len(f.Data)) > a.maxFileSize {
		return "", a.TooLarge()
	}

	if !a.allowed[ingest.Extension(f.Filename)] {
		return "", badRequest("Unsupported file type. Allowed types: %s", a.allowedList)
	}

	raw, err := ingest.Decode(f.Filename, f.Data, a.maxLength)
	if err != nil {
		if errors.Is(err, ingest.ErrTooLong) {
			return "", badRequest("Text too long. Maximum length is %d characters", a.maxLength)
		}
		if errors.Is(err, ingest.ErrUndecodable) {
			return "", newError(ClassBadRequest, "Unable to decode file. Please ensure it's a valid text file.", err)
		}
		return "", newError(ClassInternal, "Failed to read uploaded file", err)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", badRequest("File appears to be empty")
	}
	return text, nil
}

func (a *Acquirer) fromText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", badRequest("Text cannot be empty")
	}
	return text, nil
}

func (a *Acquirer) checkLength(text string) error {
	n := utf8.RuneCountInString(text)
	if n < a.minLength {
		return badRequest("Text too short. Minimum length is %d characters", a.minLength)
	}
	if n > a.maxLength {
		return badRequest("Text too long. Maximum length is %d characters", a.maxLength)
	}
	return nil
}

// TooLarge is the error for uploads over the configured byte limit.
func (a *Acquirer) TooLarge() *Error {
	return newError(ClassPayloadTooLarge, fmt.Sprintf("File too large. Maximum size is %s", formatSize(a.maxFileSize)), nil)
}

func formatSize(n int64) string {
	const mib = 1024 * 1024
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
