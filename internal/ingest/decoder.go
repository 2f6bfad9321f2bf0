package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

// uploadBaseURL stands in for the page URL readability expects; uploads have none.
var uploadBaseURL = &url.URL{Scheme: "https", Host: "upload.invalid", Path: "/"}

// ErrUndecodable is returned when an upload cannot be turned into text.
var ErrUndecodable = errors.New("unable to decode file")

// ErrTooLong is returned when extraction stops because the text exceeds maxChars.
var ErrTooLong = errors.New("decoded text too long")

const (
	// xmlBytesPerChar bounds how much markup document.xml may carry per allowed character.
	xmlBytesPerChar = 256
	minDocumentXML  = 1 << 20
)

const utf8BOM = "\ufeff"

// Extension returns the lower-cased extension of filename, including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Decode converts an uploaded file into text based on its extension.
// The result is not trimmed. Archive formats stop expanding once the text
// passes maxChars characters and return ErrTooLong.
func Decode(filename string, data []byte, maxChars int) (string, error) {
	switch Extension(filename) {
	case ".docx":
		return decodeDOCX(data, maxChars)
	case ".html", ".htm":
		return decodeHTML(data)
	default:
		return DecodeText(data)
	}
}

// DecodeText decodes data as UTF-8, falling back to Latin-1. Content that
// sniffs as a known binary format yields ErrUndecodable.
func DecodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), utf8BOM), nil
	}

	mtype := mimetype.Detect(data)
	if isKnownBinary(mtype) {
		log.Debug().Str("mime", mtype.String()).Msg("upload is not text")
		return "", fmt.Errorf("%w: detected %s", ErrUndecodable, mtype.String())
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return string(out), nil
}

// isKnownBinary reports whether mimetype recognised a concrete non-text
// format. Unrecognised bytes (application/octet-stream) stay decodable.
func isKnownBinary(mtype *mimetype.MIME) bool {
	if mtype.Is("application/octet-stream") {
		return false
	}
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return false
		}
	}
	return true
}

// decodeHTML extracts the readable article body from an HTML page.
func decodeHTML(data []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(data), uploadBaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	text := article.TextContent
	if article.Title != "" && !strings.Contains(text, article.Title) {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

// decodeDOCX concatenates the text runs of word/document.xml. Paragraphs and
// explicit breaks become newlines, tabs become tab characters.
func decodeDOCX(data []byte, maxChars int) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive", ErrUndecodable)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: word/document.xml missing", ErrUndecodable)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer rc.Close()

	limit := documentXMLLimit(maxChars)
	if doc.UncompressedSize64 > uint64(limit) {
		return "", fmt.Errorf("%w: word/document.xml is %d bytes, limit %d", ErrTooLong, doc.UncompressedSize64, limit)
	}

	// The header size is not trusted; the reader enforces the same cap.
	lr := &io.LimitedReader{R: rc, N: limit + 1}
	text, err := extractDocumentText(lr, maxChars)
	if lr.N <= 0 {
		return "", fmt.Errorf("%w: word/document.xml exceeds %d bytes", ErrTooLong, limit)
	}
	return text, err
}

func documentXMLLimit(maxChars int) int64 {
	limit := int64(maxChars) * xmlBytesPerChar
	if limit < minDocumentXML {
		limit = minDocumentXML
	}
	return limit
}

// extractDocumentText walks the document XML. It stops with ErrTooLong once
// more than maxChars characters were collected; maxChars <= 0 disables the check.
func extractDocumentText(r io.Reader, maxChars int) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	chars := 0

	for {
		if maxChars > 0 && chars > maxChars {
			return "", fmt.Errorf("%w: more than %d characters", ErrTooLong, maxChars)
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
				chars++
			case "br", "cr":
				b.WriteByte('\n')
				chars++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
				chars++
			}
		case xml.CharData:
			if inText {
				b.Write(t)
				chars += utf8.RuneCount(t)
			}
		}
	}
	return b.String(), nil
}
