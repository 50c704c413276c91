// Package ingestion turns uploaded documents into indexed chunks: loading
// raw bytes into text, splitting the text, and orchestrating company builds.
package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
)

// AllowedExtensions lists the document types the service accepts, keyed by
// lowercase extension including the dot.
var AllowedExtensions = map[string]struct{}{
	".txt":  {},
	".json": {},
	".pdf":  {},
	".docx": {},
}

func ExtensionAllowed(ext string) bool {
	_, ok := AllowedExtensions[strings.ToLower(ext)]
	return ok
}

// Loader extracts normalized plain text from uploaded document bytes.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load converts document bytes into text based on the file extension.
// Unknown extensions return ErrUnsupportedFormat; parse failures and empty
// extractions return ErrLoadFailed.
func (l *Loader) Load(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt":
		text, err = loadText(data)
	case ".json":
		text, err = loadJSON(data)
	case ".pdf", ".docx":
		text, err = l.loadBinary(ctx, data, ext)
	default:
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document produced no text", core.ErrLoadFailed)
	}
	return text, nil
}

func loadText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", core.ErrLoadFailed)
	}
	return string(data), nil
}

// loadJSON renders a JSON document as readable text: objects are
// pretty-printed, top-level arrays become one rendered element per line.
func loadJSON(data []byte) (string, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: invalid JSON: %v", core.ErrLoadFailed, err)
	}

	switch v := payload.(type) {
	case map[string]any:
		rendered, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrLoadFailed, err)
		}
		return string(rendered), nil
	case []any:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				rendered, err := json.MarshalIndent(item, "", "  ")
				if err != nil {
					return "", fmt.Errorf("%w: %v", core.ErrLoadFailed, err)
				}
				lines = append(lines, string(rendered))
			default:
				lines = append(lines, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(lines, "\n"), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func (l *Loader) loadBinary(ctx context.Context, data []byte, ext string) (string, error) {
	mime := "application/pdf"
	if ext == ".docx" {
		mime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}

	res, err := docconv.Convert(bytes.NewReader(data), mime, false)
	if err != nil {
		l.logger.Warn("document extraction failed",
			zap.String("mime", mime),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: extracting %s: %v", core.ErrLoadFailed, ext, err)
	}
	return res.Body, nil
}
