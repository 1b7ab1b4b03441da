package artifact

import (
	"fmt"
	"os"
	"strings"
)

// Extractor turns a raw file into text. Implementations are per-format;
// extraction failures are local to one artifact and never abort a run.
type Extractor interface {
	// CanHandle reports whether this extractor understands the file.
	CanHandle(path string) bool
	// Extract returns the file's text content.
	Extract(path string) (string, error)
}

// TextExtractor handles plain-text formats: markdown, text, CSV tables.
type TextExtractor struct{}

var textExts = map[string]bool{
	".md":  true,
	".txt": true,
	".csv": true,
}

func (TextExtractor) CanHandle(path string) bool {
	return textExts[strings.ToLower(ext(path))]
}

func (TextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func ext(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// DefaultExtractors returns the built-in extractor chain.
func DefaultExtractors() []Extractor {
	return []Extractor{TextExtractor{}}
}
