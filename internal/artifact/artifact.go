// Package artifact discovers and extracts collected conference materials
// (notes, slide text, tables) into typed records for matching.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Artifact is one extracted input file. Immutable once ingested.
type Artifact struct {
	ID             string `json:"id"`              // file name relative to the inputs dir
	NormalizedName string `json:"normalized_name"` // lowercased base name without extension
	Text           string `json:"extracted_text"`
	ContentHash    string `json:"content_hash"` // sha256 of the raw bytes
}

// Failure records a single artifact that could not be extracted. The run
// continues without it.
type Failure struct {
	ArtifactID string `json:"artifact_id"`
	Reason     string `json:"reason"`
}

// NormalizeName lowercases a file name, drops its extension, and collapses
// runs of whitespace. The result is what the matcher operates on.
func NormalizeName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(strings.TrimSpace(base))
	return strings.Join(strings.Fields(base), " ")
}

// HashBytes returns the hex sha256 of raw content.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
