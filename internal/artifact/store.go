package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"symposium/internal/logging"
)

// Scan walks the inputs directory, extracting every regular file through
// the first extractor that can handle it. Files no extractor understands
// become Failures, not errors. Results are sorted by artifact id so the
// output is deterministic regardless of directory iteration order.
func Scan(dir string, extractors []Extractor) ([]Artifact, []Failure, error) {
	log := logging.New("artifact")

	var artifacts []Artifact
	var failures []Failure

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)

		ex := pick(extractors, path)
		if ex == nil {
			failures = append(failures, Failure{ArtifactID: id, Reason: "no extractor for format"})
			log.Warn("skipping artifact", "id", id, "reason", "no extractor for format")
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, Failure{ArtifactID: id, Reason: err.Error()})
			log.Warn("skipping artifact", "id", id, "reason", err)
			return nil
		}
		text, err := ex.Extract(path)
		if err != nil {
			failures = append(failures, Failure{ArtifactID: id, Reason: err.Error()})
			log.Warn("extraction failed", "id", id, "reason", err)
			return nil
		}

		artifacts = append(artifacts, Artifact{
			ID:             id,
			NormalizedName: NormalizeName(id),
			Text:           text,
			ContentHash:    HashBytes(raw),
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].ID < artifacts[j].ID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].ArtifactID < failures[j].ArtifactID })
	return artifacts, failures, nil
}

func pick(extractors []Extractor, path string) Extractor {
	for _, ex := range extractors {
		if ex.CanHandle(path) {
			return ex
		}
	}
	return nil
}
