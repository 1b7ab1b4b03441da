// Package match links artifacts to sessions with tiered, explainable
// confidence scores. The same inputs always produce byte-identical
// output ordering; checkpoint diffs and review files depend on it.
package match

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"symposium/internal/artifact"
	"symposium/internal/logging"
	"symposium/internal/roster"
)

// Confidence levels per matching tier. Higher tiers always win for a
// given artifact-session pair; tiers are never averaged.
const (
	ConfExact         = 1.00
	ConfParenthetical = 0.95
	ConfIDSubstring   = 0.85
	ConfNameSubstring = 0.80
	ConfTokenOverlap  = 0.70
)

// DefaultThreshold is the confidence below which a match is routed to
// human review rather than auto-accepted. A tuning constant, not a
// contract: always taken from configuration in real runs.
const DefaultThreshold = 0.70

// Match links one artifact to one session. Many-to-many is legitimate
// (shared notes for a session group) and retained; conflicts are
// surfaced through Review, never silently resolved.
type Match struct {
	ArtifactID string  `json:"artifact_id"`
	SessionID  string  `json:"session_id"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Rationale  string  `json:"rationale"`
	Review     bool    `json:"review"` // below threshold: needs human confirmation
}

// Result is the matcher's full output for one (sessions, artifacts) input.
type Result struct {
	Matches                []Match  `json:"matches"`
	UnmatchedArtifactIDs   []string `json:"unmatched_artifact_ids"`
	SessionsWithoutMatches []string `json:"sessions_without_matches"`
}

// Matcher scores artifacts against sessions. Zero value is not usable;
// construct with New.
type Matcher struct {
	threshold float64
}

// New returns a Matcher with the given review threshold.
func New(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Run scores every artifact against every session. It never fails:
// malformed inputs only reduce the number of matches. Output is sorted
// by (session_id, artifact_id).
func (m *Matcher) Run(sessions []roster.Session, artifacts []artifact.Artifact) Result {
	log := logging.New("match")

	var matches []Match
	matchedArtifacts := make(map[string]bool)
	matchedSessions := make(map[string]bool)

	for _, art := range artifacts {
		name := strings.TrimSpace(art.NormalizedName)
		for _, sess := range sessions {
			mt, ok := scorePair(sess, art.ID, name)
			if !ok {
				continue
			}
			mt.Review = mt.Confidence < m.threshold
			matches = append(matches, mt)
			matchedArtifacts[art.ID] = true
			matchedSessions[sess.ID] = true
		}
		if name == "" {
			log.Warn("artifact has empty normalized name; only exact matching applied", "artifact", art.ID)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].SessionID != matches[j].SessionID {
			return matches[i].SessionID < matches[j].SessionID
		}
		return matches[i].ArtifactID < matches[j].ArtifactID
	})

	var unmatched []string
	for _, art := range artifacts {
		if !matchedArtifacts[art.ID] {
			unmatched = append(unmatched, art.ID)
		}
	}
	sort.Strings(unmatched)

	var silent []string
	for _, sess := range sessions {
		if !matchedSessions[sess.ID] {
			silent = append(silent, sess.ID)
		}
	}
	sort.Strings(silent)

	return Result{Matches: matches, UnmatchedArtifactIDs: unmatched, SessionsWithoutMatches: silent}
}

// scorePair applies the tier ladder for one artifact-session pair and
// returns the highest-tier match, or ok=false for no match at all.
func scorePair(sess roster.Session, artifactID, name string) (Match, bool) {
	id := strings.ToLower(strings.TrimSpace(sess.ID))
	title := strings.ToLower(strings.TrimSpace(sess.Title))

	mk := func(conf float64, method, rationale string) (Match, bool) {
		return Match{
			ArtifactID: artifactID,
			SessionID:  sess.ID,
			Confidence: conf,
			Method:     method,
			Rationale:  rationale,
		}, true
	}

	// Tier 1: exact normalized-name equality.
	if name != "" && name == id {
		return mk(ConfExact, "exact", fmt.Sprintf("artifact name equals session id %q", sess.ID))
	}

	// Malformed or empty names only participate in tier 1.
	if name == "" || id == "" {
		return Match{}, false
	}

	// Tier 2: session id as a parenthetical or bracketed token.
	if strings.Contains(name, "("+id+")") || strings.Contains(name, "["+id+"]") {
		return mk(ConfParenthetical, "parenthetical", fmt.Sprintf("session id %q bracketed in artifact name", sess.ID))
	}

	// Tier 3: session id inside the artifact name.
	if strings.Contains(name, id) {
		return mk(ConfIDSubstring, "id-substring", fmt.Sprintf("session id %q contained in artifact name", sess.ID))
	}

	// Tier 4: artifact name inside the session id or title.
	if strings.Contains(id, name) || strings.Contains(title, name) {
		return mk(ConfNameSubstring, "name-substring", fmt.Sprintf("artifact name contained in session %q", sess.ID))
	}

	// Tier 5: word-set overlap between artifact name and session id+title.
	artTokens := tokenize(name)
	sessTokens := tokenize(id + " " + title)
	overlap := intersect(artTokens, sessTokens)
	need := min(2, len(sessTokens))
	if need > 0 && overlap >= need {
		return mk(ConfTokenOverlap, "token-overlap", fmt.Sprintf("%d shared tokens with session %q", overlap, sess.ID))
	}

	return Match{}, false
}

// tokenize strips punctuation, uppercases, and splits into a word set.
func tokenize(s string) map[string]bool {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(b.String()) {
		tokens[w] = true
	}
	return tokens
}

func intersect(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
