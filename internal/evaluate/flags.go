package evaluate

import (
	"regexp"
	"strings"
)

// flagPattern matches inline annotations of the form
// [FLAG: type "description"] or [FLAG: type] embedded in a summary.
var (
	flagPattern   = regexp.MustCompile(`\[FLAG:\s*([^"\]]+?)(?:\s+"([^"]+)")?\]`)
	spaceCollapse = regexp.MustCompile(`[ \t]{2,}`)
)

// ParseFlags extracts all inline flag annotations from text,
// preserving document order.
func ParseFlags(text string) []Flag {
	ms := flagPattern.FindAllStringSubmatch(text, -1)
	if len(ms) == 0 {
		return nil
	}
	flags := make([]Flag, 0, len(ms))
	for _, m := range ms {
		flags = append(flags, Flag{
			Type:        strings.TrimSpace(m[1]),
			Description: strings.TrimSpace(m[2]),
		})
	}
	return flags
}

// StripFlags removes all inline flag annotations from text, collapsing
// any doubled spaces the removal leaves behind.
func StripFlags(text string) string {
	out := flagPattern.ReplaceAllString(text, "")
	return spaceCollapse.ReplaceAllString(out, " ")
}
