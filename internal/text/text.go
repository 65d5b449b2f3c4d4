// Package text holds the small string helpers shared by the bot, the LLM
// adapters and the storage layer.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis is appended by Truncate when a string is cut.
const Ellipsis = "..."

var (
	historyPrefixRe = regexp.MustCompile(`(?m)^(?:\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] UID -?\d+: )+`)
	jsonFenceRe     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
)

// SplitReply breaks an agent reply into chat-sized segments. A segment ends
// after ". ", "! " or "? " and keeps its punctuation. Empty segments are
// dropped; text without any delimiter comes back as a single segment.
func SplitReply(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var parts []string
	start := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] != ' ' {
				continue
			}
			if seg := strings.TrimSpace(s[start : i+1]); seg != "" {
				parts = append(parts, seg)
			}
			start = i + 2
			i++
		}
	}
	if start < len(s) {
		if seg := strings.TrimSpace(s[start:]); seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

// Truncate shortens s to at most max runes, ending with Ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= len(Ellipsis) {
		return Ellipsis[:max]
	}
	runes := []rune(s)
	return string(runes[:max-len(Ellipsis)]) + Ellipsis
}

// StripHistoryPrefix removes "[YYYY-MM-DD HH:MM:SS] UID n: " prefixes that a
// model sometimes echoes back from the formatted history.
func StripHistoryPrefix(s string) string {
	return strings.TrimSpace(historyPrefixRe.ReplaceAllString(s, ""))
}

// ExtractJSON returns the body of the first Markdown code fence, or the
// outermost JSON object/array when there is no fence.
func ExtractJSON(s string) string {
	if m := jsonFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(s)
	open := strings.IndexAny(s, "{[")
	if open < 0 {
		return s
	}
	closing := byte('}')
	if s[open] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(s, closing)
	if end < open {
		return s[open:]
	}
	return s[open : end+1]
}

// NormalizeSpace collapses runs of whitespace inside each line and trims the
// result, keeping line breaks.
func NormalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		var b strings.Builder
		space := false
		for _, r := range line {
			if unicode.IsSpace(r) {
				if !space {
					b.WriteRune(' ')
					space = true
				}
				continue
			}
			b.WriteRune(r)
			space = false
		}
		lines[i] = strings.TrimSpace(b.String())
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
