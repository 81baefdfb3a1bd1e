package classify

import "strings"

const previewLimit = 60

// Preview derives the short list-display line for text content: the first
// non-empty line if it fits, otherwise its first sentence, otherwise a
// truncated prefix with an ellipsis.
func Preview(text string) string {
	line := firstNonEmptyLine(text)
	if line == "" {
		return ""
	}
	runes := []rune(line)
	if len(runes) <= previewLimit {
		return line
	}
	if sentence := firstSentence(line); sentence != "" && len([]rune(sentence)) <= previewLimit {
		return sentence
	}
	return strings.TrimSpace(string(runes[:previewLimit-1])) + "…"
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstSentence(line string) string {
	for _, terminator := range []string{". ", "! ", "? "} {
		if idx := strings.Index(line, terminator); idx >= 0 {
			return line[:idx+1]
		}
	}
	return ""
}
