package classify

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagPattern         = regexp.MustCompile(`(?s)<[^>]+>`)
	// htmlTagPattern matches actual markup, not a stray angle bracket.
	htmlTagPattern = regexp.MustCompile(`(?i)<(p|div|span|a|br|img|table|tr|td|th|ul|ol|li|h[1-6]|b|i|em|strong|pre|code|blockquote|section|article|header|footer|nav|form|input|meta|html|head|body)\b[^>]*>`)
	lineBreakTags  = regexp.MustCompile(`(?i)<(br|/p|/div|/li|/h[1-6]|/tr)[^>]*>`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// HasMarkup reports whether the payload contains actual HTML tags rather
// than incidental angle brackets.
func HasMarkup(payload string) bool {
	return htmlTagPattern.MatchString(payload)
}

// HTMLToText projects an HTML payload onto plain text: scripts and styles
// dropped, tags stripped, entities decoded, blank runs collapsed.
func HTMLToText(payload string) string {
	text := scriptBlockPattern.ReplaceAllString(payload, "")
	text = lineBreakTags.ReplaceAllString(text, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownToText renders markdown and strips the result down to plain text.
// Used for generated-document previews and fingerprints.
func MarkdownToText(source string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return strings.TrimSpace(source)
	}
	return HTMLToText(buf.String())
}
