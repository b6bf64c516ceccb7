// Package sanitize turns model and user text into something Telegram accepts:
// plain text with markup stripped, or the small HTML subset Telegram renders.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	blockBreaks    = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?ul>|</?ol>`)
	listItemOpen   = regexp.MustCompile(`<li>`)
	listItemClose  = regexp.MustCompile(`</li>`)
	headingOpen    = regexp.MustCompile(`<h[1-6]>`)
	headingClose   = regexp.MustCompile(`</h[1-6]>`)
	extraNewlines  = regexp.MustCompile(`\n\s*\n+`)
	telegramInline = []string{"b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote"}
)

// Policy represents a sanitization policy for text content
type Policy struct {
	strict   *bluemonday.Policy
	rich     *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewTelegramPolicy creates a Policy for Telegram messages.
func NewTelegramPolicy() *Policy {
	rich := bluemonday.NewPolicy()
	rich.AllowElements(telegramInline...)
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("http", "https", "tg")
	rich.RequireParseableURLs(true)

	return &Policy{
		strict:   bluemonday.StrictPolicy(),
		rich:     rich,
		markdown: goldmark.New(),
	}
}

// SanitizeText strips HTML and markdown from the input text
func (p *Policy) SanitizeText(text string) string {
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	htmlText := blockBreaks.ReplaceAllString(buf.String(), "\n")
	htmlText = listItemClose.ReplaceAllString(htmlText, "\n")

	sanitized := p.strict.Sanitize(htmlText)
	sanitized = extraNewlines.ReplaceAllString(sanitized, "\n\n")

	return strings.TrimSpace(html.UnescapeString(sanitized))
}

// RenderHTML converts markdown into Telegram-compatible HTML
// (ParseMode HTML). Unsupported tags are dropped, their text kept.
func (p *Policy) RenderHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(markdown), &buf); err != nil {
		return html.EscapeString(markdown)
	}

	out := headingOpen.ReplaceAllString(buf.String(), "<b>")
	out = headingClose.ReplaceAllString(out, "</b>\n")
	out = listItemOpen.ReplaceAllString(out, "• ")
	out = listItemClose.ReplaceAllString(out, "\n")
	out = blockBreaks.ReplaceAllString(out, "\n")

	out = p.rich.Sanitize(out)
	out = extraNewlines.ReplaceAllString(out, "\n\n")

	return strings.TrimSpace(out)
}
