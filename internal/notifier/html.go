package notifier

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// H is HTML that is safe to pass to Telegram when ParseMode="HTML".
// Values of type H should be treated as already-escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func B(s string) H { return H("<b>" + html.EscapeString(s) + "</b>") }

// Link builds an HTML link.
func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// JoinH joins safe HTML parts with sep, skipping blank parts.
func JoinH(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, sep))
}

var reMarkdown = regexp.MustCompile(`\*\*([^*]+)\*\*|\[([^\]]+)\]\(([^)\s]+)\)`)

// FromMarkdown converts the small markdown subset used in embeds
// (**bold** and [text](url)) to Telegram HTML. Everything else is escaped.
func FromMarkdown(s string) H {
	var b strings.Builder
	last := 0
	for _, m := range reMarkdown.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:m[0]]))
		switch {
		case m[2] >= 0:
			b.WriteString(B(s[m[2]:m[3]]).String())
		case m[4] >= 0:
			b.WriteString(Link(s[m[4]:m[5]], s[m[6]:m[7]]).String())
		}
		last = m[1]
	}
	b.WriteString(html.EscapeString(s[last:]))
	return H(b.String())
}

// RenderHTML renders a message as Telegram HTML: text first, then each
// embed as a bold title, its description and one line per field.
func RenderHTML(msg Message) H {
	parts := make([]H, 0, 1+len(msg.Embeds))
	if strings.TrimSpace(msg.Text) != "" {
		parts = append(parts, FromMarkdown(msg.Text))
	}
	for _, e := range msg.Embeds {
		lines := make([]H, 0, 2+len(e.Fields))
		if e.Title != "" {
			if e.URL != "" {
				lines = append(lines, H("<b>"+Link(e.Title, e.URL).String()+"</b>"))
			} else {
				lines = append(lines, B(e.Title))
			}
		}
		if e.Description != "" {
			lines = append(lines, FromMarkdown(e.Description))
		}
		for _, f := range e.Fields {
			lines = append(lines, H(Esc(f.Name).String()+": "+FromMarkdown(f.Value).String()))
		}
		parts = append(parts, JoinH("\n", lines...))
	}
	return JoinH("\n\n", parts...)
}
