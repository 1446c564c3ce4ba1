package utils

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// allowedTags is the markup subset the LLM is instructed to emit. Anything
// outside it stays escaped and renders as visible text.
var allowedTags = map[string]bool{
	"strong": true,
	"em":     true,
	"p":      true,
	"br":     true,
	"ul":     true,
	"li":     true,
	"a":      true,
}

var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"data":   true,
	"mailto": true,
}

// SanitizeAnswer reduces LLM output to the safe markup whitelist. The input
// is escaped wholesale, then only whitelisted tags are re-permitted as live
// markup. An anchor survives only with an href on an allowed scheme.
func SanitizeAnswer(input string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var out strings.Builder
	// Open anchors rejected by the href check; their closing tags must be
	// escaped as well or the output ends up with stray live </a> tags.
	rejectedAnchors := 0

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			// io.EOF ends the stream; any other tokenizer error also
			// terminates, having escaped everything consumed so far
			break
		}

		raw := string(tokenizer.Raw())

		switch tokenType {
		case html.TextToken:
			out.WriteString(html.EscapeString(html.UnescapeString(raw)))

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if !allowedTags[token.Data] {
				out.WriteString(html.EscapeString(raw))
				continue
			}
			if token.Data == "a" {
				href, ok := safeHref(token)
				if !ok {
					if tokenType == html.StartTagToken {
						rejectedAnchors++
					}
					out.WriteString(html.EscapeString(raw))
					continue
				}
				out.WriteString(`<a href="` + html.EscapeString(href) + `">`)
				continue
			}
			// re-emit canonical tag, dropping all attributes
			out.WriteString("<" + token.Data + ">")

		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "a" && rejectedAnchors > 0 {
				rejectedAnchors--
				out.WriteString(html.EscapeString(raw))
				continue
			}
			if !allowedTags[token.Data] || token.Data == "br" {
				out.WriteString(html.EscapeString(raw))
				continue
			}
			out.WriteString("</" + token.Data + ">")

		default:
			// comments, doctypes: keep as escaped text
			out.WriteString(html.EscapeString(raw))
		}
	}

	return out.String()
}

func safeHref(token html.Token) (string, bool) {
	for _, attr := range token.Attr {
		if attr.Key != "href" {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(attr.Val))
		if err != nil {
			return "", false
		}
		if !allowedSchemes[strings.ToLower(u.Scheme)] {
			return "", false
		}
		return attr.Val, true
	}
	return "", false
}
