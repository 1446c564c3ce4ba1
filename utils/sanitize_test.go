package utils

import (
	"strings"
	"testing"
)

func TestSanitizeAnswerScriptEscaped(t *testing.T) {
	in := `<script>alert(1)</script><strong>ok</strong>`
	got := SanitizeAnswer(in)

	if strings.Contains(got, "<script>") {
		t.Fatalf("script tag survived sanitization: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("script tag should render as escaped text, got %q", got)
	}
	if !strings.Contains(got, "<strong>ok</strong>") {
		t.Errorf("whitelisted strong tag should stay live, got %q", got)
	}
}

func TestSanitizeAnswerWhitelist(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"bold answer", "<strong>Answer</strong>", "<strong>Answer</strong>"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "<ul><li>one</li><li>two</li></ul>"},
		{"paragraph with em", "<p>see <em>this</em></p>", "<p>see <em>this</em></p>"},
		{"attributes stripped", `<p style="color:red">x</p>`, "<p>x</p>"},
		{"div escaped", "<div>x</div>", "&lt;div&gt;x&lt;/div&gt;"},
		{"onerror img escaped", `<img src=x onerror=alert(1)>`, "&lt;img src=x onerror=alert(1)&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeAnswer(tt.in); got != tt.want {
				t.Errorf("SanitizeAnswer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeAnswerRejectedAnchorClosesEscaped(t *testing.T) {
	got := SanitizeAnswer(`<a href="javascript:alert(1)">x</a>`)
	if strings.Contains(got, "</a>") {
		t.Fatalf("rejected anchor left a live closing tag: %q", got)
	}
	if !strings.Contains(got, "&lt;/a&gt;") {
		t.Errorf("closing tag should render as escaped text, got %q", got)
	}

	// A later safe anchor must still close live.
	got = SanitizeAnswer(`<a>bad</a> and <a href="https://example.com">ok</a>`)
	if !strings.Contains(got, `<a href="https://example.com">ok</a>`) {
		t.Errorf("safe anchor should stay live, got %q", got)
	}
	if strings.Count(got, "</a>") != 1 {
		t.Errorf("exactly one live closing tag expected, got %q", got)
	}
}

func TestSanitizeAnswerHrefSchemes(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLive bool
	}{
		{"https", `<a href="https://example.com">x</a>`, true},
		{"http", `<a href="http://example.com">x</a>`, true},
		{"mailto", `<a href="mailto:a@b.c">x</a>`, true},
		{"javascript", `<a href="javascript:alert(1)">x</a>`, false},
		{"no href", `<a>x</a>`, false},
		{"relative", `<a href="/etc/passwd">x</a>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeAnswer(tt.in)
			live := strings.Contains(got, "<a href=")
			if live != tt.wantLive {
				t.Errorf("SanitizeAnswer(%q) = %q, live=%v want %v", tt.in, got, live, tt.wantLive)
			}
			if strings.Contains(got, "javascript:alert") && live {
				t.Errorf("javascript scheme must not produce a live link: %q", got)
			}
		})
	}
}
