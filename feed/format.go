package feed

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

const (
	// DefaultSender labels items that carry no name
	DefaultSender = "Contact"

	// DefaultContactMessage prefixes the quoted text in contact links
	DefaultContactMessage = "Hi, I saw your message on the feed"

	contactTextLimit = 140
)

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)

	urlPattern  = regexp.MustCompile(`https?://[^\s\p{Zs}]+`)
	namePattern = regexp.MustCompile(`^[\p{L}\p{M}\-']+`)
)

// StripControl removes terminal escape sequences and control characters other
// than newline and tab, so remote text can be printed to a terminal.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, ansi.Strip(s))
}

// EscapeHTML replaces the five markup-significant characters with entities
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Linkify wraps every http(s) URL in already escaped text with an anchor
// whose visible text is the URL itself.
func Linkify(escaped string) string {
	return urlPattern.ReplaceAllStringFunc(escaped, func(u string) string {
		clean := strings.ReplaceAll(u, `"`, "")
		return fmt.Sprintf(`<a href="%s" class="link-primary" target="_blank" rel="noopener noreferrer">%s</a>`, clean, clean)
	})
}

// FirstName returns the leading run of letters, marks, hyphens and
// apostrophes of raw, or its first word when it does not start with one.
func FirstName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if m := namePattern.FindString(s); m != "" {
		return m
	}
	return strings.Fields(s)[0]
}

// ContactURL builds a WhatsApp deep link to phone pre-filled with prefix and
// the first 140 characters of text in quotes.
func ContactURL(phone, prefix, text string) string {
	if prefix == "" {
		prefix = DefaultContactMessage
	}
	message := fmt.Sprintf("%s: \"%s\"", prefix, truncate(text, contactTextLimit))
	return "https://wa.me/" + url.PathEscape(phone) + "?text=" + encodeComponent(message)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// encodeComponent percent-encodes s for use inside a query value, spaces
// included.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
