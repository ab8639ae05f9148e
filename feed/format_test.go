package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"script", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"quotes", `"it's"`, "&quot;it&#039;s&quot;"},
		{"ampersand first", "&lt;", "&amp;lt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeHTML(tt.in))
		})
	}
}

func TestStripControl(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"newline and tab", "a\n\tb", "a\n\tb"},
		{"window title", "hi\x1b]0;owned\x07", "hi"},
		{"clear screen", "hi\x1b[2J", "hi"},
		{"clipboard", "x\x1b]52;c;aGk=\x07y", "xy"},
		{"bell and carriage return", "a\x07b\rc", "abc"},
		{"unicode kept", "olá 👋", "olá 👋"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripControl(tt.in))
		})
	}
}

func TestLinkify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no url",
			in:   "just text",
			want: "just text",
		},
		{
			name: "bare url",
			in:   "see https://example.com/a now",
			want: `see <a href="https://example.com/a" class="link-primary" target="_blank" rel="noopener noreferrer">https://example.com/a</a> now`,
		},
		{
			name: "two urls",
			in:   "http://a.io https://b.io",
			want: `<a href="http://a.io" class="link-primary" target="_blank" rel="noopener noreferrer">http://a.io</a> ` +
				`<a href="https://b.io" class="link-primary" target="_blank" rel="noopener noreferrer">https://b.io</a>`,
		},
		{
			name: "escaped query keeps entities",
			in:   EscapeHTML("https://x.io/?a=1&b=2"),
			want: `<a href="https://x.io/?a=1&amp;b=2" class="link-primary" target="_blank" rel="noopener noreferrer">https://x.io/?a=1&amp;b=2</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Linkify(tt.in))
		})
	}
}

func TestFirstName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Maria Silva", "Maria"},
		{"  João-Pedro d'Ávila", "João-Pedro"},
		{"O'Neil", "O'Neil"},
		{"123 abc", "123"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstName(tt.in))
		})
	}
}

func TestContactURL(t *testing.T) {
	assert.Equal(t,
		"https://wa.me/5561999?text=Hi%3A%20%22a%20b%22",
		ContactURL("5561999", "Hi", "a b"),
	)

	long := strings.Repeat("é", 200)
	url := ContactURL("1", "Hi", long)
	assert.Equal(t, 140, strings.Count(url, "%C3%A9"))

	assert.True(t, strings.HasPrefix(ContactURL("1", "", "x"), "https://wa.me/1?text=Hi%2C%20I%20saw"))
}
