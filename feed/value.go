package feed

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Value is the payload stored under an item key. It is either PlainText or
// Structured and is decided once, when the raw string is parsed.
type Value interface {
	isValue()
}

// PlainText is a value that was not a JSON object
type PlainText string

// Structured is a value that was a JSON object with optional text, name and
// wa (phone) fields.
type Structured struct {
	Text  string
	Name  string
	Phone string
}

func (PlainText) isValue()  {}
func (Structured) isValue() {}

// ParseValue decodes raw into a Structured value when it holds a JSON object.
// Anything else, including malformed JSON, degrades to PlainText.
func ParseValue(raw string) Value {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return PlainText(raw)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		// Trailing data after the object
		return PlainText(raw)
	}

	return Structured{
		Text:  stringify(obj["text"]),
		Name:  stringify(obj["name"]),
		Phone: stringify(obj["wa"]),
	}
}

// stringify renders a decoded JSON field as text. Falsy values (null, false,
// zero and the empty string) count as absent.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// body returns the text to display for a value, falling back to the raw
// string when a structured value carries no text.
func body(v Value, raw string) string {
	if s, ok := v.(Structured); ok && s.Text != "" {
		return s.Text
	}
	if p, ok := v.(PlainText); ok {
		return string(p)
	}
	return raw
}
