package feed

import (
	"html/template"
	"time"
)

type Kind int

const (
	KindItem Kind = iota
	KindSystem
)

func (k Kind) String() string {
	if k == KindSystem {
		return "system"
	}
	return "item"
}

// Entry is one rendered line of the feed
type Entry struct {
	Key    string
	Kind   Kind
	Sender string
	Time   time.Time

	// Text is the unescaped body
	Text string

	// HTML is the escaped and linkified body
	HTML template.HTML

	Phone      string
	ContactURL string
}

// Clock formats the entry time as hours and minutes in local time
func (e Entry) Clock() string {
	return e.Time.Local().Format("15:04")
}

func newEntry(key, raw string, now time.Time, contactMessage string) Entry {
	value := ParseValue(raw)
	text := body(value, raw)

	entry := Entry{
		Key:    key,
		Kind:   KindItem,
		Sender: DefaultSender,
		Time:   parseKeyTime(key, now),
		Text:   text,
		HTML:   template.HTML(Linkify(EscapeHTML(text))),
	}

	if s, ok := value.(Structured); ok {
		if s.Name != "" {
			if name := FirstName(s.Name); name != "" {
				entry.Sender = name
			}
		}
		if s.Phone != "" {
			entry.Phone = s.Phone
			entry.ContactURL = ContactURL(s.Phone, contactMessage, s.Text)
		}
	}

	return entry
}

func newNotice(key, text string, now time.Time) Entry {
	return Entry{
		Key:    key,
		Kind:   KindSystem,
		Sender: "System",
		Time:   now,
		Text:   text,
		HTML:   template.HTML(Linkify(EscapeHTML(text))),
	}
}

func parseKeyTime(key string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339Nano, key)
	if err != nil {
		return fallback
	}
	return t
}
