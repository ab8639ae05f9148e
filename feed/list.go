package feed

import (
	"fmt"
	"sync"
	"time"
)

// View receives the rendered feed
type View interface {
	// Insert places an item entry at its newest-first position
	Insert(entry Entry)
	Remove(key string) bool
	Clear()
	Notice(text string)
}

// List is a View kept in memory, newest entry first. Readers can wait on
// Changes to learn that the list was modified.
type List struct {
	mu      sync.RWMutex
	entries []Entry
	notices int
	now     func() time.Time
	changes chan struct{}
}

func NewList() *List {
	return &List{
		now:     time.Now,
		changes: make(chan struct{}, 1),
	}
}

// Insert puts an item directly below the nearest newer item, or at the top
// when no item is newer. Notices never affect the position.
func (l *List) Insert(entry Entry) {
	l.mu.Lock()
	idx := 0
	for i, e := range l.entries {
		if e.Kind == KindItem && e.Key > entry.Key {
			idx = i + 1
		}
	}
	l.entries = append(l.entries, Entry{})
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = entry
	l.mu.Unlock()

	l.notify()
}

func (l *List) Remove(key string) bool {
	l.mu.Lock()
	removed := false
	for i, e := range l.entries {
		if e.Key == key {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			removed = true
			break
		}
	}
	l.mu.Unlock()

	if removed {
		l.notify()
	}
	return removed
}

func (l *List) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()

	l.notify()
}

// Notice shows a system message at the top of the list
func (l *List) Notice(text string) {
	l.mu.Lock()
	l.notices++
	entry := newNotice(fmt.Sprintf("system-%d", l.notices), text, l.now())
	l.entries = append([]Entry{entry}, l.entries...)
	l.mu.Unlock()

	l.notify()
}

// Entries returns a copy of the list, newest first
func (l *List) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Keys returns the item keys in display order
func (l *List) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Kind == KindItem {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Changes delivers a signal after modifications. Signals coalesce, so a
// reader sees at least one signal after the last change.
func (l *List) Changes() <-chan struct{} {
	return l.changes
}

func (l *List) notify() {
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

var _ View = (*List)(nil)
