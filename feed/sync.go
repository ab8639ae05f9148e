// Package feed keeps a local, newest-first view of a remote timestamp-keyed
// item map. A Synchronizer polls its Source, renders keys it has not seen
// and tracks the largest key observed so far.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const DefaultInterval = 4 * time.Second

var ErrEmptyMessage = errors.New("message is empty")

// Source is the remote item map
type Source interface {
	Fetch(ctx context.Context) (map[string]string, error)
	Post(ctx context.Context, text string) error
	Delete(ctx context.Context, id string) error
}

type Option func(*Synchronizer)

// WithInterval sets how often the poller fetches new items
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithContactMessage sets the text that precedes the quoted item in contact links
func WithContactMessage(prefix string) Option {
	return func(s *Synchronizer) {
		s.contactMessage = prefix
	}
}

// WithWelcome shows text as a notice after the first successful load
func WithWelcome(text string) Option {
	return func(s *Synchronizer) {
		s.welcome = text
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

type Synchronizer struct {
	source         Source
	view           View
	interval       time.Duration
	contactMessage string
	welcome        string
	now            func() time.Time

	mu        sync.Mutex
	seen      map[string]struct{}
	highWater string

	paused atomic.Bool
}

func New(source Source, view View, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:         source,
		view:           view,
		interval:       DefaultInterval,
		contactMessage: DefaultContactMessage,
		now:            time.Now,
		seen:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadAll fetches the whole map and renders every unseen key. A forced load
// first clears the view, the seen set and the high-water mark, but only once
// the fetch has succeeded. Fetch errors leave the state untouched.
func (s *Synchronizer) LoadAll(ctx context.Context, force bool) error {
	items, err := s.source.Fetch(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"force": force,
			"error": err,
		}).Debug("Failed to load items")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if force {
		s.view.Clear()
		s.seen = make(map[string]struct{})
		s.highWater = ""
	}

	keys := lo.Keys(items)
	sort.Strings(keys)

	rendered := 0
	for _, k := range keys {
		if s.render(k, items[k]) {
			rendered++
		}
		if k > s.highWater {
			s.highWater = k
		}
	}

	log.WithFields(log.Fields{
		"items":    len(items),
		"rendered": rendered,
		"force":    force,
	}).Debug("Loaded items")

	return nil
}

// PollIncremental fetches the map and renders only keys newer than the
// high-water mark.
func (s *Synchronizer) PollIncremental(ctx context.Context) error {
	items, err := s.source.Fetch(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Debug("Failed to poll items")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := lo.Filter(lo.Keys(items), func(k string, _ int) bool {
		return s.highWater == "" || k > s.highWater
	})
	sort.Strings(keys)

	for _, k := range keys {
		s.render(k, items[k])
		s.highWater = k
	}

	if len(keys) > 0 {
		log.WithFields(log.Fields{
			"new":        len(keys),
			"high_water": s.highWater,
		}).Debug("Polled items")
	}

	return nil
}

// Render shows a single item unless its key was already rendered. It reports
// whether the item was added to the view.
func (s *Synchronizer) Render(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render(key, value)
}

func (s *Synchronizer) render(key, value string) bool {
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.view.Insert(newEntry(key, value, s.now(), s.contactMessage))
	return true
}

// Post sends text as a new item. The item shows up with the next poll.
func (s *Synchronizer) Post(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	if err := s.source.Post(ctx, text); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Failed to post message")
		s.view.Notice("Failed to send the message. Try again.")
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// Delete removes the item remotely and then from the view and the seen set
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.source.Delete(ctx, id); err != nil {
		log.WithFields(log.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to delete item")
		s.view.Notice("Failed to delete the item. Try again.")
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seen, id)
	s.view.Remove(id)
	return nil
}

// Seen reports whether key has been rendered
func (s *Synchronizer) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// HighWater returns the largest key observed, or "" when none
func (s *Synchronizer) HighWater() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highWater
}

func (s *Synchronizer) Pause()       { s.paused.Store(true) }
func (s *Synchronizer) Resume()      { s.paused.Store(false) }
func (s *Synchronizer) Paused() bool { return s.paused.Load() }
