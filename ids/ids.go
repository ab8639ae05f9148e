package ids

import (
	"sync"
	"time"
)

// Layout is the key format. Fractional seconds are always written so that
// lexicographic order matches chronological order.
const Layout = "2006-01-02T15:04:05.000Z"

// Format renders t as an item key.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Generator hands out ISO-8601 keys that are strictly increasing and at
// least one millisecond apart within the process.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	now    func() time.Time
	sleep  func(time.Duration)
}

func NewGenerator() *Generator {
	return &Generator{lastMs: -1, now: time.Now, sleep: time.Sleep}
}

// Next returns the next key, waiting for the clock when the previous key was
// issued less than a millisecond ago.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UnixMilli()
	if g.lastMs < 0 {
		g.lastMs = now
		return Format(time.UnixMilli(now))
	}

	minNext := g.lastMs + 1
	if now < minNext {
		g.sleep(time.Duration(minNext-now) * time.Millisecond)
		now = g.now().UnixMilli()
	}
	// Clock went backwards or did not move during the wait
	if now <= g.lastMs {
		now = g.lastMs + 1
	}

	g.lastMs = now
	return Format(time.UnixMilli(now))
}
