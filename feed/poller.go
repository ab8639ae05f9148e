package feed

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Poller is the handle of a running poll loop
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start loads all items and then polls for new ones every interval until
// the context is cancelled or Stop is called. Ticks are skipped while paused.
func (s *Synchronizer) Start(ctx context.Context) *Poller {
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	log.WithFields(log.Fields{
		"interval": s.interval,
	}).Info("Starting feed poller")

	go s.loop(ctx, p.done)
	return p
}

func (s *Synchronizer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := s.LoadAll(ctx, false); err == nil && s.welcome != "" {
		s.view.Notice(s.welcome)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping feed poller")
			return
		case <-ticker.C:
			if s.Paused() {
				continue
			}
			_ = s.PollIncremental(ctx)
		}
	}
}

// Stop cancels the timer and waits for the loop to exit. It is safe to call
// more than once.
func (p *Poller) Stop() {
	p.cancel()
	<-p.done
}

// Done is closed when the loop has exited
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
