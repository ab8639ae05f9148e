package server

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"mmfeed/pmap"
)

// DefaultCompactEvery is the interval between store compactions
const DefaultCompactEvery = 10 * time.Minute

// Compactor compacts a store on a fixed interval
type Compactor struct {
	cron  *cron.Cron
	store pmap.Store
}

func NewCompactor(store pmap.Store, every time.Duration) (*Compactor, error) {
	if every <= 0 {
		every = DefaultCompactEvery
	}

	c := &Compactor{
		cron:  cron.New(),
		store: store,
	}
	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", every), c.Run); err != nil {
		return nil, fmt.Errorf("add cron: %w", err)
	}
	return c, nil
}

func (c *Compactor) Start() {
	c.cron.Start()
}

// Stop stops the schedule and waits for a running compaction to finish
func (c *Compactor) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// Run compacts the store once
func (c *Compactor) Run() {
	start := time.Now()
	if err := c.store.Compact(); err != nil {
		compactions.WithLabelValues("error").Inc()
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error compacting store")
		return
	}

	compactions.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"items":   c.store.Len(),
		"elapsed": time.Since(start),
	}).Info("Compacted store")
}
