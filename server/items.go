package server

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mmfeed/feed"
	"mmfeed/ids"
	"mmfeed/models"
	"mmfeed/pmap"
)

// DefaultMaxEntries is how many items the backend keeps
const DefaultMaxEntries = 50

// Items creates and removes items, keeping the store bounded and telling
// SSE clients about every change.
type Items struct {
	store       pmap.Store
	ids         *ids.Generator
	maxEntries  int
	broadcaster *Broadcaster
}

func NewItems(store pmap.Store, gen *ids.Generator, maxEntries int, bc *Broadcaster) *Items {
	if gen == nil {
		gen = ids.NewGenerator()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Items{
		store:       store,
		ids:         gen,
		maxEntries:  maxEntries,
		broadcaster: bc,
	}
}

// Create stores value under a fresh key and returns the key
func (i *Items) Create(value, origin string) (string, error) {
	key := i.ids.Next()

	evicted, err := i.store.PutWithLimit(key, value, i.maxEntries)
	if err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return "", fmt.Errorf("failed to store item: %w", err)
	}

	itemsCreated.WithLabelValues(origin).Inc()
	itemsRemoved.WithLabelValues("evicted").Add(float64(len(evicted)))
	itemsStored.Set(float64(i.store.Len()))

	log.WithFields(log.Fields{
		"key":     key,
		"origin":  origin,
		"evicted": len(evicted),
	}).Info("Created item")

	if i.broadcaster != nil {
		i.broadcaster.BroadcastPut(models.PutItemEvent{Item: models.Item{Key: key, Value: value}})
		for _, k := range evicted {
			i.broadcaster.BroadcastRemove(models.RemoveItemEvent{Item: models.Item{Key: k}, Evicted: true})
		}
	}

	return key, nil
}

// Delete removes key and reports whether it existed
func (i *Items) Delete(key string) (bool, error) {
	removed, err := i.store.Remove(key)
	if err != nil {
		storeErrors.WithLabelValues("remove").Inc()
		return false, fmt.Errorf("failed to remove item: %w", err)
	}
	if !removed {
		return false, nil
	}

	itemsRemoved.WithLabelValues("deleted").Inc()
	itemsStored.Set(float64(i.store.Len()))

	log.WithFields(log.Fields{
		"key": key,
	}).Info("Deleted item")

	if i.broadcaster != nil {
		i.broadcaster.BroadcastRemove(models.RemoveItemEvent{Item: models.Item{Key: key}})
	}
	return true, nil
}

func (i *Items) Get(key string) (string, bool) {
	return i.store.Get(key)
}

func (i *Items) Snapshot() map[string]string {
	return i.store.Snapshot()
}

// localSource lets a feed.Synchronizer run against the local store
type localSource struct {
	items *Items
}

func (s localSource) Fetch(ctx context.Context) (map[string]string, error) {
	return s.items.Snapshot(), nil
}

func (s localSource) Post(ctx context.Context, text string) error {
	_, err := s.items.Create(text, "page")
	return err
}

func (s localSource) Delete(ctx context.Context, id string) error {
	removed, err := s.items.Delete(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("item %s not found", id)
	}
	return nil
}

var _ feed.Source = localSource{}
