package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"mmfeed/models"
)

// Broadcaster fans item events out to the connected SSE clients
type Broadcaster struct {
	sync.RWMutex
	putClients    map[string]chan models.PutItemEvent
	removeClients map[string]chan models.RemoveItemEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		putClients:    make(map[string]chan models.PutItemEvent),
		removeClients: make(map[string]chan models.RemoveItemEvent),
	}
}

func (b *Broadcaster) BroadcastPut(event models.PutItemEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.putClients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping put event for client: %v", id)
		}
	}
}

func (b *Broadcaster) BroadcastRemove(event models.RemoveItemEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.removeClients {
		select {
		case client <- event:
		default:
			log.Warnf("Client channel full, skipping remove event for client: %v", id)
		}
	}
}

func (b *Broadcaster) AddClient(key string, putClient chan models.PutItemEvent, removeClient chan models.RemoveItemEvent) {
	b.Lock()
	defer b.Unlock()
	b.putClients[key] = putClient
	b.removeClients[key] = removeClient
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.putClients),
	}).Info("Adding client to broadcaster")
}

func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.putClients[key]; ok {
		close(client)
		delete(b.putClients, key)
	}

	if client, ok := b.removeClients[key]; ok {
		close(client)
		delete(b.removeClients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.putClients),
	}).Info("Removed client from broadcaster")
}

// Clients returns the number of connected clients
func (b *Broadcaster) Clients() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.putClients)
}

// Shutdown closes every client channel, ending their streams
func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.putClients {
		close(client)
		delete(b.putClients, key)
	}
	for key, client := range b.removeClients {
		close(client)
		delete(b.removeClients, key)
	}
}
