package pmap

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	log "github.com/sirupsen/logrus"
)

const (
	opPut    = "put"
	opRemove = "remove"
)

// logEntry is one NDJSON line of the append log
type logEntry struct {
	Op string  `json:"op"`
	K  string  `json:"k"`
	V  *string `json:"v,omitempty"`
}

// Log is a Store backed by an NDJSON append log. Every mutation is appended
// and flushed before the call returns; Open replays the file to rebuild the
// map and its order.
type Log struct {
	mu    sync.Mutex
	path  string
	items *orderedmap.OrderedMap[string, string]
	file  *os.File
}

// Open replays the log at path, creating the parent directory and the file
// when they do not exist.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	l := &Log{
		path:  path,
		items: orderedmap.NewOrderedMap[string, string](),
	}

	size, unterminated, err := l.replay()
	if err != nil {
		return nil, err
	}

	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	// Appends must start on a fresh line after the last good entry
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to truncate item log: %w", err)
	}
	if unterminated {
		if _, err := file.Write([]byte{'\n'}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to append to item log: %w", err)
		}
	}
	l.file = file

	log.WithFields(log.Fields{
		"path":  path,
		"count": l.items.Len(),
	}).Info("Opened item log")

	return l, nil
}

func openAppend(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open item log: %w", err)
	}
	return file, nil
}

// replay rebuilds the map from the log. It returns the length of the
// usable prefix of the file and whether that prefix lacks a final newline.
// A torn last line is not part of the prefix.
func (l *Log) replay() (int64, bool, error) {
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read item log: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)

	var offset int64
	line := 0
	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return 0, false, fmt.Errorf("failed to scan item log: %w", err)
		}
		if len(raw) > 0 {
			line++
			terminated := raw[len(raw)-1] == '\n'
			ok := l.apply(bytes.TrimSpace(raw), line)
			if !terminated {
				if !ok {
					// A crash mid-write leaves a torn last line behind
					log.WithFields(log.Fields{
						"path":   l.path,
						"line":   line,
						"offset": offset,
					}).Warn("Dropping torn item log tail")
					return offset, false, nil
				}
				return offset + int64(len(raw)), true, nil
			}
			offset += int64(len(raw))
		}
		if err == io.EOF {
			return offset, false, nil
		}
	}
}

// apply replays one line and reports whether it was a valid entry
func (l *Log) apply(raw []byte, line int) bool {
	if len(raw) == 0 {
		return true
	}

	var e logEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.WithFields(log.Fields{
			"path":  l.path,
			"line":  line,
			"error": err,
		}).Warn("Skipping malformed item log line")
		return false
	}

	switch e.Op {
	case opPut:
		value := ""
		if e.V != nil {
			value = *e.V
		}
		l.items.Delete(e.K)
		l.items.Set(e.K, value)
	case opRemove:
		l.items.Delete(e.K)
	default:
		log.WithFields(log.Fields{
			"path": l.path,
			"line": line,
			"op":   e.Op,
		}).Warn("Skipping unknown item log operation")
	}
	return true
}

func (l *Log) Get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Get(key)
}

func (l *Log) Snapshot() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make(map[string]string, l.items.Len())
	for el := l.items.Front(); el != nil; el = el.Next() {
		snapshot[el.Key] = el.Value
	}
	return snapshot
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Len()
}

// Keys returns the keys from oldest to newest put
func (l *Log) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, l.items.Len())
	for el := l.items.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

func (l *Log) Put(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put(key, value)
}

func (l *Log) PutWithLimit(key, value string, maxEntries int) ([]string, error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.put(key, value); err != nil {
		return nil, err
	}

	var evicted []string
	for l.items.Len() > maxEntries {
		oldest := l.items.Front()
		if oldest == nil {
			break
		}
		k := oldest.Key
		l.items.Delete(k)
		if err := l.write(logEntry{Op: opRemove, K: k}); err != nil {
			return evicted, err
		}
		evicted = append(evicted, k)
	}

	return evicted, nil
}

func (l *Log) Remove(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return false, ErrClosed
	}
	if _, ok := l.items.Get(key); !ok {
		return false, nil
	}

	l.items.Delete(key)
	if err := l.write(logEntry{Op: opRemove, K: key}); err != nil {
		return true, err
	}
	return true, nil
}

// Compact rewrites the log to one put per live key, preserving order, and
// swaps it in with an atomic rename.
func (l *Log) Compact() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	tmpPath := l.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}

	w := bufio.NewWriter(tmp)
	for el := l.items.Front(); el != nil; el = el.Next() {
		value := el.Value
		line, err := json.Marshal(logEntry{Op: opPut, K: el.Key, V: &value})
		if err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode item %s: %w", el.Key, err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write compaction file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync compaction file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close compaction file: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("failed to replace item log: %w", err)
	}

	// The old handle points at the unlinked file
	l.file.Close()
	file, err := openAppend(l.path)
	if err != nil {
		l.file = nil
		return err
	}
	l.file = file

	log.WithFields(log.Fields{
		"path":  l.path,
		"count": l.items.Len(),
	}).Info("Compacted item log")

	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Log) put(key, value string) error {
	if l.file == nil {
		return ErrClosed
	}
	l.items.Delete(key)
	l.items.Set(key, value)
	return l.write(logEntry{Op: opPut, K: key, V: &value})
}

func (l *Log) write(e logEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("failed to append to item log: %w", err)
	}
	return nil
}

var _ Store = (*Log)(nil)
