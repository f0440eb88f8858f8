package audit

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/viant/vetflow/internal/clock"
)

// Ledger is the append-only record of every transition. Concurrent
// producers (watchers, the gate, the engine) hand entries to a single writer
// goroutine over a channel, so lines never interleave.
type Ledger struct {
	location  string
	file      *os.File
	entries   chan Entry
	listeners []func(Entry)
	done      chan struct{}
	closeOnce sync.Once
	mux       sync.RWMutex
}

// Option customises a ledger.
type Option func(*Ledger)

// WithListener registers a callback invoked for every appended entry, after
// it is durably written. Dashboards and tests hook in here.
func WithListener(fn func(Entry)) Option {
	return func(l *Ledger) {
		l.listeners = append(l.listeners, fn)
	}
}

// New opens (or creates) the ledger file at location and starts the writer
// goroutine.
func New(location string, options ...Option) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	file, err := os.OpenFile(location, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", location, err)
	}
	ledger := &Ledger{
		location: location,
		file:     file,
		entries:  make(chan Entry, 256),
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(ledger)
	}
	go ledger.run()
	return ledger, nil
}

// Append records an entry. The entry timestamp defaults to now when unset.
// Append blocks rather than drops when the writer falls behind.
func (l *Ledger) Append(entry Entry) {
	if entry.Time.IsZero() {
		entry.Time = clock.Now()
	}
	l.entries <- entry
}

// Close drains pending entries, flushes and closes the file.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() {
		close(l.entries)
		<-l.done
	})
	return l.file.Close()
}

func (l *Ledger) run() {
	defer close(l.done)
	for entry := range l.entries {
		if _, err := fmt.Fprintln(l.file, entry.Line()); err != nil {
			log.Printf("audit: failed to append entry for %s: %v", entry.Target, err)
			continue
		}
		l.mux.RLock()
		listeners := l.listeners
		l.mux.RUnlock()
		for _, fn := range listeners {
			fn(entry)
		}
	}
	_ = l.file.Sync()
}

// Tail returns up to n most recent ledger lines.
func (l *Ledger) Tail(n int) ([]string, error) {
	file, err := os.Open(l.location)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
