package hexprot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// guard is the mutex and log buffer shared by every Transaction taken
// out on a session's Initiators. One Session owns one guard.
type guard struct {
	mu  sync.Mutex
	log strings.Builder
}

// Transaction is a scoped resource held for the duration of one
// initiator exchange: it acquires the session's stream lock on
// construction and releases it on Close, resetting and then
// committing the per-transaction log around that span.
type Transaction struct {
	g *guard
}

// beginTransaction acquires g's lock, resets the log buffer, and returns the
// open Transaction. Callers must defer Close.
func beginTransaction(g *guard) *Transaction {
	g.mu.Lock()
	g.log.Reset()
	return &Transaction{g: g}
}

// Logf appends a trace line to the transaction's log buffer.
func (t *Transaction) Logf(format string, args ...interface{}) {
	fmt.Fprintf(&t.g.log, format, args...)
	t.g.log.WriteByte('\n')
}

// Close commits the buffered trace through structured logging and
// releases the lock. Safe to call exactly once, typically via defer.
func (t *Transaction) Close() {
	if t.g.log.Len() > 0 {
		glog.V(4).Infof("hexprot: transaction trace:\n%s", t.g.log.String())
	}
	t.g.mu.Unlock()
}
