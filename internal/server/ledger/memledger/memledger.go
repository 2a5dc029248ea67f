// Package memledger is an in-process ledger.Writer.
package memledger

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/JustWint3r/SecureShare/internal/server/ledger"
)

type Ledger struct {
	mu       sync.Mutex
	payloads map[string][]byte
	writes   int
	failures int
	failErr  error
}

func New() *Ledger {
	return &Ledger{payloads: map[string][]byte{}}
}

// FailNext makes the next n writes fail with err.
func (l *Ledger) FailNext(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = n
	l.failErr = err
}

func (l *Ledger) Write(ctx context.Context, recordID string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.writes++
	if l.failures > 0 {
		l.failures--
		return "", l.failErr
	}
	if existing, ok := l.payloads[recordID]; ok && !bytes.Equal(existing, payload) {
		return "", fmt.Errorf("%w %s", ledger.ErrConflict, recordID)
	}
	l.payloads[recordID] = append([]byte(nil), payload...)
	return "mem:" + recordID, nil
}

// Payload returns what was written for recordID.
func (l *Ledger) Payload(recordID string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payloads[recordID]
	return p, ok
}

// Writes counts every Write call, failed ones included.
func (l *Ledger) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.payloads)
}
