// Package diag implements the compiler's error-handling design (spec §7):
// a collector of user-facing Diagnostics and the stderr renderer of §6's
// "<path>:<line>:<col>" caret-annotated format.
//
// Grounded on the teacher's util/perror.go, a goroutine-fed error
// collector used for parallel worker threads; generalized here from "one
// listener per compiler run" to a plain mutex-guarded Bag, since most
// single-module compiles never need the channel machinery, with an
// optional Listen mode for concurrent producers sharing one Bag.
// internal/driver does not use it: each module gets its own Bag.
package diag

import (
	"sync"

	"nasin/internal/syntax"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

// Kind names the specific error taxonomy of spec §7.
type Kind string

const (
	UnresolvedIdentifier Kind = "unresolved_identifier"
	UnexpectedType       Kind = "unexpected_type"
	TypeMismatch         Kind = "type_mismatch"
	NotImplemented       Kind = "not_implemented"
)

// Diagnostic is one user-facing compile error or warning.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Path     string
	Range    syntax.Range
	Line     int // 1-based; 0 if unknown.
	Col      int // 1-based; 0 if unknown.
}

// Bag collects Diagnostics for one or more module compiles. The zero Bag
// is usable directly for single-threaded collection; call Listen to
// switch to the teacher's channel-fed mode for concurrent producers.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
	ch    chan Diagnostic
	done  chan struct{}
}

// Add appends d to the bag. Safe to call without Listen from a single
// goroutine, and from any goroutine after Listen.
func (b *Bag) Add(d Diagnostic) {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	if ch != nil {
		ch <- d
		return
	}
	b.mu.Lock()
	b.items = append(b.items, d)
	b.mu.Unlock()
}

// Listen starts a background goroutine draining a buffered channel into
// the bag, for use when several goroutines report into the same Bag.
// Call Stop when all producers have finished.
func (b *Bag) Listen() {
	b.mu.Lock()
	b.ch = make(chan Diagnostic, 64)
	b.done = make(chan struct{})
	ch, done := b.ch, b.done
	b.mu.Unlock()

	go func() {
		defer close(done)
		for d := range ch {
			b.mu.Lock()
			b.items = append(b.items, d)
			b.mu.Unlock()
		}
	}()
}

// Stop closes the listener channel and waits for it to drain. No further
// Add calls may be made afterward.
func (b *Bag) Stop() {
	b.mu.Lock()
	ch, done := b.ch, b.done
	b.ch = nil
	b.mu.Unlock()
	if ch == nil {
		return
	}
	close(ch)
	<-done
}

// Errors returns the collected Diagnostics with Severity Error.
func (b *Bag) Errors() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// All returns every collected Diagnostic, in report order.
func (b *Bag) All() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Diagnostic(nil), b.items...)
}

// HasErrors reports whether any Error-severity Diagnostic was collected.
func (b *Bag) HasErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Len returns the number of collected Diagnostics.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
