// Package naming lets core code ask a front end for a name and wait for the
// answer, without knowing whether a dialog or a terminal prompt serves it.
package naming

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rivo/uniseg"

	"github.com/oukeidos/ravemix/internal/apperrors"
)

// MaxNameLength bounds names in user-perceived characters.
const MaxNameLength = 64

// Request is one pending naming prompt.
type Request struct {
	Title string

	accept func(string) error
	done   chan struct{}
	once   sync.Once
	name   string
	err    error
}

// Submit validates name and, if it passes, resolves the request. A rejected
// name leaves the request pending so the prompt can show the message.
func (r *Request) Submit(name string) error {
	trimmed, err := Validate(name)
	if err != nil {
		return err
	}
	if r.accept != nil {
		if err := r.accept(trimmed); err != nil {
			return err
		}
	}
	r.resolve(trimmed, nil)
	return nil
}

// Cancel resolves the request without a name.
func (r *Request) Cancel() {
	r.resolve("", apperrors.Cancelled(nil))
}

// Done is closed once the request is resolved.
func (r *Request) Done() <-chan struct{} { return r.done }

func (r *Request) resolve(name string, err error) {
	r.once.Do(func() {
		r.name = name
		r.err = err
		close(r.done)
	})
}

// Validate trims name and checks the rules every saved name must follow.
func Validate(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.Invalid("A name is required.")
	}
	if n := uniseg.GraphemeClusterCount(trimmed); n > MaxNameLength {
		return "", apperrors.Invalid(fmt.Sprintf("Name is too long (%d > %d characters).", n, MaxNameLength))
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return "", apperrors.Invalid("Name must not contain path separators.")
	}
	if strings.HasPrefix(trimmed, ".") {
		return "", apperrors.Invalid("Name must not start with a dot.")
	}
	return trimmed, nil
}

// Broker hands naming requests from the core to whichever front end reads
// Requests. At most one request is pending at a time.
type Broker struct {
	requests chan *Request

	mu      sync.Mutex
	pending *Request
}

func NewBroker() *Broker {
	return &Broker{requests: make(chan *Request, 1)}
}

func (b *Broker) Requests() <-chan *Request { return b.requests }

// Pending returns the unresolved request, if any.
func (b *Broker) Pending() *Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// RequestName publishes a request and blocks until it is submitted,
// cancelled, or ctx ends.
func (b *Broker) RequestName(ctx context.Context, title string, accept func(string) error) (string, error) {
	req := &Request{Title: title, accept: accept, done: make(chan struct{})}

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return "", apperrors.Invalid("Another name prompt is already open.")
	}
	b.pending = req
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending == req {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	select {
	case b.requests <- req:
	case <-ctx.Done():
		req.resolve("", apperrors.Cancelled(ctx.Err()))
		return "", req.err
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		req.resolve("", apperrors.Cancelled(ctx.Err()))
	}
	return req.name, req.err
}
