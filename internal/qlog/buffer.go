package qlog

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// bufferEntry is one buffered log line, tagged with the whitelisted table a
// compile request touched (if any), so recent activity can be filtered down
// to a single table's traffic instead of the whole process's log stream.
type bufferEntry struct {
	line  string
	table string
}

// RingBuffer is a thread-safe circular buffer of formatted log lines.
type RingBuffer struct {
	mu       sync.RWMutex
	entries  []bufferEntry
	capacity int
	head     int
	full     bool
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 200
	}
	return &RingBuffer{entries: make([]bufferEntry, capacity), capacity: capacity}
}

// Add appends a line tagged with the compile request's table (empty if the
// record carried none), evicting the oldest entry once the buffer is full.
func (rb *RingBuffer) Add(line, table string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = bufferEntry{line: line, table: table}
	rb.head = (rb.head + 1) % rb.capacity
	if rb.head == 0 {
		rb.full = true
	}
}

// Lines returns the last n lines, oldest first.
func (rb *RingBuffer) Lines(n int) []string {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.lastN(n, "")
}

// LinesForTable returns the last n lines whose compile request referenced
// table, oldest first, answering "what recently compiled against this
// table" without scanning the whole process log.
func (rb *RingBuffer) LinesForTable(table string, n int) []string {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.lastN(n, table)
}

// lastN walks the buffer from newest to oldest, collecting up to n lines
// matching table (any table when table == ""), then reverses the result so
// callers see oldest-first order.
func (rb *RingBuffer) lastN(n int, table string) []string {
	if n <= 0 {
		return []string{}
	}
	total := rb.total()
	start := 0
	if rb.full {
		start = rb.head
	}

	var out []string
	for i := total - 1; i >= 0 && len(out) < n; i-- {
		e := rb.entries[(start+i)%rb.capacity]
		if table == "" || e.table == table {
			out = append(out, e.line)
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// Total returns the number of lines currently held in the buffer.
func (rb *RingBuffer) Total() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total()
}

// Capacity returns the buffer's fixed capacity.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

func (rb *RingBuffer) total() int {
	if rb.full {
		return rb.capacity
	}
	return rb.head
}

// BufferHandler wraps another slog.Handler, storing a text-formatted copy of
// every record in a RingBuffer before forwarding to the wrapped handler. A
// "table" attribute on the record (as the compile/validate CLI commands
// attach) tags the buffered entry for LinesForTable lookups.
type BufferHandler struct {
	wrapped slog.Handler
	buffer  *RingBuffer
}

// NewBufferHandler wraps handler, capturing formatted records into buffer.
func NewBufferHandler(wrapped slog.Handler, buffer *RingBuffer) *BufferHandler {
	return &BufferHandler{wrapped: wrapped, buffer: buffer}
}

func (h *BufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *BufferHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer
	textHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	if err := textHandler.Handle(ctx, r); err == nil {
		h.buffer.Add(buf.String(), tableAttr(r))
	}

	if h.wrapped != nil && h.wrapped.Enabled(ctx, r.Level) {
		return h.wrapped.Handle(ctx, r)
	}
	return nil
}

// tableAttr pulls the "table" attribute off a log record, if the call site
// logged one (runCompile and runValidate both do).
func tableAttr(r slog.Record) string {
	var table string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "table" {
			table = a.Value.String()
			return false
		}
		return true
	})
	return table
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var wrapped slog.Handler
	if h.wrapped != nil {
		wrapped = h.wrapped.WithAttrs(attrs)
	}
	return &BufferHandler{wrapped: wrapped, buffer: h.buffer}
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	var wrapped slog.Handler
	if h.wrapped != nil {
		wrapped = h.wrapped.WithGroup(name)
	}
	return &BufferHandler{wrapped: wrapped, buffer: h.buffer}
}
