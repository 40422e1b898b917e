package qlog

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestBufferHandler_StoresLines(t *testing.T) {
	buf := NewRingBuffer(10)
	h := NewBufferHandler(nil, buf)

	logger := slog.New(h)
	logger.Info("test message", "key", "value")

	lines := buf.Lines(10)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0] == "" {
		t.Error("expected non-empty line")
	}
}

func TestRingBuffer_Capacity(t *testing.T) {
	buf := NewRingBuffer(3)

	buf.Add("line1", "")
	buf.Add("line2", "")
	buf.Add("line3", "")
	buf.Add("line4", "") // should evict line1

	lines := buf.Lines(10)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "line2" {
		t.Errorf("expected oldest line to be 'line2', got %q", lines[0])
	}
	if lines[2] != "line4" {
		t.Errorf("expected newest line to be 'line4', got %q", lines[2])
	}
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	buf := NewRingBuffer(0)
	if buf.Capacity() != 200 {
		t.Errorf("expected default capacity 200, got %d", buf.Capacity())
	}
}

func TestRingBuffer_LinesForTable(t *testing.T) {
	buf := NewRingBuffer(10)

	buf.Add("sales line 1", "sales")
	buf.Add("customers line", "customers")
	buf.Add("sales line 2", "sales")

	lines := buf.LinesForTable("sales", 10)
	if len(lines) != 2 {
		t.Fatalf("expected 2 sales lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "sales line 1" || lines[1] != "sales line 2" {
		t.Errorf("expected sales lines in order, got %v", lines)
	}

	if got := buf.LinesForTable("ghosts", 10); len(got) != 0 {
		t.Errorf("expected no lines for untouched table, got %v", got)
	}
}

func TestBufferHandler_TagsEntryWithTableAttr(t *testing.T) {
	buf := NewRingBuffer(10)
	h := NewBufferHandler(nil, buf)

	logger := slog.New(h)
	logger.Info("compile succeeded", "table", "sales")
	logger.Info("unrelated message")

	lines := buf.LinesForTable("sales", 10)
	if len(lines) != 1 {
		t.Fatalf("expected 1 tagged line, got %d", len(lines))
	}
}

func TestBufferHandler_ForwardsToWrapped(t *testing.T) {
	buf := NewRingBuffer(10)
	var output bytes.Buffer
	wrapped := slog.NewTextHandler(&output, nil)
	h := NewBufferHandler(wrapped, buf)

	logger := slog.New(h)
	logger.Info("forwarded message")

	if buf.Total() != 1 {
		t.Fatalf("expected 1 line in buffer, got %d", buf.Total())
	}
	if output.Len() == 0 {
		t.Error("expected wrapped handler to receive log")
	}
}
