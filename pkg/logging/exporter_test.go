// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"sync"
)

// bufferedExporter collects entries in memory so tests can assert on log output.
type bufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
	flushed bool
	closed  bool
}

// newBufferedExporter creates an empty bufferedExporter.
func newBufferedExporter() *bufferedExporter {
	return &bufferedExporter{entries: make([]LogEntry, 0, 64)}
}

// Export appends the entry.
func (e *bufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush marks the exporter flushed.
func (e *bufferedExporter) Flush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushed = true
	return nil
}

// Close marks the exporter closed.
func (e *bufferedExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Entries returns a copy of the collected entries.
func (e *bufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

// Closed reports whether Flush and Close have both been called.
func (e *bufferedExporter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushed && e.closed
}

var _ LogExporter = (*bufferedExporter)(nil)
