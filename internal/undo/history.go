/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps a bounded, linear history of editor states.
package undo

import (
	"sync"
	"time"
)

// DefaultMaxDepth is the history depth used when Config.MaxDepth is zero.
const DefaultMaxDepth = 50

// Snapshot is one recorded state and the time it was captured.
type Snapshot[T any] struct {
	State T
	TS    time.Time
}

// Config controls depth caps and coalescing behavior.
type Config struct {
	// MaxDepth caps the number of states kept, including the current one.
	MaxDepth int
	// MinInterval coalesces pushes closer together than the interval,
	// replacing the current state instead of adding a new entry.
	// Zero disables coalescing.
	MinInterval time.Duration
}

// Manager is a linear undo/redo history over states of type T.
// Pushing after an undo discards the redo branch. Pushes equal to the
// current state are ignored. It is safe for concurrent use.
type Manager[T any] struct {
	cfg   Config
	equal func(a, b T) bool
	mu    sync.Mutex
	// entries[pos] is the current state; entries after pos are redo states.
	entries []Snapshot[T]
	pos     int
}

// NewManager returns an empty history. equal may be nil, in which case
// every push is recorded.
func NewManager[T any](cfg Config, equal func(a, b T) bool) *Manager[T] {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Manager[T]{cfg: cfg, equal: equal, pos: -1}
}

// Push records state as the new current state. It reports false when the
// state equals the current one and nothing was recorded.
func (m *Manager[T]) Push(state T, ts time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= 0 {
		cur := m.entries[m.pos]
		if m.equal != nil && m.equal(cur.State, state) {
			return false
		}
		// Any new change invalidates redo.
		m.entries = m.entries[:m.pos+1]
		// Coalesce with the current entry, but never swallow the base state.
		if m.cfg.MinInterval > 0 && m.pos > 0 && ts.Sub(cur.TS) < m.cfg.MinInterval {
			m.entries[m.pos] = Snapshot[T]{State: state, TS: ts}
			return true
		}
	}
	m.entries = append(m.entries, Snapshot[T]{State: state, TS: ts})
	m.pos = len(m.entries) - 1
	m.enforceCapsLocked()
	return true
}

// Reset drops the whole history and records state as the only entry.
func (m *Manager[T]) Reset(state T, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = []Snapshot[T]{{State: state, TS: ts}}
	m.pos = 0
}

// Undo steps back one state and returns it.
func (m *Manager[T]) Undo() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos <= 0 {
		var zero T
		return zero, false
	}
	m.pos--
	return m.entries[m.pos].State, true
}

// Redo steps forward one state and returns it.
func (m *Manager[T]) Redo() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos+1 >= len(m.entries) {
		var zero T
		return zero, false
	}
	m.pos++
	return m.entries[m.pos].State, true
}

// CanUndo reports whether Undo would succeed.
func (m *Manager[T]) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos > 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager[T]) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos+1 < len(m.entries)
}

// Stats returns current sizes for diagnostics: the number of recorded
// states and how many of them can be undone and redone from the current one.
func (m *Manager[T]) Stats() (entries, undoable, redoable int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos < 0 {
		return 0, 0, 0
	}
	return len(m.entries), m.pos, len(m.entries) - m.pos - 1
}

func (m *Manager[T]) enforceCapsLocked() {
	if extra := len(m.entries) - m.cfg.MaxDepth; extra > 0 {
		// drop the oldest extras
		m.entries = append([]Snapshot[T]{}, m.entries[extra:]...)
		m.pos -= extra
	}
}
