// Package history keeps the linear undo and redo stacks of a document. The
// manager only stores operations; replaying them is delegated to the caller
// so every undo or redo goes through the same validation as a live edit.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

var (
	ErrNothingToUndo = errors.New("history: nothing to undo")
	ErrNothingToRedo = errors.New("history: nothing to redo")
)

// DefaultMaxEntries bounds the undo stack when no limit is configured.
const DefaultMaxEntries = 500

// Selection is the caret or range the presentation reported with an edit.
type Selection struct {
	Path  syntax.Path `json:"path,omitempty"`
	Start int         `json:"start"`
	End   int         `json:"end"`
}

// Entry is one undoable step. Version is the document version the forward
// operation produced.
type Entry struct {
	Version   int64         `json:"version"`
	Forward   ops.Operation `json:"forward"`
	Inverse   ops.Operation `json:"inverse"`
	Selection *Selection    `json:"selection,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Replay applies op to the live document and returns the inverse the engine
// produced together with the version it committed.
type Replay func(op ops.Operation) (inverse ops.Operation, version int64, err error)

// Manager holds the undo and redo stacks.
type Manager struct {
	mu sync.Mutex

	undo []Entry
	redo []Entry

	grouping bool
	group    []Entry

	maxEntries int
	logger     interfaces.Logger
	now        func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for replay failures and evictions.
func WithLogger(logger interfaces.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a manager keeping at most maxEntries undo steps.
func NewManager(maxEntries int, opts ...Option) *Manager {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	m := &Manager{
		maxEntries: maxEntries,
		logger:     logging.NoOp(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Push records a new undo step and clears the redo stack.
func (m *Manager) Push(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	if m.grouping {
		m.group = append(m.group, entry)
		return
	}
	m.pushLocked(entry)
}

func (m *Manager) pushLocked(entry Entry) {
	m.undo = append(m.undo, entry)
	m.redo = nil

	if excess := len(m.undo) - m.maxEntries; excess > 0 {
		m.undo = append([]Entry(nil), m.undo[excess:]...)
		m.logger.Debug("history.evicted", "entries", excess)
	}
}

// Undo pops the latest step and replays its inverse. On success the step
// moves to the redo stack. A failed replay drops the step and returns the
// error.
func (m *Manager) Undo(replay Replay) (Entry, error) {
	m.mu.Lock()
	if len(m.undo) == 0 {
		m.mu.Unlock()
		return Entry{}, ErrNothingToUndo
	}
	entry := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.mu.Unlock()

	forward, version, err := replay(entry.Inverse)
	if err != nil {
		m.logger.Warn("history.undo.dropped", "version", entry.Version, "error", err)
		return entry, err
	}

	redone := Entry{
		Version:   version,
		Forward:   forward,
		Inverse:   entry.Inverse,
		Selection: entry.Selection,
		Timestamp: m.now(),
	}
	m.mu.Lock()
	m.redo = append(m.redo, redone)
	m.mu.Unlock()
	return redone, nil
}

// Redo pops the latest undone step and replays its forward operation. On
// success the step returns to the undo stack.
func (m *Manager) Redo(replay Replay) (Entry, error) {
	m.mu.Lock()
	if len(m.redo) == 0 {
		m.mu.Unlock()
		return Entry{}, ErrNothingToRedo
	}
	entry := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.mu.Unlock()

	inverse, version, err := replay(entry.Forward)
	if err != nil {
		m.logger.Warn("history.redo.dropped", "version", entry.Version, "error", err)
		return entry, err
	}

	undone := Entry{
		Version:   version,
		Forward:   entry.Forward,
		Inverse:   inverse,
		Selection: entry.Selection,
		Timestamp: m.now(),
	}
	m.mu.Lock()
	m.undo = append(m.undo, undone)
	m.mu.Unlock()
	return undone, nil
}

// CanUndo reports whether an undo step is available.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo reports whether a redo step is available.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Len returns the sizes of the undo and redo stacks.
func (m *Manager) Len() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Peek returns the step Undo would replay.
func (m *Manager) Peek() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return Entry{}, false
	}
	return m.undo[len(m.undo)-1], true
}

// Clear drops both stacks and any open group.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
	m.grouping, m.group = false, nil
}
