package history

import "github.com/goliatone/go-mdsync/internal/ops"

// BeginGroup starts collecting pushed steps into a single entry. Nested calls
// are ignored.
func (m *Manager) BeginGroup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grouping {
		return
	}
	m.grouping = true
	m.group = nil
}

// EndGroup closes the group and pushes the collected steps as one entry
// stamped with version. Forward operations are batched in order and inverses
// in reverse order. A group with a single step is pushed unchanged apart from
// the version; an empty group pushes nothing.
func (m *Manager) EndGroup(version int64) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.grouping {
		return Entry{}, false
	}
	steps := m.group
	m.grouping, m.group = false, nil

	switch len(steps) {
	case 0:
		return Entry{}, false
	case 1:
		entry := steps[0]
		entry.Version = version
		m.pushLocked(entry)
		return entry, true
	}

	forward := make([]ops.Operation, 0, len(steps))
	inverse := make([]ops.Operation, 0, len(steps))
	for i := range steps {
		forward = append(forward, steps[i].Forward)
		inverse = append(inverse, steps[len(steps)-1-i].Inverse)
	}
	last := steps[len(steps)-1]
	entry := Entry{
		Version:   version,
		Forward:   ops.Batch(forward...),
		Inverse:   ops.Batch(inverse...),
		Selection: last.Selection,
		Timestamp: last.Timestamp,
	}
	m.pushLocked(entry)
	return entry, true
}

// CancelGroup discards the collected steps without recording them.
func (m *Manager) CancelGroup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grouping, m.group = false, nil
}

// Grouping reports whether a group is open.
func (m *Manager) Grouping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grouping
}
