package view

import (
	"fmt"
	"sync"
)

// Memory is an in-process Layer that keeps every view's properties in a map.
// It backs the server's demo views and the package tests. Safe for concurrent use:
// the engine writes from its goroutine while the HTTP API reads.
type Memory struct {
	mu    sync.RWMutex
	views map[Handle]*memView
}

type memView struct {
	viewType string
	props    Props
	writes   int
}

// NewMemory creates an empty in-memory view layer.
func NewMemory() *Memory {
	return &Memory{views: make(map[Handle]*memView)}
}

// Mount registers a view with its initial properties, replacing any view with the same handle.
func (m *Memory) Mount(h Handle, viewType string, props Props) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := props.Clone()
	if p == nil {
		p = Props{}
	}
	m.views[h] = &memView{viewType: viewType, props: p}
}

// Unmount tears a view down. Later writes to it fail with ErrViewNotFound.
func (m *Memory) Unmount(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, h)
}

func (m *Memory) ViewExists(h Handle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.views[h]
	return ok
}

func (m *Memory) GetPropertyValues(h Handle, names []string) (Props, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[h]
	if !ok {
		return nil, fmt.Errorf("view %s: %w", h, ErrViewNotFound)
	}
	out := make(Props, len(names))
	for _, name := range names {
		if val, ok := v.props[name]; ok {
			out[name] = val
		}
	}
	return out, nil
}

func (m *Memory) SetPropertyValues(h Handle, props Props) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[h]
	if !ok {
		return fmt.Errorf("view %s: %w", h, ErrViewNotFound)
	}
	for k, val := range props {
		v.props[k] = val
	}
	v.writes++
	return nil
}

// Snapshot returns a copy of the view's type and properties.
func (m *Memory) Snapshot(h Handle) (string, Props, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[h]
	if !ok {
		return "", nil, false
	}
	return v.viewType, v.props.Clone(), true
}

// Writes returns how many SetPropertyValues calls the view has accepted.
func (m *Memory) Writes(h Handle) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.views[h]; ok {
		return v.writes
	}
	return 0
}
