package dbussink

import "sync"

// emittedSignal records one EmitSignal call for later assertions.
type emittedSignal struct {
	Path  string
	Iface string
	Name  string
	Args  map[string]any
}

// updatedProperty records one UpdateProperty call for later assertions.
type updatedProperty struct {
	Path  string
	Iface string
	Prop  string
	Value any
}

// MockSink is an in-memory Sink for tests that don't want a real bus
// connection, tracking every emitted signal and property update for
// assertions.
type MockSink struct {
	mu      sync.Mutex
	emitted []emittedSignal
	updated []updatedProperty
}

// NewMockSink returns an empty MockSink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// EmitSignal implements internal/rde's Sink interface.
func (m *MockSink) EmitSignal(path, iface, name string, args map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append(m.emitted, emittedSignal{Path: path, Iface: iface, Name: name, Args: args})
	return nil
}

// Emitted returns every signal recorded so far, in call order.
func (m *MockSink) Emitted() []emittedSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]emittedSignal, len(m.emitted))
	copy(out, m.emitted)
	return out
}

// Count returns the number of signals recorded so far.
func (m *MockSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emitted)
}

// UpdateProperty implements internal/rde's Sink interface.
func (m *MockSink) UpdateProperty(path, iface, prop string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, updatedProperty{Path: path, Iface: iface, Prop: prop, Value: value})
	return nil
}

// UpdatedProperties returns every property update recorded so far, in
// call order.
func (m *MockSink) UpdatedProperties() []updatedProperty {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]updatedProperty, len(m.updated))
	copy(out, m.updated)
	return out
}
