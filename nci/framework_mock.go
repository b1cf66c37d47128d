package nci

import "sync"

// MockFrameworkEvent is one recorded Framework callback.
type MockFrameworkEvent struct {
	Kind      string
	Target    *Target
	Init      *Initiator
	Mode      Mode
	Confirmed bool
	Status    TransmitStatus
	Data      []byte
}

// MockFramework records every notification it receives, in order, for
// assertion in tests.
type MockFramework struct {
	mu     sync.Mutex
	Events []MockFrameworkEvent
}

// NewMockFramework returns an empty MockFramework.
func NewMockFramework() *MockFramework {
	return &MockFramework{}
}

func (m *MockFramework) record(e MockFrameworkEvent) {
	m.mu.Lock()
	m.Events = append(m.Events, e)
	m.mu.Unlock()
}

// Last returns the most recently recorded event, or the zero value if
// none were recorded.
func (m *MockFramework) Last() MockFrameworkEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return MockFrameworkEvent{}
	}
	return m.Events[len(m.Events)-1]
}

// Count returns how many events of the given kind have been recorded.
func (m *MockFramework) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (m *MockFramework) ModeNotify(mode Mode, confirmed bool) {
	m.record(MockFrameworkEvent{Kind: "ModeNotify", Mode: mode, Confirmed: confirmed})
}

func (m *MockFramework) AddTagT2(t *Target) {
	m.record(MockFrameworkEvent{Kind: "AddTagT2", Target: t})
}

func (m *MockFramework) AddTagT4A(t *Target) {
	m.record(MockFrameworkEvent{Kind: "AddTagT4A", Target: t})
}

func (m *MockFramework) AddTagT4B(t *Target) {
	m.record(MockFrameworkEvent{Kind: "AddTagT4B", Target: t})
}

func (m *MockFramework) AddOtherTag(t *Target) {
	m.record(MockFrameworkEvent{Kind: "AddOtherTag", Target: t})
}

func (m *MockFramework) AddPeerInitiatorA(t *Target) {
	m.record(MockFrameworkEvent{Kind: "AddPeerInitiatorA", Target: t})
}

func (m *MockFramework) AddPeerInitiatorF(t *Target) {
	m.record(MockFrameworkEvent{Kind: "AddPeerInitiatorF", Target: t})
}

func (m *MockFramework) AddPeerTargetA(i *Initiator) {
	m.record(MockFrameworkEvent{Kind: "AddPeerTargetA", Init: i})
}

func (m *MockFramework) AddPeerTargetF(i *Initiator) {
	m.record(MockFrameworkEvent{Kind: "AddPeerTargetF", Init: i})
}

func (m *MockFramework) TargetGone(t *Target) {
	m.record(MockFrameworkEvent{Kind: "TargetGone", Target: t})
}

func (m *MockFramework) TargetReactivated(t *Target) {
	m.record(MockFrameworkEvent{Kind: "TargetReactivated", Target: t})
}

func (m *MockFramework) InitiatorGone(i *Initiator) {
	m.record(MockFrameworkEvent{Kind: "InitiatorGone", Init: i})
}

func (m *MockFramework) TransmitDone(t *Target, status TransmitStatus, data []byte) {
	m.record(MockFrameworkEvent{Kind: "TransmitDone", Target: t, Status: status, Data: data})
}

func (m *MockFramework) ResponseSent(i *Initiator, status TransmitStatus) {
	m.record(MockFrameworkEvent{Kind: "ResponseSent", Init: i, Status: status})
}
