package nci

import (
	"fmt"
	"sync"
)

// MockCore is a scriptable, goroutine-safe fake Core for tests. It
// records every command it receives and lets a test fire the
// notifications a real core would deliver.
type MockCore struct {
	mu sync.Mutex

	current RFState
	next    RFState

	// SetStateErr, if set, is returned by SetState.
	SetStateErr error
	// SetOpModeErr, if set, is returned by SetOpMode.
	SetOpModeErr error
	// SendDataMsgErr, if set, is returned by SendDataMsg.
	SendDataMsgErr error
	// CancelErr, if set, is returned by Cancel.
	CancelErr error

	// LastOpMode is the most recent value passed to SetOpMode.
	LastOpMode OpMode
	// SentData records every (connID, data) passed to SendDataMsg.
	SentData []MockSentData
	// Canceled records every connID passed to Cancel.
	Canceled []byte

	CallLog []string

	pendingSend func(success bool)

	nextSubID int
	curSubs   map[int]func(old, new RFState)
	nextSubs  map[int]func(old, new RFState)
	actSubs   map[int]func(ntf *IntfActivationNtf)
	dataSubs  map[int]func(connID byte, data []byte)
}

// MockSentData is one recorded SendDataMsg call.
type MockSentData struct {
	ConnID byte
	Data   []byte
}

// NewMockCore returns a MockCore with state reset to RFStateIdle.
func NewMockCore() *MockCore {
	return &MockCore{
		current:  RFStateIdle,
		next:     RFStateIdle,
		curSubs:  make(map[int]func(old, new RFState)),
		nextSubs: make(map[int]func(old, new RFState)),
		actSubs:  make(map[int]func(ntf *IntfActivationNtf)),
		dataSubs: make(map[int]func(connID byte, data []byte)),
	}
}

func (m *MockCore) CurrentState() RFState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockCore) NextState() RFState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

func (m *MockCore) SetState(state RFState) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("SetState(%d)", state))
	err := m.SetStateErr
	m.mu.Unlock()
	return err
}

func (m *MockCore) SetOpMode(mode OpMode) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("SetOpMode(%d)", mode))
	m.LastOpMode = mode
	err := m.SetOpModeErr
	m.mu.Unlock()
	return err
}

func (m *MockCore) SendDataMsg(connID byte, data []byte, done func(success bool)) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("SendDataMsg(%d, %d bytes)", connID, len(data)))
	m.SentData = append(m.SentData, MockSentData{ConnID: connID, Data: append([]byte(nil), data...)})
	err := m.SendDataMsgErr
	if err == nil {
		m.pendingSend = done
	}
	m.mu.Unlock()
	return err
}

func (m *MockCore) Cancel(connID byte) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("Cancel(%d)", connID))
	m.Canceled = append(m.Canceled, connID)
	err := m.CancelErr
	m.pendingSend = nil
	m.mu.Unlock()
	return err
}

// CompleteSend invokes the completion callback of the most recent
// SendDataMsg call, simulating the core's send-completion notification.
// It is a no-op if no send is pending.
func (m *MockCore) CompleteSend(success bool) {
	m.mu.Lock()
	done := m.pendingSend
	m.pendingSend = nil
	m.mu.Unlock()
	if done != nil {
		done(success)
	}
}

func (m *MockCore) OnCurrentStateChanged(fn func(old, new RFState)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.curSubs[id] = fn
	return &funcSubscription{cancel: func() {
		m.mu.Lock()
		delete(m.curSubs, id)
		m.mu.Unlock()
	}}
}

func (m *MockCore) OnNextStateChanged(fn func(old, new RFState)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.nextSubs[id] = fn
	return &funcSubscription{cancel: func() {
		m.mu.Lock()
		delete(m.nextSubs, id)
		m.mu.Unlock()
	}}
}

func (m *MockCore) OnIntfActivated(fn func(ntf *IntfActivationNtf)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.actSubs[id] = fn
	return &funcSubscription{cancel: func() {
		m.mu.Lock()
		delete(m.actSubs, id)
		m.mu.Unlock()
	}}
}

func (m *MockCore) OnDataPacket(fn func(connID byte, data []byte)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.dataSubs[id] = fn
	return &funcSubscription{cancel: func() {
		m.mu.Lock()
		delete(m.dataSubs, id)
		m.mu.Unlock()
	}}
}

// FireCurrentStateChanged updates CurrentState and notifies subscribers,
// simulating what a real core does after a SetState completes.
func (m *MockCore) FireCurrentStateChanged(new RFState) {
	m.mu.Lock()
	old := m.current
	m.current = new
	handlers := snapshotStateHandlers(m.curSubs)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(old, new)
	}
}

// FireNextStateChanged updates NextState and notifies subscribers.
func (m *MockCore) FireNextStateChanged(new RFState) {
	m.mu.Lock()
	old := m.next
	m.next = new
	handlers := snapshotStateHandlers(m.nextSubs)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(old, new)
	}
}

// FireIntfActivated delivers an activation notification to subscribers.
func (m *MockCore) FireIntfActivated(ntf *IntfActivationNtf) {
	m.mu.Lock()
	handlers := make([]func(*IntfActivationNtf), 0, len(m.actSubs))
	for _, fn := range m.actSubs {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(ntf)
	}
}

// FireDataPacket delivers a data packet to subscribers.
func (m *MockCore) FireDataPacket(connID byte, data []byte) {
	m.mu.Lock()
	handlers := make([]func(byte, []byte), 0, len(m.dataSubs))
	for _, fn := range m.dataSubs {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(connID, data)
	}
}

func snapshotStateHandlers(m map[int]func(old, new RFState)) []func(old, new RFState) {
	out := make([]func(old, new RFState), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}
