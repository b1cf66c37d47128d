package nci

import (
	"log"
	"sync"
)

// presenceCheckKind selects which presence-check strategy a Target uses,
// chosen once at construction from the activated protocol. The original
// adapter picks a function pointer; Go expresses the same "strategy fixed
// at construction time" idea with an enum dispatched in a switch.
type presenceCheckKind int

const (
	presenceCheckNone presenceCheckKind = iota
	presenceCheckT2
	presenceCheckT4
)

// framingKind selects how a completed transmit's raw RF payload is
// turned into the bytes handed back to the caller.
type framingKind int

const (
	framingNone framingKind = iota
	framingFrame
	framingISODep
)

// transmitCompletion is invoked once a pending transmit finishes, either
// from Target.Transmit (reported to the Framework) or from
// Target.PresenceCheck (reported only to its caller).
type transmitCompletion func(status TransmitStatus, payload []byte)

// Target represents an activated tag or an NFC-DEP peer reached in
// poll mode. It mediates transmits against the NCI core's single
// static RF connection, matching the request/reply pairing and
// tolerating the send/reply race described in spec.md §4.2.
type Target struct {
	mu sync.Mutex

	// adapter is cleared to nil when the adapter drops this target,
	// standing in for the original's weak pointer: nothing but the
	// event-loop goroutine ever reads or writes it (spec.md §3).
	adapter *Adapter

	Technology  Technology
	Protocol    Protocol
	TagProtocol TagProtocol

	presenceCheck presenceCheckKind
	framing       framingKind
	txTimeout     int // -1: default, 0: no timeout (rely on CORE_INTERFACE_ERROR_NTF)

	sendInProgress     bool
	transmitInProgress bool
	pendingReply       []byte
	onComplete         transmitCompletion
	dataSub            Subscription
}

// newTarget builds a Target from an activation notification, deriving
// technology, protocol, presence-check strategy and framing strategy the
// same way nci_target_new does. It returns nil for listen-side
// activations: spec.md §3 defines Target as poll-side only (the
// corresponding listen-side object is an Initiator), so construction can
// fail here and fall through to newInitiator — unlike the original
// nci_target_new, which never fails and leaves its listen-side branches
// effectively unreachable.
func newTarget(adapter *Adapter, ntf *IntfActivationNtf) *Target {
	t := &Target{adapter: adapter, txTimeout: -1}

	switch ntf.Mode {
	case ModePassivePollA, ModeActivePollA:
		t.Technology = TechnologyA
	case ModePassivePollB:
		t.Technology = TechnologyB
	case ModePassivePollF, ModeActivePollF:
		t.Technology = TechnologyF
	default:
		return nil
	}

	switch ntf.Protocol {
	case ProtocolT1T:
		t.Protocol = ProtocolT1T
		t.TagProtocol = TagProtocolT1
	case ProtocolT2T:
		t.Protocol = ProtocolT2T
		t.TagProtocol = TagProtocolT2
		t.presenceCheck = presenceCheckT2
	case ProtocolT3T:
		t.Protocol = ProtocolT3T
		t.TagProtocol = TagProtocolT3
	case ProtocolISODep:
		t.Protocol = ProtocolISODep
		t.presenceCheck = presenceCheckT4
		switch t.Technology {
		case TechnologyA:
			t.TagProtocol = TagProtocolT4A
		case TechnologyB:
			t.TagProtocol = TagProtocolT4B
		default:
			log.Println("nci: unexpected ISO-DEP technology")
		}
	case ProtocolNFCDep:
		t.Protocol = ProtocolNFCDep
		t.TagProtocol = TagProtocolNFCDep
	default:
		log.Printf("nci: unsupported protocol %d", ntf.Protocol)
	}

	switch ntf.RFIntf {
	case RFInterfaceFrame:
		t.framing = framingFrame
	case RFInterfaceISODep:
		t.txTimeout = 0
		t.framing = framingISODep
	default:
		log.Printf("nci: unsupported RF interface %d", ntf.RFIntf)
	}

	t.dataSub = adapter.core.OnDataPacket(t.handleDataPacket)
	return t
}

// cancelSend aborts a send in progress and drops any reply that was
// waiting for it to complete. Caller must hold t.mu.
func (t *Target) cancelSend() {
	if t.sendInProgress {
		if t.adapter != nil {
			t.adapter.core.Cancel(StaticRFConnID)
		}
		t.sendInProgress = false
		t.pendingReply = nil
	}
}

// dropAdapter releases this target's hold on the adapter, the Go
// equivalent of clearing the weak pointer and unsubscribing.
func (t *Target) dropAdapter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.adapter != nil {
		t.cancelSend()
		if t.dataSub != nil {
			t.dataSub.Cancel()
			t.dataSub = nil
		}
		t.adapter = nil
	}
}

// finishTransmit applies the framing strategy to a completed RF payload
// and invokes the completion registered by Transmit or PresenceCheck.
// Caller must hold t.mu; it is released while the completion runs and
// re-acquired before returning.
func (t *Target) finishTransmit(payload []byte) {
	t.transmitInProgress = false
	cb := t.onComplete
	t.onComplete = nil

	var ok bool
	var result []byte
	switch t.framing {
	case framingFrame:
		ok, result = finishFrame(payload)
	case framingISODep:
		ok, result = finishISODep(payload)
	default:
		ok, result = false, nil
	}

	if cb == nil {
		return
	}
	t.mu.Unlock()
	defer t.mu.Lock()
	if ok {
		cb(TransmitStatusOK, result)
	} else {
		cb(TransmitStatusError, nil)
	}
}

// finishFrame implements the Frame RF Interface's "data from RF to the
// DH" framing: the last byte is a status byte, stripped on success
// (NCI spec §8.2.1.2).
func finishFrame(payload []byte) (bool, []byte) {
	if len(payload) == 0 {
		return false, nil
	}
	status := payload[len(payload)-1]
	if status == StatusOK {
		return true, payload[:len(payload)-1]
	}
	log.Printf("nci: transmission status 0x%02x", status)
	return false, nil
}

// finishISODep implements the ISO-DEP RF Interface's framing: the
// payload is delivered as-is (NCI spec §8.3.1.2).
func finishISODep(payload []byte) (bool, []byte) {
	return true, payload
}

// handleDataPacket is the Core's data-packet callback. It pairs an
// inbound reply with an in-flight transmit, handling the case where the
// reply arrives before the send-completion callback does (spec.md
// §4.2.2): the reply is held in pendingReply until handleSendComplete
// releases it.
func (t *Target) handleDataPacket(connID byte, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if connID == StaticRFConnID && t.transmitInProgress && t.pendingReply == nil {
		if t.sendInProgress {
			log.Println("nci: waiting for send to complete")
			t.pendingReply = append([]byte(nil), data...)
			return
		}
		t.finishTransmit(data)
		return
	}
	log.Printf("nci: unhandled data packet, cid=0x%02x %d byte(s)", connID, len(data))
}

// handleSendComplete is the Core's send-completion callback for a
// transmit's outbound data message.
func (t *Target) handleSendComplete(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sendInProgress = false
	if t.pendingReply != nil {
		log.Println("nci: send completed")
		reply := t.pendingReply
		t.pendingReply = nil
		t.finishTransmit(reply)
	}
}

// transmit is the shared implementation behind Transmit and
// PresenceCheck: it sends data on the static RF connection and arranges
// for cb to run once the reply completes it. CancelTransmit discards cb
// without calling it.
func (t *Target) transmit(data []byte, cb transmitCompletion) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.transmitInProgress {
		return NewTransmitInProgressError("Target.transmit")
	}
	if t.adapter == nil {
		return NewTargetGoneError("Target.transmit")
	}

	if err := t.adapter.core.SendDataMsg(StaticRFConnID, data, t.handleSendComplete); err != nil {
		return NewCoreRejectedError("Target.transmit", err)
	}
	t.sendInProgress = true
	t.transmitInProgress = true
	t.onComplete = cb
	return nil
}

// Transmit sends data to the activated endpoint over the static RF
// connection. Completion is reported to the adapter's Framework via
// TransmitDone. It returns an error if a transmit is already in
// progress or the target has been dropped.
func (t *Target) Transmit(data []byte) error {
	return t.transmit(data, func(status TransmitStatus, payload []byte) {
		t.mu.Lock()
		framework := t.adapterFramework()
		t.mu.Unlock()
		if framework != nil {
			framework.TransmitDone(t, status, payload)
		}
	})
}

func (t *Target) adapterFramework() Framework {
	if t.adapter == nil {
		return nil
	}
	return t.adapter.framework
}

// transmitInFlight reports whether a transmit or presence check is
// currently pending, used by the Adapter's presence-check ticker to skip
// a tick rather than queue a second transmit.
func (t *Target) transmitInFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transmitInProgress
}

// CancelTransmit aborts a Transmit or PresenceCheck in progress, if any.
func (t *Target) CancelTransmit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transmitInProgress = false
	t.onComplete = nil
	t.cancelSend()
}

// Deactivate requests the adapter drop this target.
func (t *Target) Deactivate() {
	t.mu.Lock()
	adapter := t.adapter
	t.mu.Unlock()
	if adapter != nil {
		adapter.DeactivateTarget(t)
	}
}

// Reactivate attempts to resume this target after a brief field dip,
// per spec.md §4.1.1's reactivation rules.
func (t *Target) Reactivate() bool {
	t.mu.Lock()
	adapter := t.adapter
	t.mu.Unlock()
	return adapter != nil && adapter.reactivate(t)
}

// PresenceCheck issues a presence-check transmit using the strategy
// derived from this target's protocol and reports the outcome to done.
// It returns false if this target has no presence-check strategy (e.g.
// an NFC-DEP peer), is no longer attached to an adapter, or a transmit
// is already in progress.
func (t *Target) PresenceCheck(done func(alive bool)) bool {
	t.mu.Lock()
	kind := t.presenceCheck
	t.mu.Unlock()

	if kind == presenceCheckNone {
		return false
	}

	var cmd []byte
	if kind == presenceCheckT2 {
		cmd = T2TCmdRead[:]
	}

	err := t.transmit(cmd, func(status TransmitStatus, _ []byte) {
		done(status == TransmitStatusOK)
	})
	return err == nil
}
