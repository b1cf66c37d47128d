package nci

import (
	"log"
	"sync"
)

// Initiator represents an NFC-DEP peer that activated us in listen mode
// (we are the target of the RF link, but the NFC-DEP-level initiator).
// It is deliberately simpler than Target: no presence check, no framing
// strip, the payload is forwarded to and from the framework verbatim
// (original_source/src/nci_initiator.c).
type Initiator struct {
	mu sync.Mutex

	adapter *Adapter

	Technology Technology

	responseInProgress bool
	dataSub            Subscription

	nextReqSubID int
	reqSubs      map[int]func(data []byte)
}

// newInitiator builds an Initiator from an activation notification,
// returning nil when the activation is not an NFC-DEP listen-mode
// endpoint this adapter supports — mirroring nci_initiator_new, which
// returns NULL for every unsupported (mode, protocol) combination.
func newInitiator(adapter *Adapter, ntf *IntfActivationNtf) *Initiator {
	var tech Technology
	switch ntf.Mode {
	case ModeActiveListenA, ModePassiveListenA:
		tech = TechnologyA
	case ModePassiveListenB:
		tech = TechnologyB
	case ModeActiveListenF, ModePassiveListenF:
		tech = TechnologyF
	default:
		return nil
	}

	switch ntf.Protocol {
	case ProtocolNFCDep:
		// supported
	case ProtocolISODep:
		log.Println("nci: card emulation (ISO-DEP) not supported yet")
		return nil
	default:
		log.Printf("nci: unsupported initiator protocol %d", ntf.Protocol)
		return nil
	}

	i := &Initiator{adapter: adapter, Technology: tech, reqSubs: make(map[int]func(data []byte))}
	i.dataSub = adapter.core.OnDataPacket(i.handleDataPacket)
	return i
}

// OnData subscribes to inbound NFC-DEP requests from this peer. Returned
// data is the request payload verbatim, with no status byte to strip
// (spec.md §4.2.1's framing note is Target-only).
func (i *Initiator) OnData(fn func(data []byte)) Subscription {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextReqSubID
	i.nextReqSubID++
	i.reqSubs[id] = fn
	return &funcSubscription{cancel: func() {
		i.mu.Lock()
		delete(i.reqSubs, id)
		i.mu.Unlock()
	}}
}

// cancelResponse aborts a response in progress. Caller must hold i.mu.
func (i *Initiator) cancelResponse() {
	if i.responseInProgress {
		if i.adapter != nil {
			i.adapter.core.Cancel(StaticRFConnID)
		}
		i.responseInProgress = false
	}
}

// dropAdapter releases this initiator's hold on the adapter.
func (i *Initiator) dropAdapter() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.adapter != nil {
		i.cancelResponse()
		if i.dataSub != nil {
			i.dataSub.Cancel()
			i.dataSub = nil
		}
		i.adapter = nil
	}
}

// handleDataPacket forwards an inbound NFC-DEP request to OnData
// subscribers unmodified — peer-to-peer frames carry no Frame/ISO-DEP
// status byte (nci_initiator_data_packet_handler calls
// nfc_initiator_transmit verbatim).
func (i *Initiator) handleDataPacket(connID byte, data []byte) {
	if connID != StaticRFConnID {
		log.Printf("nci: unhandled data packet, cid=0x%02x %d byte(s)", connID, len(data))
		return
	}

	i.mu.Lock()
	handlers := make([]func([]byte), 0, len(i.reqSubs))
	for _, fn := range i.reqSubs {
		handlers = append(handlers, fn)
	}
	i.mu.Unlock()

	for _, fn := range handlers {
		fn(data)
	}
}

// handleResponseSent is the Core's send-completion callback for a
// Respond call.
func (i *Initiator) handleResponseSent(success bool) {
	i.mu.Lock()
	i.responseInProgress = false
	framework := i.adapterFramework()
	i.mu.Unlock()

	if framework == nil {
		return
	}
	if success {
		framework.ResponseSent(i, TransmitStatusOK)
	} else {
		framework.ResponseSent(i, TransmitStatusError)
	}
}

func (i *Initiator) adapterFramework() Framework {
	if i.adapter == nil {
		return nil
	}
	return i.adapter.framework
}

// Respond sends data back to the peer over the static RF connection.
func (i *Initiator) Respond(data []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.responseInProgress {
		return NewTransmitInProgressError("Initiator.Respond")
	}
	if i.adapter == nil {
		return NewInitiatorGoneError("Initiator.Respond")
	}

	if err := i.adapter.core.SendDataMsg(StaticRFConnID, data, i.handleResponseSent); err != nil {
		return NewCoreRejectedError("Initiator.Respond", err)
	}
	i.responseInProgress = true
	return nil
}

// Deactivate requests the adapter drop this initiator.
func (i *Initiator) Deactivate() {
	i.mu.Lock()
	adapter := i.adapter
	i.mu.Unlock()
	if adapter != nil {
		adapter.DeactivateInitiator(i)
	}
}
