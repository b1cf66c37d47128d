package nci

import (
	"testing"
	"time"
)

func newTestAdapter() (*Adapter, *MockCore, *MockFramework) {
	core := NewMockCore()
	fw := NewMockFramework()
	a := NewAdapter(core, fw, NewFakeClock(time.Unix(0, 0)))
	return a, core, fw
}

func t2Ntf() *IntfActivationNtf {
	return &IntfActivationNtf{
		RFIntf:   RFInterfaceFrame,
		Protocol: ProtocolT2T,
		Mode:     ModePassivePollA,
		ModeParam: &ModeParam{
			PollA: &PollA{SensRes: [2]byte{0x44, 0x00}, SelRes: 0x00, SelResLen: 8, NFCID1: []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6}},
		},
		ModeParamBytes: []byte{0x44, 0x00, 0x00, 0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6},
	}
}

func TestTargetTransmitReplyArrivesAfterSendCompletes(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(t2Ntf())
	if fw.Count("AddTagT2") != 1 {
		t.Fatalf("expected one AddTagT2 call, got %d", fw.Count("AddTagT2"))
	}
	target := fw.Last().Target

	if err := target.Transmit([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	core.CompleteSend(true)
	core.FireDataPacket(StaticRFConnID, []byte{0xAA, 0xBB, StatusOK})

	done := fw.Last()
	if done.Kind != "TransmitDone" || done.Status != TransmitStatusOK {
		t.Fatalf("expected successful TransmitDone, got %+v", done)
	}
	if string(done.Data) != "\xaa\xbb" {
		t.Fatalf("expected status byte stripped, got %x", done.Data)
	}
}

func TestTargetTransmitReplyArrivesBeforeSendCompletes(t *testing.T) {
	a, core, fw := newTestAdapter()
	core.FireIntfActivated(t2Ntf())
	target := fw.Last().Target
	_ = a

	if err := target.Transmit([]byte{0x01}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	// Reply beats the send-completion callback.
	core.FireDataPacket(StaticRFConnID, []byte{0xCC, StatusOK})
	if fw.Last().Kind == "TransmitDone" {
		t.Fatalf("TransmitDone must wait for the send to complete")
	}
	core.CompleteSend(true)

	done := fw.Last()
	if done.Kind != "TransmitDone" || done.Status != TransmitStatusOK || string(done.Data) != "\xcc" {
		t.Fatalf("unexpected TransmitDone after buffered reply released: %+v", done)
	}
}

func TestTargetTransmitInProgressRejectsSecondCall(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(t2Ntf())
	target := fw.Last().Target

	if err := target.Transmit([]byte{0x01}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	err := target.Transmit([]byte{0x02})
	if code, ok := CodeOf(err); !ok || code != ErrCodeTransmitInProgress {
		t.Fatalf("expected ErrCodeTransmitInProgress, got %v", err)
	}
}

func TestTargetPresenceCheckUsesT2Read(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(t2Ntf())
	target := fw.Last().Target

	var alive bool
	if !target.PresenceCheck(func(ok bool) { alive = ok }) {
		t.Fatalf("expected PresenceCheck to start")
	}
	if len(core.SentData) != 1 || string(core.SentData[0].Data) != string(T2TCmdRead[:]) {
		t.Fatalf("expected T2T read command, got %+v", core.SentData)
	}
	core.CompleteSend(true)
	core.FireDataPacket(StaticRFConnID, []byte{0, 0, 0, 0, StatusOK})
	if !alive {
		t.Fatalf("expected presence check to report alive on StatusOK")
	}
}

func TestTargetGoneRejectsTransmit(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(t2Ntf())
	target := fw.Last().Target

	target.Deactivate()
	if fw.Count("TargetGone") != 1 {
		t.Fatalf("expected TargetGone notification")
	}
	if err := target.Transmit([]byte{0x01}); err == nil {
		t.Fatalf("expected error transmitting to a dropped target")
	} else if code, ok := CodeOf(err); !ok || code != ErrCodeTargetGone {
		t.Fatalf("expected ErrCodeTargetGone, got %v", err)
	}
}
