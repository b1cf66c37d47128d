package nci

import (
	"context"
	"testing"
	"time"
)

func t4aNtf() *IntfActivationNtf {
	return &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassivePollA,
		ModeParam: &ModeParam{
			PollA: &PollA{SensRes: [2]byte{0x04, 0x00}, SelRes: 0x20, SelResLen: 8, NFCID1: []byte{0x01, 0x02, 0x03, 0x04}},
		},
		ActivationParam: &ActivationParam{
			IsoDepPollA: &IsoDepPollA{FSC: 256, T0: 0x78, TA: 0x33, TB: 0x00, TC: 0x02},
		},
	}
}

func t4bNtf(nfcid0 []byte) *IntfActivationNtf {
	return &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassivePollB,
		ModeParam: &ModeParam{
			PollB: &PollB{FSC: 256, NFCID0: nfcid0, AppData: [4]byte{1, 2, 3, 4}, ProtInfo: []byte{0x01}},
		},
		ActivationParam: &ActivationParam{
			IsoDepPollB: &IsoDepPollB{MBLI: 1, DID: 0},
		},
	}
}

func TestAdapterT2Activation(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(t2Ntf())

	if fw.Count("AddTagT2") != 1 {
		t.Fatalf("expected AddTagT2, got %+v", fw.Events)
	}
	target := fw.Last().Target
	if target.TagProtocol != TagProtocolT2 {
		t.Fatalf("expected TagProtocolT2, got %v", target.TagProtocol)
	}
	_ = core
}

func TestAdapterT4AActivationWithATS(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(t4aNtf())

	if fw.Count("AddTagT4A") != 1 {
		t.Fatalf("expected AddTagT4A, got %+v", fw.Events)
	}
}

func TestAdapterReactivationSameT4B(t *testing.T) {
	a, core, fw := newTestAdapter()
	core.FireIntfActivated(t4bNtf([]byte{0x01, 0x02, 0x03, 0x04}))
	if fw.Count("AddTagT4B") != 1 {
		t.Fatalf("expected initial AddTagT4B, got %+v", fw.Events)
	}
	target := fw.Last().Target

	// Bring the core into an active state so Reactivate's guard passes.
	core.FireCurrentStateChanged(RFStatePollActive)
	core.FireNextStateChanged(RFStatePollActive)

	if !target.Reactivate() {
		t.Fatalf("expected Reactivate to succeed while poll-active")
	}
	if !a.reactivating {
		t.Fatalf("expected adapter to record reactivating=true")
	}

	// Field dip: next state heads to discovery, target must survive.
	core.FireNextStateChanged(RFStateDiscovery)
	if a.target != target {
		t.Fatalf("target must survive a reactivating discovery transition")
	}

	core.FireIntfActivated(t4bNtf([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	if fw.Count("AddTagT4B") != 1 {
		t.Fatalf("must not re-announce as a new tag, got %+v", fw.Events)
	}
	if fw.Count("TargetReactivated") != 1 {
		t.Fatalf("expected exactly one TargetReactivated, got %+v", fw.Events)
	}
	if fw.Last().Kind != "TargetReactivated" || fw.Last().Target != target {
		t.Fatalf("expected TargetReactivated(target), got %+v", fw.Last())
	}
}

func TestAdapterUnknownActivationReturnsToIdle(t *testing.T) {
	_, core, fw := newTestAdapter()
	ntf := &IntfActivationNtf{RFIntf: RFInterfaceProprietary, Protocol: ProtocolProprietary, Mode: ModePassivePoll15693}
	core.FireIntfActivated(ntf)

	if fw.Count("AddTagT2") != 0 || fw.Count("AddOtherTag") != 0 {
		t.Fatalf("unknown activation must not register a tag")
	}
	found := false
	for _, c := range core.CallLog {
		if c == "SetState(0)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SetState(RFStateIdle) on unrecognized activation, log=%v", core.CallLog)
	}
}

func TestAdapterPresenceLossDeactivatesTarget(t *testing.T) {
	a, core, fw := newTestAdapter()
	fc := NewFakeClock(time.Unix(0, 0))
	a.clock = fc
	core.FireIntfActivated(t2Ntf())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	fc.Advance(PresenceCheckPeriod)
	// Let the goroutine observe the tick and start a presence check.
	time.Sleep(10 * time.Millisecond)
	core.CompleteSend(true)
	core.FireDataPacket(StaticRFConnID, []byte{0xFF}) // status != 0x00: failure

	deadline := time.After(time.Second)
	for fw.Count("TargetGone") == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected TargetGone after failed presence check")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestAdapterSubmitModeRequestTranslatesOpMode(t *testing.T) {
	a, core, _ := newTestAdapter()
	if err := a.SubmitModeRequest(ModeReaderWriter); err != nil {
		t.Fatalf("SubmitModeRequest: %v", err)
	}
	if core.LastOpMode != OpModeRW|OpModePoll {
		t.Fatalf("expected RW|POLL, got %v", core.LastOpMode)
	}
}
