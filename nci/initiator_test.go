package nci

import "testing"

func nfcDepListenNtf() *IntfActivationNtf {
	return &IntfActivationNtf{
		RFIntf:          RFInterfaceNFCDep,
		Protocol:        ProtocolNFCDep,
		Mode:            ModePassiveListenA,
		ActivationParam: &ActivationParam{NfcDepListen: &NfcDepTarget{ATRReqG: []byte{0x01}}},
	}
}

func TestInitiatorAddedAsPeerTargetA(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(nfcDepListenNtf())

	if fw.Count("AddPeerTargetA") != 1 {
		t.Fatalf("expected AddPeerTargetA, got events %+v", fw.Events)
	}
}

func TestInitiatorOnDataForwardsRequestVerbatim(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(nfcDepListenNtf())
	init := fw.Last().Init

	var received []byte
	init.OnData(func(data []byte) { received = data })
	core.FireDataPacket(StaticRFConnID, []byte{0x01, 0x02, 0x03})

	if string(received) != "\x01\x02\x03" {
		t.Fatalf("expected verbatim forward, got %x", received)
	}
}

func TestInitiatorRespond(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(nfcDepListenNtf())
	init := fw.Last().Init

	if err := init.Respond([]byte{0xAA}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	core.CompleteSend(true)

	done := fw.Last()
	if done.Kind != "ResponseSent" || done.Status != TransmitStatusOK {
		t.Fatalf("expected ResponseSent OK, got %+v", done)
	}
}

func TestInitiatorRespondInProgressRejectsSecondCall(t *testing.T) {
	_, core, fw := newTestAdapter()
	core.FireIntfActivated(nfcDepListenNtf())
	init := fw.Last().Init

	if err := init.Respond([]byte{0x01}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	err := init.Respond([]byte{0x02})
	if code, ok := CodeOf(err); !ok || code != ErrCodeTransmitInProgress {
		t.Fatalf("expected ErrCodeTransmitInProgress, got %v", err)
	}
}

func TestNewInitiatorRejectsCardEmulation(t *testing.T) {
	a, _, _ := newTestAdapter()
	ntf := &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassiveListenA,
	}
	if got := newInitiator(a, ntf); got != nil {
		t.Fatalf("expected nil initiator for unsupported card-emulation listen activation")
	}
}
