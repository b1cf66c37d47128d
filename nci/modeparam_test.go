package nci

import "testing"

func pollANtf(mode RFMode, rfIntf RFInterface, selRes byte, nfcid1 []byte) *IntfActivationNtf {
	return &IntfActivationNtf{
		RFIntf:   rfIntf,
		Protocol: ProtocolT2T,
		Mode:     mode,
		ModeParam: &ModeParam{
			PollA: &PollA{SensRes: [2]byte{0x44, 0x00}, SelRes: selRes, SelResLen: 8, NFCID1: nfcid1},
		},
	}
}

func TestIntfInfoMatchesT2RandomUID(t *testing.T) {
	orig := pollANtf(ModePassivePollA, RFInterfaceFrame, 0x00, []byte{0x08, 0x11, 0x22, 0x33})
	info := NewIntfInfo(orig)

	changed := pollANtf(ModePassivePollA, RFInterfaceFrame, 0x00, []byte{0x08, 0xAA, 0xBB, 0xCC})
	if !info.Matches(changed) {
		t.Fatalf("expected random-UID tolerant match for two 0x08-prefixed 4-byte NFCID1s")
	}
}

func TestIntfInfoMatchesT2RejectsNonRandomUIDChange(t *testing.T) {
	orig := pollANtf(ModePassivePollA, RFInterfaceFrame, 0x00, []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6})
	info := NewIntfInfo(orig)

	changed := pollANtf(ModePassivePollA, RFInterfaceFrame, 0x00, []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF7})
	if info.Matches(changed) {
		t.Fatalf("non-random 7-byte NFCID1 must match byte-exact")
	}
}

func TestIntfInfoMatchesT4AIgnoresUIDOutright(t *testing.T) {
	orig := &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassivePollA,
		ModeParam: &ModeParam{
			PollA: &PollA{SensRes: [2]byte{0x44, 0x00}, SelRes: 0x20, SelResLen: 8, NFCID1: []byte{0x01, 0x02, 0x03, 0x04}},
		},
	}
	info := NewIntfInfo(orig)

	changed := &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassivePollA,
		ModeParam: &ModeParam{
			PollA: &PollA{SensRes: [2]byte{0x44, 0x00}, SelRes: 0x20, SelResLen: 8, NFCID1: []byte{0xFF, 0xFE, 0xFD, 0xFC}},
		},
	}
	if !info.Matches(changed) {
		t.Fatalf("ISO-DEP T4A match must ignore NFCID1 entirely")
	}
}

func TestIntfInfoMatchesT4BIgnoresNFCID0(t *testing.T) {
	orig := &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassivePollB,
		ModeParam: &ModeParam{
			PollB: &PollB{FSC: 256, NFCID0: []byte{0x01, 0x02, 0x03, 0x04}, AppData: [4]byte{1, 2, 3, 4}, ProtInfo: []byte{0x01}},
		},
	}
	info := NewIntfInfo(orig)

	changed := &IntfActivationNtf{
		RFIntf:   RFInterfaceISODep,
		Protocol: ProtocolISODep,
		Mode:     ModePassivePollB,
		ModeParam: &ModeParam{
			PollB: &PollB{FSC: 256, NFCID0: []byte{0xAA, 0xBB, 0xCC, 0xDD}, AppData: [4]byte{1, 2, 3, 4}, ProtInfo: []byte{0x01}},
		},
	}
	if !info.Matches(changed) {
		t.Fatalf("T4B match must ignore NFCID0")
	}

	changed.ModeParam.PollB.FSC = 128
	if info.Matches(changed) {
		t.Fatalf("T4B match must still compare FSC")
	}
}

func TestIntfInfoMatchesFallsBackToByteExact(t *testing.T) {
	orig := &IntfActivationNtf{
		RFIntf:               RFInterfaceFrame,
		Protocol:             ProtocolT3T,
		Mode:                 ModePassivePollF,
		ModeParamBytes:       []byte{0x01, 0x02, 0x03},
		ActivationParamBytes: nil,
	}
	info := NewIntfInfo(orig)

	same := &IntfActivationNtf{RFIntf: RFInterfaceFrame, Protocol: ProtocolT3T, Mode: ModePassivePollF, ModeParamBytes: []byte{0x01, 0x02, 0x03}}
	if !info.Matches(same) {
		t.Fatalf("byte-exact match expected for identical ModeParamBytes")
	}

	diff := &IntfActivationNtf{RFIntf: RFInterfaceFrame, Protocol: ProtocolT3T, Mode: ModePassivePollF, ModeParamBytes: []byte{0x01, 0x02, 0x04}}
	if info.Matches(diff) {
		t.Fatalf("byte-exact match must reject differing ModeParamBytes")
	}
}
