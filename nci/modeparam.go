package nci

import "bytes"

// PollA is the mode-parameter payload for Passive/Active Poll-A
// activations (NCI spec table 54).
type PollA struct {
	SensRes [2]byte
	SelRes  byte
	SelResLen int // number of valid bits in SelRes's cascade byte, as reported by the core
	NFCID1  []byte
}

// PollB is the mode-parameter payload for Passive Poll-B activations
// (NCI spec table 56).
type PollB struct {
	FSC      int
	NFCID0   []byte
	AppData  [4]byte
	ProtInfo []byte
}

// PollF is the mode-parameter payload for Poll-F activations.
type PollF struct {
	BitRate int // 212 or 424; 0 if reserved-for-future-use
	NFCID2  []byte
}

// ListenF is the mode-parameter payload for Listen-F activations.
type ListenF struct {
	NFCID2 []byte
}

// ModeParam is the parsed mode-parameter union. Exactly one field is set,
// selected by the activation's RFMode, mirroring the original's tagged
// union (NciModeParam).
type ModeParam struct {
	PollA   *PollA
	PollB   *PollB
	PollF   *PollF
	ListenF *ListenF
}

// IsoDepPollA is the activation-parameter payload for ISO-DEP Type-4A
// (ATS-derived fields, NCI spec table 78).
type IsoDepPollA struct {
	FSC int
	T0  byte
	TA  byte
	TB  byte
	TC  byte
	T1  []byte
}

// IsoDepPollB is the activation-parameter payload for ISO-DEP Type-4B.
type IsoDepPollB struct {
	MBLI int
	DID  int
	HLR  []byte
}

// NfcDepInitiator is the activation-parameter payload for NFC-DEP poll
// side (ATR_RES general bytes).
type NfcDepInitiator struct {
	ATRResG []byte
}

// NfcDepTarget is the activation-parameter payload for NFC-DEP listen
// side (ATR_REQ general bytes).
type NfcDepTarget struct {
	ATRReqG []byte
}

// ActivationParam is the parsed activation-parameter union.
type ActivationParam struct {
	IsoDepPollA *IsoDepPollA
	IsoDepPollB *IsoDepPollB
	NfcDepPoll  *NfcDepInitiator
	NfcDepListen *NfcDepTarget
}

// IntfActivationNtf is the NCI core's interface-activation notification,
// consumed by the Adapter as described in spec.md §6.
type IntfActivationNtf struct {
	RFIntf   RFInterface
	Protocol Protocol
	Mode     RFMode

	ModeParam     *ModeParam
	ModeParamBytes []byte

	ActivationParam      *ActivationParam
	ActivationParamBytes []byte
}

// IntfInfo is the captured snapshot of an IntfActivationNtf, retained by
// the Adapter to recognize "the same tag" across a reactivation sequence
// (spec.md §3, §4.1.1).
type IntfInfo struct {
	RFIntf   RFInterface
	Protocol Protocol
	Mode     RFMode

	ModeParam      *ModeParam
	ModeParamBytes []byte

	ActivationParamBytes []byte
}

// NewIntfInfo captures a reactivation snapshot from an activation
// notification.
func NewIntfInfo(ntf *IntfActivationNtf) *IntfInfo {
	if ntf == nil {
		return nil
	}
	return &IntfInfo{
		RFIntf:               ntf.RFIntf,
		Protocol:             ntf.Protocol,
		Mode:                 ntf.Mode,
		ModeParam:            ntf.ModeParam,
		ModeParamBytes:       ntf.ModeParamBytes,
		ActivationParamBytes: ntf.ActivationParamBytes,
	}
}

// Matches reports whether ntf describes the same endpoint info describes,
// per the protocol-aware criteria in spec.md §4.1.1. It is grounded on
// nci_adapter_intf_info_matches in the original source.
func (info *IntfInfo) Matches(ntf *IntfActivationNtf) bool {
	if info == nil || ntf == nil {
		return false
	}
	if info.RFIntf != ntf.RFIntf || info.Protocol != ntf.Protocol || info.Mode != ntf.Mode {
		return false
	}
	if !modeParamsMatch(info, ntf) {
		return false
	}
	return bytes.Equal(info.ActivationParamBytes, ntf.ActivationParamBytes)
}

func modeParamsMatch(info *IntfInfo, ntf *IntfActivationNtf) bool {
	mp1 := info.ModeParam
	mp2 := ntf.ModeParam

	if mp1 != nil && mp2 != nil {
		switch ntf.Mode {
		case ModePassivePollA:
			switch ntf.RFIntf {
			case RFInterfaceFrame:
				// Type 2 Tag: random-UID tolerant.
				if mp1.PollA != nil && mp2.PollA != nil {
					return matchPollAT2(mp1.PollA, mp2.PollA)
				}
			case RFInterfaceISODep:
				// ISO-DEP Type 4A: UID ignored outright.
				if mp1.PollA != nil && mp2.PollA != nil {
					return matchPollA(mp1.PollA, mp2.PollA)
				}
			}
		case ModePassivePollB:
			if ntf.RFIntf == RFInterfaceISODep && mp1.PollB != nil && mp2.PollB != nil {
				return matchPollB(mp1.PollB, mp2.PollB)
			}
		}
	}
	// Full byte-exact match is expected in every other combination.
	return bytes.Equal(info.ModeParamBytes, ntf.ModeParamBytes)
}

// matchPollA compares everything but the UID, since the UID may change
// after the tag loses and regains the field.
func matchPollA(a, b *PollA) bool {
	return a.SelRes == b.SelRes &&
		a.SelResLen == b.SelResLen &&
		a.SensRes == b.SensRes
}

// matchPollAT2 applies the AN10927 random-UID tolerance: a 4-byte NFCID1
// starting with 0x08 on both sides is ignored; otherwise the UID must
// match fully.
func matchPollAT2(a, b *PollA) bool {
	if !matchPollA(a, b) {
		return false
	}
	if len(a.NFCID1) == RandomUIDSize && len(b.NFCID1) == RandomUIDSize &&
		a.NFCID1[0] == RandomUIDStartByte && b.NFCID1[0] == RandomUIDStartByte {
		return true
	}
	return bytes.Equal(a.NFCID1, b.NFCID1)
}

// matchPollB compares FSC, application data and protocol-info bytes; the
// NFCID0 is ignored for the same reason as Poll-A's UID.
func matchPollB(a, b *PollB) bool {
	return a.FSC == b.FSC &&
		a.AppData == b.AppData &&
		bytes.Equal(a.ProtInfo, b.ProtInfo)
}
