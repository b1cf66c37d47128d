// Package nci implements the mid-layer between a generic NFC framework and
// an NCI (NFC Controller Interface) core state machine: it turns activation
// notifications and RF state transitions into tag/peer/initiator lifecycle
// events, and mediates data transfer over the static RF connection.
package nci

import "time"

// Mode is the high-level operating mode requested by the framework.
type Mode int

// ModeNone requests no mode at all.
const ModeNone Mode = 0

const (
	// ModeReaderWriter polls for tags and acts as a reader/writer.
	ModeReaderWriter Mode = 1 << iota
	// ModeP2PInitiator polls for NFC-DEP peers (poll side).
	ModeP2PInitiator
	// ModeP2PTarget listens for NFC-DEP peers (listen side).
	ModeP2PTarget
	// ModeCardEmulation listens as a card emulator. Not implemented by this
	// adapter (see Non-goals) but kept as a bit for SubmitModeRequest's
	// translation table, matching the original source.
	ModeCardEmulation
)

// OpMode is the NCI-level operating-mode bitmask pushed to the Core.
type OpMode int

const OpModeNone OpMode = 0

const (
	OpModeRW OpMode = 1 << iota
	OpModePeer
	OpModeCE
	OpModePoll
	OpModeListen
)

// RFState mirrors the NCI RF interface state machine (NCI spec table 101).
type RFState int

const (
	RFStateIdle RFState = iota
	RFStateDiscovery
	RFStateW4AllDiscoveries
	RFStateW4HostSelect
	RFStatePollActive
	RFStateListenActive
	RFStateListenSleep
)

// Technology is the RF technology family of an activated endpoint.
type Technology int

const (
	TechnologyUnknown Technology = iota
	TechnologyA
	TechnologyB
	TechnologyF
)

// Protocol is the tag/peer protocol identifier (NCI spec table 97).
type Protocol int

const (
	ProtocolUndetermined Protocol = iota
	ProtocolT1T
	ProtocolT2T
	ProtocolT3T
	ProtocolISODep
	ProtocolNFCDep
	ProtocolProprietary
)

// TagProtocol is the framework-facing protocol classification of a Target.
type TagProtocol int

const (
	TagProtocolUnknown TagProtocol = iota
	TagProtocolT1
	TagProtocolT2
	TagProtocolT3
	TagProtocolT4A
	TagProtocolT4B
	TagProtocolNFCDep
)

// RFInterface is the NCI-level data-framing interface (NCI spec §8).
type RFInterface int

const (
	RFInterfaceNFCEEDirect RFInterface = iota
	RFInterfaceFrame
	RFInterfaceISODep
	RFInterfaceNFCDep
	RFInterfaceProprietary
)

// RFMode is the technology + direction combination reported in an
// activation notification (NCI spec table 96).
type RFMode int

const (
	ModePassivePollA RFMode = iota
	ModeActivePollA
	ModePassivePollB
	ModePassivePollF
	ModeActivePollF
	ModePassivePoll15693
	ModePassiveListenA
	ModeActiveListenA
	ModePassiveListenB
	ModePassiveListenF
	ModeActiveListenF
	ModePassiveListen15693
)

// TransmitStatus is the result of a completed transmit/response.
type TransmitStatus int

const (
	TransmitStatusOK TransmitStatus = iota
	TransmitStatusError
)

// NCI status byte values (NCI spec table 103). Only the values this
// adapter cares about are named.
const (
	StatusOK byte = 0x00
)

// Wire constants named in spec.md §6.
const (
	// PresenceCheckPeriod is the interval of the repeating presence-check
	// timer armed while a Target using a non-NFC-DEP protocol is active.
	PresenceCheckPeriod = 250 * time.Millisecond

	// RandomUIDSize and RandomUIDStartByte describe the AN10927 randomized
	// NFCID1 convention: a 4-byte UID starting with 0x08 may legitimately
	// change between activations of the same physical tag.
	RandomUIDSize      = 4
	RandomUIDStartByte = 0x08
)

// T2TCmdRead is the 2-byte Type-2 Tag READ command used for presence
// checks: READ block 0x00.
var T2TCmdRead = [2]byte{0x30, 0x00}

// StaticRFConnID is the fixed logical NCI connection id used for RF data
// exchange with the currently activated endpoint.
const StaticRFConnID byte = 0x00
