package nci

// Framework receives upward notifications from the Adapter: new tags
// and peers, their loss, reactivation, and completed data transfers. All
// calls happen on the adapter's event-loop goroutine (spec.md §5); a
// Framework implementation must not block.
type Framework interface {
	// ModeNotify reports mode as the adapter's current mode. confirmed is
	// true when mode is the solicited result of a pending
	// SubmitModeRequest reaching its target, and false
	// when mode is an unsolicited drift away from a mode nobody asked to
	// leave (e.g. the RF state dropping out from under a satisfied
	// request).
	ModeNotify(mode Mode, confirmed bool)

	// AddTagT2 announces a newly activated Type 2 Tag.
	AddTagT2(t *Target)
	// AddTagT4A announces a newly activated ISO-DEP Type 4A tag.
	AddTagT4A(t *Target)
	// AddTagT4B announces a newly activated ISO-DEP Type 4B tag.
	AddTagT4B(t *Target)
	// AddOtherTag announces an activated tag this adapter does not
	// classify further (T1T/T3T/proprietary protocols, spec.md §4.1.1).
	AddOtherTag(t *Target)

	// AddPeerInitiatorA announces a new NFC-DEP peer reached in Poll-A
	// mode: we are the NFC-DEP initiator, the RF-level object we talk to
	// it through is a Target (request/reply, same as a tag).
	AddPeerInitiatorA(t *Target)
	// AddPeerInitiatorF announces a new NFC-DEP peer reached in Poll-F
	// mode.
	AddPeerInitiatorF(t *Target)
	// AddPeerTargetA announces a new NFC-DEP peer that activated us in
	// Listen-A mode: we are the NFC-DEP target, the RF-level object is an
	// Initiator (it sends requests, we respond).
	AddPeerTargetA(i *Initiator)
	// AddPeerTargetF announces a new NFC-DEP peer that activated us in
	// Listen-F mode.
	AddPeerTargetF(i *Initiator)

	// TargetGone reports that t was deactivated and will not be
	// reactivated.
	TargetGone(t *Target)
	// TargetReactivated reports that t came back after Target.Reactivate
	// and its new activation matched the recorded one, so it should be
	// treated as the same logical tag. No TargetGone precedes it.
	TargetReactivated(t *Target)
	// InitiatorGone reports that i was deactivated.
	InitiatorGone(i *Initiator)

	// TransmitDone reports the outcome of a Target.Transmit call.
	TransmitDone(t *Target, status TransmitStatus, data []byte)
	// ResponseSent reports the outcome of an Initiator.Respond call.
	ResponseSent(i *Initiator, status TransmitStatus)
}
