package nci

import (
	"context"
	"log"
	"sync"
)

// supportedModes, supportedTagTypes and supportedProtocols describe this
// adapter's fixed capability set (nci_adapter_init): reader/writer plus
// both NFC-DEP peer roles, Mifare Ultralight-class tags, and the four
// protocols Target/Initiator know how to classify.
const (
	supportedModes     = ModeReaderWriter | ModeP2PInitiator | ModeP2PTarget
	supportedTagTypes  = TagProtocolT2
	supportedProtocols = ProtocolT2T | ProtocolISODep | ProtocolNFCDep
)

// Adapter is the mid-layer described in spec.md §1: it drives an NCI Core
// and turns its state/activation notifications into Target/Initiator
// lifecycle events delivered to a Framework. All of its methods except
// the constructor are expected to run on the single goroutine that calls
// Run (spec.md §5); Submit/CancelModeRequest and the Deactivate* methods
// are the only ones meant to be called from outside that loop, and even
// those must still be serialized by the caller.
type Adapter struct {
	mu sync.Mutex

	core      Core
	framework Framework
	clock     Clock

	target    *Target
	initiator *Initiator
	activeIntf *IntfInfo
	reactivating bool

	desiredMode       Mode
	currentMode       Mode
	modeChangePending bool
	modeCheckTimer    Timer

	presenceCheckTicker   Ticker
	presenceCheckInFlight bool

	powered bool
	enabled bool

	curSub Subscription
	nextSub Subscription
	actSub Subscription

	// wake is nudged whenever the presence-check ticker is armed or
	// disarmed, so Run's select re-reads it instead of blocking forever
	// on a ticker that no longer exists (or missing one that now does).
	wake chan struct{}
}

// NewAdapter wires an Adapter to core and framework, subscribing to the
// state/activation notifications it needs. It mirrors nci_adapter_init_base.
func NewAdapter(core Core, framework Framework, clock Clock) *Adapter {
	a := &Adapter{
		core:      core,
		framework: framework,
		clock:     clock,
		enabled:   true,
		wake:      make(chan struct{}, 1),
	}
	a.curSub = core.OnCurrentStateChanged(a.onCurrentStateChanged)
	a.nextSub = core.OnNextStateChanged(a.onNextStateChanged)
	a.actSub = core.OnIntfActivated(a.onIntfActivated)
	return a
}

// SupportedModes reports the modes this adapter is capable of servicing.
func (a *Adapter) SupportedModes() Mode { return supportedModes }

// SupportedTagTypes reports the tag classifications this adapter can
// recognize.
func (a *Adapter) SupportedTagTypes() TagProtocol { return supportedTagTypes }

// SupportedProtocols reports the wire protocols this adapter classifies.
func (a *Adapter) SupportedProtocols() Protocol { return supportedProtocols }

// SetPowered updates the adapter's power state, re-running the state
// check the same way a real power-state transition would (nci_adapter's
// parent.powered field is read directly by state_check/deactivate).
func (a *Adapter) SetPowered(powered bool) {
	a.mu.Lock()
	a.powered = powered
	a.mu.Unlock()
	a.stateCheck()
}

// SetEnabled updates the adapter's enabled state.
func (a *Adapter) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	a.stateCheck()
}

// Run drives the adapter's presence-check ticker until ctx is canceled.
// Presence-check ticks are handled on this goroutine; Core callbacks
// (subscribed in NewAdapter) are not dispatched through Run and execute on
// whichever goroutine the Core invokes them from. It re-reads the ticker on every loop
// because armPresenceCheck/dropTarget arm and disarm it as targets come
// and go; nudgeWake wakes a blocked Run as soon as that happens instead
// of leaving it parked on a ticker that no longer exists.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		a.mu.Lock()
		ticker := a.presenceCheckTicker
		a.mu.Unlock()

		if ticker == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-a.wake:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.wake:
		case <-ticker.C():
			a.presenceCheckTick()
		}
	}
}

// nudgeWake wakes a Run call blocked waiting for the presence-check
// ticker to change state. Non-blocking: a pending nudge is enough.
func (a *Adapter) nudgeWake() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// dropTarget releases the current target, if any, and tears down its
// presence-check timer (nci_adapter_drop_target).
func (a *Adapter) dropTarget() {
	t := a.target
	if t == nil {
		return
	}
	a.target = nil
	a.reactivating = false
	a.activeIntf = nil
	if a.presenceCheckTicker != nil {
		a.presenceCheckTicker.Stop()
		a.presenceCheckTicker = nil
		a.nudgeWake()
	}
	a.presenceCheckInFlight = false

	log.Println("nci: target is gone")
	framework := a.framework
	a.mu.Unlock()
	t.dropAdapter()
	if framework != nil {
		framework.TargetGone(t)
	}
	a.mu.Lock()
}

// dropInitiator releases the current initiator, if any
// (nci_adapter_drop_initiator).
func (a *Adapter) dropInitiator() {
	i := a.initiator
	if i == nil {
		return
	}
	a.initiator = nil

	log.Println("nci: initiator is gone")
	framework := a.framework
	a.mu.Unlock()
	i.dropAdapter()
	if framework != nil {
		framework.InitiatorGone(i)
	}
	a.mu.Lock()
}

// dropAll drops both the target and the initiator (nci_adapter_drop_all).
func (a *Adapter) dropAll() {
	a.dropTarget()
	a.dropInitiator()
}

// needPresenceChecks reports whether the currently active endpoint needs
// polling to detect loss: NFC-DEP peers are supervised at the LLCP level,
// everything else (tags) needs this adapter's own presence checks
// (nci_adapter_need_presence_checks).
func (a *Adapter) needPresenceChecks() bool {
	return a.activeIntf != nil && a.activeIntf.Protocol != ProtocolNFCDep
}

// armPresenceCheck starts (or restarts) the periodic presence-check timer.
// Caller must hold a.mu.
func (a *Adapter) armPresenceCheck() {
	if a.presenceCheckTicker != nil {
		a.presenceCheckTicker.Stop()
	}
	a.presenceCheckTicker = a.clock.NewTicker(PresenceCheckPeriod)
	a.nudgeWake()
}

// presenceCheckTick is the ticker handler (nci_adapter_presence_check_timer):
// skip a tick if a check or a transmit is already in flight, else start
// one; if starting fails, stop the timer and fall back to DISCOVERY.
func (a *Adapter) presenceCheckTick() {
	a.mu.Lock()
	t := a.target
	if t == nil {
		a.mu.Unlock()
		return
	}
	if a.presenceCheckInFlight || t.transmitInFlight() {
		a.mu.Unlock()
		log.Println("nci: skipped presence check")
		return
	}
	a.presenceCheckInFlight = true
	a.mu.Unlock()

	started := t.PresenceCheck(func(alive bool) {
		a.presenceCheckDone(t, alive)
	})
	if !started {
		a.mu.Lock()
		a.presenceCheckInFlight = false
		if a.presenceCheckTicker != nil {
			a.presenceCheckTicker.Stop()
			a.presenceCheckTicker = nil
		}
		core := a.core
		a.mu.Unlock()
		core.SetState(RFStateDiscovery)
	}
}

// presenceCheckDone is the completion callback for a presence-check
// transmit (nci_adapter_presence_check_done).
func (a *Adapter) presenceCheckDone(t *Target, alive bool) {
	a.mu.Lock()
	a.presenceCheckInFlight = false
	a.mu.Unlock()
	if !alive {
		a.DeactivateTarget(t)
	}
}

// modeCheck recomputes the effective operating mode from the current NCI
// state and notifies the Framework on change, matching
// nci_adapter_mode_check.
func (a *Adapter) modeCheck() {
	a.mu.Lock()
	a.modeCheckTimer = nil

	state := RFStateIdle
	if a.core != nil {
		state = a.core.CurrentState()
	}

	mode := ModeNone
	if state > RFStateIdle {
		if a.currentMode == ModeNone {
			mode = a.desiredMode
		} else {
			mode = a.currentMode
		}
	}

	var (
		framework Framework
		notify    bool
		confirmed bool
	)
	if a.modeChangePending {
		if mode == a.desiredMode {
			a.modeChangePending = false
			a.currentMode = mode
			framework = a.framework
			notify = true
			confirmed = true
		}
		// else: request still outstanding, stay pending and leave
		// currentMode untouched.
	} else if a.currentMode != mode {
		a.currentMode = mode
		framework = a.framework
		notify = true
	}
	supported := a.currentMode
	a.mu.Unlock()

	if notify && framework != nil {
		framework.ModeNotify(supported, confirmed)
	}
}

// scheduleModeCheck debounces modeCheck onto the next loop iteration via
// a zero-delay one-shot timer, mirroring nci_adapter_schedule_mode_check's
// use of g_idle_add: a mode check is never run synchronously from inside
// an NCI callback.
func (a *Adapter) scheduleModeCheck() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.modeCheckTimer != nil {
		return
	}
	a.modeCheckTimer = a.clock.AfterFunc(0, a.modeCheck)
}

// stateCheck kicks the core back into discovery if it is sitting idle
// while we are powered and enabled (nci_adapter_state_check).
func (a *Adapter) stateCheck() {
	a.mu.Lock()
	core := a.core
	ready := a.powered && a.enabled
	cur := core.CurrentState()
	next := core.NextState()
	a.mu.Unlock()

	if cur == RFStateIdle && next == RFStateIdle && ready {
		core.SetState(RFStateDiscovery)
	}
}

// onCurrentStateChanged is the Core's current-state trampoline
// (nci_adapter_current_state_changed).
func (a *Adapter) onCurrentStateChanged(old, new RFState) {
	a.stateCheck()
	a.scheduleModeCheck()
}

// onNextStateChanged is the Core's next-state trampoline
// (nci_adapter_next_state_changed): heading to poll-active keeps
// everything; heading to a discovery state keeps everything only while a
// reactivation is underway and otherwise drops the target and initiator;
// any other next state drops them.
func (a *Adapter) onNextStateChanged(old, new RFState) {
	switch new {
	case RFStatePollActive:
		// no-op: about to (re)activate.
	case RFStateDiscovery, RFStateW4AllDiscoveries, RFStateW4HostSelect:
		a.mu.Lock()
		reactivating := a.reactivating
		a.mu.Unlock()
		if !reactivating {
			a.mu.Lock()
			a.dropAll()
			a.mu.Unlock()
		}
	default:
		a.mu.Lock()
		a.dropAll()
		a.mu.Unlock()
	}
	a.stateCheck()
	a.scheduleModeCheck()
}

// onIntfActivated is the central activation handler, implementing the
// seven-step order of nci_adapter_nci_intf_activated exactly.
func (a *Adapter) onIntfActivated(ntf *IntfActivationNtf) {
	a.mu.Lock()

	// 1. drop the initiator unconditionally — an activation always means
	// we are no longer the passive listen-side target of the *previous*
	// peer, if there was one.
	a.dropInitiator()

	// 2. conditionally drop the target.
	var reactivated *Target
	if !a.reactivating {
		a.dropTarget()
	} else if a.target != nil && !a.activeIntf.Matches(ntf) {
		log.Println("nci: different tag has arrived, dropping the old one")
		a.dropTarget()
	}

	// 3. if the target survived, this is a reactivation.
	if a.target != nil {
		a.reactivating = false
		reactivated = a.target
	} else {
		// 4. build a fresh target or initiator for this activation.
		newTarget := newTarget(a, ntf)
		if newTarget == nil {
			log.Println("nci: try initiator then")
			a.initiator = newInitiator(a, ntf)
		}

		if newTarget != nil {
			if a.tryCreatePeerInitiator(newTarget, ntf) {
				// peer path handled below via framework call outside lock
			} else {
				a.target = newTarget
				a.activeIntf = NewIntfInfo(ntf)
				a.createKnownTag(newTarget, ntf)
			}
		} else if a.initiator != nil {
			a.tryCreatePeerTarget(a.initiator, ntf)
		}
	}

	// 5. unconditionally re-arm the presence-check timer if the now-active
	// endpoint needs one.
	if a.needPresenceChecks() {
		a.armPresenceCheck()
	}

	target := a.target
	initiator := a.initiator
	core := a.core
	framework := a.framework
	a.mu.Unlock()

	// 6. notify reactivation.
	if reactivated != nil {
		log.Println("nci: target reactivated")
		if framework != nil {
			framework.TargetReactivated(reactivated)
		}
		return
	}

	// 7. nothing recognized at all.
	if target == nil && initiator == nil {
		log.Println("nci: no idea what this is")
		core.SetState(RFStateIdle)
	}
}

// tryCreatePeerInitiator recognizes an NFC-DEP poll-side activation and
// reports it to the Framework as a peer rather than a tag
// (nci_adapter_create_peer_initiator). Caller must hold a.mu; it is
// released around the Framework call and re-acquired before returning.
func (a *Adapter) tryCreatePeerInitiator(t *Target, ntf *IntfActivationNtf) bool {
	if ntf.Protocol != ProtocolNFCDep || ntf.RFIntf != RFInterfaceNFCDep || ntf.ActivationParam == nil {
		return false
	}
	framework := a.framework
	switch ntf.Mode {
	case ModePassivePollA, ModeActivePollA:
		a.target = t
		a.mu.Unlock()
		if framework != nil {
			framework.AddPeerInitiatorA(t)
		}
		a.mu.Lock()
		return true
	case ModePassivePollF, ModeActivePollF:
		a.target = t
		a.mu.Unlock()
		if framework != nil {
			framework.AddPeerInitiatorF(t)
		}
		a.mu.Lock()
		return true
	default:
		return false
	}
}

// tryCreatePeerTarget recognizes an NFC-DEP listen-side activation
// (nci_adapter_create_peer_target). Caller must hold a.mu.
func (a *Adapter) tryCreatePeerTarget(i *Initiator, ntf *IntfActivationNtf) bool {
	if ntf.RFIntf != RFInterfaceNFCDep || ntf.ActivationParam == nil {
		return false
	}
	framework := a.framework
	switch ntf.Mode {
	case ModePassiveListenA, ModeActiveListenA:
		a.mu.Unlock()
		if framework != nil {
			framework.AddPeerTargetA(i)
		}
		a.mu.Lock()
		return true
	case ModePassiveListenF, ModeActiveListenF:
		a.mu.Unlock()
		if framework != nil {
			framework.AddPeerTargetF(i)
		}
		a.mu.Lock()
		return true
	default:
		return false
	}
}

// createKnownTag classifies an activated tag Target by RF interface and
// technology and reports it to the Framework under the most specific
// callback it matches, falling back to AddOtherTag
// (nci_adapter_create_known_tag / the ISO-DEP-vs-other branch of
// nci_adapter_nci_intf_activated). Caller must hold a.mu.
func (a *Adapter) createKnownTag(t *Target, ntf *IntfActivationNtf) {
	framework := a.framework
	a.mu.Unlock()
	defer a.mu.Lock()
	if framework == nil {
		return
	}
	switch {
	case ntf.RFIntf == RFInterfaceFrame && t.TagProtocol == TagProtocolT2:
		framework.AddTagT2(t)
	case ntf.RFIntf == RFInterfaceISODep && t.TagProtocol == TagProtocolT4A:
		framework.AddTagT4A(t)
	case ntf.RFIntf == RFInterfaceISODep && t.TagProtocol == TagProtocolT4B:
		framework.AddTagT4B(t)
	default:
		framework.AddOtherTag(t)
	}
}

// reactivate arms a reactivation attempt for t, valid only while t is
// this adapter's current target, it carries recorded activation info, no
// reactivation is already underway, and the core's current and next
// state agree on being actively engaged (nci_adapter_reactivate).
func (a *Adapter) reactivate(t *Target) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.target != t || a.activeIntf == nil || a.reactivating || a.core == nil {
		log.Println("nci: can't reactivate the tag in this state")
		return false
	}
	cur := a.core.CurrentState()
	next := a.core.NextState()
	engaged := (cur == RFStatePollActive && next == RFStatePollActive) ||
		(cur == RFStateListenActive && next == RFStateListenActive)
	if !engaged {
		log.Println("nci: can't reactivate the tag in this state")
		return false
	}

	a.reactivating = true
	if a.presenceCheckTicker != nil {
		a.presenceCheckTicker.Stop()
		a.presenceCheckTicker = nil
	}
	a.core.SetState(RFStateDiscovery)
	return true
}

// DeactivateTarget drops t, if it is still the current target, and
// re-requests discovery when powered (nci_adapter_deactivate_target).
func (a *Adapter) DeactivateTarget(t *Target) {
	a.mu.Lock()
	if a.target != t {
		a.mu.Unlock()
		return
	}
	a.dropTarget()
	powered := a.powered
	core := a.core
	a.mu.Unlock()
	if powered {
		core.SetState(RFStateDiscovery)
	}
}

// DeactivateInitiator drops i, if it is still the current initiator, and
// re-requests discovery when powered (nci_adapter_deactivate_initiator).
func (a *Adapter) DeactivateInitiator(i *Initiator) {
	a.mu.Lock()
	if a.initiator != i {
		a.mu.Unlock()
		return
	}
	a.dropInitiator()
	powered := a.powered
	core := a.core
	a.mu.Unlock()
	if powered {
		core.SetState(RFStateDiscovery)
	}
}

// opModeFor translates a requested high-level Mode bitmask into the
// NCI-level OpMode bitmask pushed to the Core, OR-ing in the op-mode bits
// of every requested mode (nci_adapter_submit_mode_request's translation
// table).
func opModeFor(mode Mode) OpMode {
	op := OpModeNone
	if mode&ModeReaderWriter != 0 {
		op |= OpModeRW | OpModePoll
	}
	if mode&ModeP2PInitiator != 0 {
		op |= OpModePeer | OpModePoll
	}
	if mode&ModeP2PTarget != 0 {
		op |= OpModePeer | OpModeListen
	}
	if mode&ModeCardEmulation != 0 {
		op |= OpModeCE | OpModeListen
	}
	return op
}

// SubmitModeRequest asks the adapter to service mode, pushing the
// corresponding NCI op-mode and kicking the core into discovery if
// powered (nci_adapter_submit_mode_request).
func (a *Adapter) SubmitModeRequest(mode Mode) error {
	a.mu.Lock()
	a.desiredMode = mode
	a.modeChangePending = true
	core := a.core
	powered := a.powered
	a.mu.Unlock()

	op := opModeFor(mode)
	if err := core.SetOpMode(op); err != nil {
		return NewCoreRejectedError("Adapter.SubmitModeRequest", err)
	}
	if op != OpModeNone && powered {
		core.SetState(RFStateDiscovery)
	}
	a.scheduleModeCheck()
	return nil
}

// CancelModeRequest withdraws a pending mode request
// (nci_adapter_cancel_mode_request).
func (a *Adapter) CancelModeRequest() {
	a.mu.Lock()
	a.modeChangePending = false
	a.mu.Unlock()
	a.scheduleModeCheck()
}

// Close tears down the adapter's subscriptions and timers
// (nci_adapter_finalize_core).
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.modeCheckTimer != nil {
		a.modeCheckTimer.Stop()
		a.modeCheckTimer = nil
	}
	if a.presenceCheckTicker != nil {
		a.presenceCheckTicker.Stop()
		a.presenceCheckTicker = nil
	}
	if a.curSub != nil {
		a.curSub.Cancel()
	}
	if a.nextSub != nil {
		a.nextSub.Cancel()
	}
	if a.actSub != nil {
		a.actSub.Cancel()
	}
	a.dropAll()
}
