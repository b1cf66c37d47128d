package main

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dotside-studios/davi-nfc-agent/nci"
)

// NotifyMessage is the envelope broadcast to every connected client,
// following the teacher's server/websocket.go shape of a type tag plus
// a free-form payload.
type NotifyMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// WSNotifier implements nci.Framework by broadcasting each notification
// as JSON to every connected websocket client, adapted from
// server/websocket.go's WebsocketClientManager and protocol/websocket.go's
// envelope shape. The adapter's event loop calls these methods directly
// (spec.md §5), so broadcast must never block on a slow client.
type WSNotifier struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]string // conn -> session ID

	supported nci.Mode
}

// NewWSNotifier creates an empty notifier with no clients registered.
func NewWSNotifier() *WSNotifier {
	return &WSNotifier{clients: make(map[*websocket.Conn]string)}
}

// Register adds conn to the broadcast set under sessionID.
func (n *WSNotifier) Register(conn *websocket.Conn, sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clients[conn] = sessionID
}

// Unregister removes conn from the broadcast set.
func (n *WSNotifier) Unregister(conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.clients, conn)
}

// ClientCount reports how many clients are currently registered.
func (n *WSNotifier) ClientCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.clients)
}

func (n *WSNotifier) broadcast(msgType string, payload any) {
	msg := NotifyMessage{Type: msgType, Timestamp: time.Now(), Payload: payload}

	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[wsnotify] write error, dropping client: %v", err)
			conn.Close()
			delete(n.clients, conn)
		}
	}
}

type targetInfo struct {
	Technology  nci.Technology  `json:"technology"`
	Protocol    nci.Protocol    `json:"protocol"`
	TagProtocol nci.TagProtocol `json:"tagProtocol"`
}

func describeTarget(t *nci.Target) targetInfo {
	return targetInfo{Technology: t.Technology, Protocol: t.Protocol, TagProtocol: t.TagProtocol}
}

func (n *WSNotifier) ModeNotify(mode nci.Mode, confirmed bool) {
	n.mu.Lock()
	n.supported = mode
	n.mu.Unlock()
	n.broadcast("modeChanged", map[string]any{"supportedModes": mode, "confirmed": confirmed})
}

func (n *WSNotifier) AddTagT2(t *nci.Target)    { n.broadcast("tagFound", describeTarget(t)) }
func (n *WSNotifier) AddTagT4A(t *nci.Target)   { n.broadcast("tagFound", describeTarget(t)) }
func (n *WSNotifier) AddTagT4B(t *nci.Target)   { n.broadcast("tagFound", describeTarget(t)) }
func (n *WSNotifier) AddOtherTag(t *nci.Target) { n.broadcast("tagFound", describeTarget(t)) }

func (n *WSNotifier) AddPeerInitiatorA(t *nci.Target) { n.broadcast("peerFound", describeTarget(t)) }
func (n *WSNotifier) AddPeerInitiatorF(t *nci.Target) { n.broadcast("peerFound", describeTarget(t)) }

func (n *WSNotifier) AddPeerTargetA(i *nci.Initiator) {
	n.broadcast("peerFound", map[string]any{"role": "listen"})
}
func (n *WSNotifier) AddPeerTargetF(i *nci.Initiator) {
	n.broadcast("peerFound", map[string]any{"role": "listen"})
}

func (n *WSNotifier) TargetGone(t *nci.Target)        { n.broadcast("tagGone", nil) }
func (n *WSNotifier) TargetReactivated(t *nci.Target) { n.broadcast("tagReactivated", nil) }
func (n *WSNotifier) InitiatorGone(i *nci.Initiator)  { n.broadcast("peerGone", nil) }

func (n *WSNotifier) TransmitDone(t *nci.Target, status nci.TransmitStatus, data []byte) {
	n.broadcast("transmitDone", map[string]any{"status": status, "data": data})
}

func (n *WSNotifier) ResponseSent(i *nci.Initiator, status nci.TransmitStatus) {
	n.broadcast("responseSent", map[string]any{"status": status})
}
