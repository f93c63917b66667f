// Package realtime delivers live follow graph events over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/followgraph/internal/platform/telemetry/metrics"
	"github.com/louisbranch/followgraph/internal/services/social/domain"
)

// Frame is the wire envelope for server and client messages.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Peer is one live connection.
type Peer interface {
	WriteFrame(frame Frame) error
}

// Observer records dispatcher activity.
type Observer interface {
	ObserveLiveEvent(event, outcome string)
	SetLiveConnections(n int)
}

// Hub is the connection registry and local dispatcher. Each user maps to at
// most one peer and the most recent registration wins. Displaced peers stay
// in the broadcast set until they disconnect.
type Hub struct {
	mu       sync.Mutex
	byUser   map[string]Peer
	peers    map[Peer]string
	observer Observer
}

// NewHub creates an empty registry. observer may be nil.
func NewHub(observer Observer) *Hub {
	return &Hub{
		byUser:   make(map[string]Peer),
		peers:    make(map[Peer]string),
		observer: observer,
	}
}

// Register maps userID to peer, replacing any previous mapping.
func (h *Hub) Register(userID string, peer Peer) {
	userID = strings.TrimSpace(userID)
	if userID == "" || peer == nil {
		return
	}
	h.mu.Lock()
	h.byUser[userID] = peer
	h.peers[peer] = userID
	n := len(h.peers)
	h.mu.Unlock()
	h.setConnections(n)
}

// Unregister drops peer. The user mapping is removed only if it still points
// at peer, so a stale disconnect never evicts a newer connection.
func (h *Hub) Unregister(userID string, peer Peer) {
	userID = strings.TrimSpace(userID)
	h.mu.Lock()
	delete(h.peers, peer)
	if current, ok := h.byUser[userID]; ok && current == peer {
		delete(h.byUser, userID)
	}
	n := len(h.peers)
	h.mu.Unlock()
	h.setConnections(n)
}

// Lookup returns the peer registered for userID.
func (h *Hub) Lookup(userID string) (Peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peer, ok := h.byUser[strings.TrimSpace(userID)]
	return peer, ok
}

// Connections returns the number of live peers.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// NotifyUser delivers event to userID's peer, or drops it when offline.
func (h *Hub) NotifyUser(_ context.Context, userID string, event domain.Event) {
	frame, ok := encodeEvent(event)
	if !ok {
		return
	}
	h.deliver(strings.TrimSpace(userID), frame)
}

// NotifyUsers delivers event once to each distinct user.
func (h *Hub) NotifyUsers(_ context.Context, userIDs []string, event domain.Event) {
	frame, ok := encodeEvent(event)
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		h.deliver(userID, frame)
	}
}

// Broadcast delivers event to every live peer.
func (h *Hub) Broadcast(_ context.Context, event domain.Event) {
	frame, ok := encodeEvent(event)
	if !ok {
		return
	}
	h.mu.Lock()
	targets := make(map[Peer]string, len(h.peers))
	for peer, userID := range h.peers {
		targets[peer] = userID
	}
	h.mu.Unlock()

	for peer, userID := range targets {
		h.write(userID, peer, frame)
	}
}

func (h *Hub) deliver(userID string, frame Frame) {
	peer, ok := h.Lookup(userID)
	if !ok {
		h.observe(frame.Type, metrics.OutcomeOffline)
		return
	}
	h.write(userID, peer, frame)
}

func (h *Hub) write(userID string, peer Peer, frame Frame) {
	if err := peer.WriteFrame(frame); err != nil {
		log.Printf("followgraph: live %s to %s failed: %v", frame.Type, userID, err)
		h.observe(frame.Type, metrics.OutcomeFailed)
		h.Unregister(userID, peer)
		return
	}
	h.observe(frame.Type, metrics.OutcomeDelivered)
}

func (h *Hub) observe(event, outcome string) {
	if h.observer != nil {
		h.observer.ObserveLiveEvent(event, outcome)
	}
}

func (h *Hub) setConnections(n int) {
	if h.observer != nil {
		h.observer.SetLiveConnections(n)
	}
}

func encodeEvent(event domain.Event) (Frame, bool) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		log.Printf("followgraph: encode live %s: %v", event.Name, err)
		return Frame{}, false
	}
	return Frame{Type: event.Name, Payload: payload}, true
}

var _ domain.Dispatcher = (*Hub)(nil)
