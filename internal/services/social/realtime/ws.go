package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/followgraph/internal/platform/auth"
	"github.com/louisbranch/followgraph/internal/platform/requestctx"
	"github.com/louisbranch/followgraph/internal/platform/timeouts"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	framePing  = "ping"
	framePong  = "pong"
	frameError = "error"
)

// Authenticator resolves a session token to a user id.
type Authenticator interface {
	Verify(token string) (string, error)
}

type wsErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, encoder: json.NewEncoder(conn)}
}

// WriteFrame serializes one frame with a write deadline.
func (p *wsPeer) WriteFrame(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(timeouts.WebSocketWrite)); err != nil {
		return err
	}
	return p.encoder.Encode(frame)
}

// NewHandler serves the /ws upgrade. Only authenticated users may connect.
func NewHandler(hub *Hub, authenticator Authenticator) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, hub, requestctx.UserIDFromContext(conn.Request().Context()))
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if hub == nil || authenticator == nil {
			http.Error(w, "websocket is not configured", http.StatusServiceUnavailable)
			return
		}

		token := auth.TokenFromRequest(r)
		if token == "" {
			log.Printf("followgraph: websocket unauthorized: missing token remote=%s", r.RemoteAddr)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		userID, err := authenticator.Verify(token)
		if err != nil || strings.TrimSpace(userID) == "" {
			log.Printf("followgraph: websocket unauthorized: remote=%s err=%v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		r = r.WithContext(requestctx.WithUserID(r.Context(), userID))
		wsHandler.ServeHTTP(w, r)
	})
}

func handleWSConn(conn *websocket.Conn, hub *Hub, userID string) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = maxFramePayloadBytes

	peer := newWSPeer(conn)
	hub.Register(userID, peer)
	defer hub.Unregister(userID, peer)

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				_ = writeWSError(peer, "INVALID_ARGUMENT", "payload too large")
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Printf("followgraph: websocket read user=%s: %v", userID, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			decodeErrors++
			_ = writeWSError(peer, "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case framePing:
			_ = peer.WriteFrame(Frame{Type: framePong})
		default:
			_ = writeWSError(peer, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func writeWSError(peer *wsPeer, code string, message string) error {
	payload, err := json.Marshal(wsErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	return peer.WriteFrame(Frame{Type: frameError, Payload: payload})
}
