package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/deldesir/gateway/internal/api"
	"github.com/deldesir/gateway/internal/api/middleware"
	"github.com/deldesir/gateway/internal/orchestrator"
	"github.com/deldesir/gateway/internal/service"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxMessage   = 64 << 10
	wsEventBuffer  = 64
	tokenChunkSize = 16
)

// Stream frame types.
const (
	FrameNode  = "node"
	FrameToken = "token"
	FrameDone  = "done"
	FrameError = "error"
)

type StreamRequest struct {
	UserID    string `json:"user_id"`
	Persona   string `json:"persona"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// StreamFrame is one server message on the chat socket.
type StreamFrame struct {
	Type       string `json:"type"`
	Node       string `json:"node,omitempty"`
	Content    string `json:"content,omitempty"`
	Response   string `json:"response,omitempty"`
	Persona    string `json:"persona,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Mood       string `json:"mood,omitempty"`
	TrustScore *int   `json:"trust_score,omitempty"`
	Message    string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Stream serves GET /chat/ws. Each client message runs one turn. Node events
// are forwarded while the turn runs and the reply follows as token frames.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	frames := make(chan StreamFrame, wsEventBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for f := range frames {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(f); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				for range frames {
				}
				return
			}
		}
	}()
	defer func() {
		close(frames)
		<-writerDone
	}()

	headerUser := middleware.GetUserID(r.Context())
	ctx := r.Context()

	for {
		var req StreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		if req.UserID == "" {
			req.UserID = headerUser
		}
		if req.UserID == "" || req.Message == "" {
			frames <- StreamFrame{Type: FrameError, Message: "user_id and message are required"}
			continue
		}

		h.streamTurn(ctx, req, frames)
	}
}

func (h *ChatHandler) streamTurn(ctx context.Context, req StreamRequest, frames chan<- StreamFrame) {
	observer := func(ev orchestrator.Event) {
		select {
		case frames <- StreamFrame{Type: FrameNode, Node: string(ev.Node)}:
		default:
		}
	}

	out, err := h.svc.Chat(ctx, service.ChatInput{
		UserID:    req.UserID,
		Persona:   req.Persona,
		SessionID: req.SessionID,
		Message:   req.Message,
	}, orchestrator.WithObserver(observer))
	if err != nil {
		msg := err.Error()
		if api.DomainErrorToHTTP(err) == http.StatusInternalServerError {
			log.Error().Err(err).Msg("streamed turn failed")
			msg = "Internal Server Error"
		}
		frames <- StreamFrame{Type: FrameError, Message: msg}
		return
	}

	for _, tok := range tokenChunks(out.Response, tokenChunkSize) {
		frames <- StreamFrame{Type: FrameToken, Content: tok}
	}

	trust := out.TrustScore
	frames <- StreamFrame{
		Type:       FrameDone,
		Response:   out.Response,
		Persona:    out.Persona,
		SessionID:  out.SessionID,
		Mood:       string(out.Mood),
		TrustScore: &trust,
	}
}

// tokenChunks splits text on word boundaries into pieces of at least size
// bytes. Joining the pieces gives back text.
func tokenChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > size {
		cut := strings.IndexByte(text[size:], ' ')
		if cut < 0 {
			break
		}
		cut += size + 1
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
