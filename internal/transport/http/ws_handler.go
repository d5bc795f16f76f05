package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 16
)

// WSHandler streams leaderboard updates for one quiz and accepts attempt
// commands over the same connection.
type WSHandler struct {
	attempts    *app.AttemptService
	leaderboard *app.LeaderboardService
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewWSHandler(attempts *app.AttemptService, leaderboard *app.LeaderboardService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		attempts:    attempts,
		leaderboard: leaderboard,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type attemptPayload struct {
	AttemptID string `json:"attemptId"`
}

type answerPayload struct {
	AttemptID string `json:"attemptId"`
	Position  int    `json:"position"`
	Choice    int    `json:"choice"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS handles GET /ws/leaderboard?quizId=...
//
// Inbound:  start | answer {attemptId, position, choice} | status {attemptId} | abandon {attemptId}
// Outbound: leaderboard | attempt | answerResult | error
func (h *WSHandler) ServeWS(c *gin.Context) {
	quizID := c.Query("quizId")
	if quizID == "" {
		badRequest(c, "missing quizId")
		return
	}
	caller := callerFrom(c)
	ctx := c.Request.Context()

	updates, cancel, err := h.leaderboard.Subscribe(ctx, quizID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	send := make(chan outboundMessage, wsSendBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	// A failed write closes the connection so the read loop below returns.
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Debug("ws write failed", zap.Error(err))
					_ = conn.Close()
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "leaderboard", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

read:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		select {
		case send <- h.dispatch(ctx, caller, quizID, inbound):
		case <-writerDone:
			break read
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, caller app.Caller, quizID string, msg inboundMessage) outboundMessage {
	switch msg.Type {
	case "start":
		view, err := h.attempts.StartAttempt(ctx, caller, quizID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage{Type: "attempt", Payload: view}
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return outboundMessage{Type: "error", Payload: ErrorResponse{Error: "bad_request", Message: "invalid answer payload"}}
		}
		result, err := h.attempts.SubmitAnswer(ctx, caller, p.AttemptID, p.Position, p.Choice)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage{Type: "answerResult", Payload: result}
	case "status", "abandon":
		var p attemptPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return outboundMessage{Type: "error", Payload: ErrorResponse{Error: "bad_request", Message: "invalid attempt payload"}}
		}
		call := h.attempts.GetAttemptStatus
		if msg.Type == "abandon" {
			call = h.attempts.AbandonAttempt
		}
		view, err := call(ctx, caller, p.AttemptID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage{Type: "attempt", Payload: view}
	default:
		return outboundMessage{Type: "error", Payload: ErrorResponse{Error: "bad_request", Message: "unsupported message type"}}
	}
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorResponse(err)}
}
