package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"
)

// Inbound action names. Each maps to exactly one handler and one typed ack.
const (
	actionStartSession = "startSession"
	actionBeginSession = "beginSession"
	actionEndSession   = "endSession"
	actionJoinSession  = "joinSession"
	actionLeaveSession = "leaveSession"
	actionSubmitAnswer = "submitAnswer"
)

type WSHandler struct {
	service  *engine.Service
	validate *validator.Validate
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *engine.Service, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
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

type startPayload struct {
	QuizID string `json:"quizId" validate:"required"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type joinPayload struct {
	Code        string `json:"code" validate:"required,len=6,numeric"`
	DisplayName string `json:"displayName" validate:"required"`
}

type answerPayload struct {
	QuestionID string `json:"questionId" validate:"required"`
	OptionID   string `json:"optionId" validate:"required"`
}

type ackPayload struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ServeWS upgrades the request and runs the connection loop. A connection
// subscribes to at most one session at a time; a read failure without an
// explicit leave is treated as a disconnect, which the engine converts to a
// leave only after the reconnect grace window.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	state := &connState{userID: userID}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), state, inbound, send, closeSignals)
	}

	if state.cancelSub != nil {
		state.cancelSub()
	}
	if state.sessionID != "" && state.joined {
		h.service.Disconnect(state.sessionID, state.userID)
	}

	close(closeSignals)
	if state.forwarderDone != nil {
		<-state.forwarderDone
	}
	close(send)
	<-writerDone
}

// connState tracks the single session binding of one connection.
type connState struct {
	userID        string
	sessionID     string
	joined        bool // participant (vs host-only) connection
	cancelSub     func()
	forwarderDone chan struct{}
}

func (h *WSHandler) dispatch(ctx context.Context, state *connState, inbound inboundMessage, send chan outboundMessage, closeSignals chan struct{}) {
	switch inbound.Type {
	case actionStartSession:
		var payload startPayload
		if !h.decode(inbound, &payload, send) {
			return
		}
		if state.userID == "" {
			sendFailure(send, inbound.Type, "missing userId query parameter", "validation")
			return
		}
		ack, err := h.service.StartSession(ctx, payload.QuizID, state.userID)
		if err != nil {
			sendError(send, inbound.Type, err)
			return
		}
		h.bind(state, ack.SessionID, false, send, closeSignals)
		sendSuccess(send, inbound.Type, ack)

	case actionBeginSession:
		var payload sessionPayload
		if !h.decode(inbound, &payload, send) {
			return
		}
		if err := h.service.BeginSession(ctx, payload.SessionID, state.userID); err != nil {
			sendError(send, inbound.Type, err)
			return
		}
		sendSuccess(send, inbound.Type, nil)

	case actionEndSession:
		var payload sessionPayload
		if !h.decode(inbound, &payload, send) {
			return
		}
		if err := h.service.EndSession(ctx, payload.SessionID, state.userID); err != nil {
			sendError(send, inbound.Type, err)
			return
		}
		sendSuccess(send, inbound.Type, nil)

	case actionJoinSession:
		var payload joinPayload
		if !h.decode(inbound, &payload, send) {
			return
		}
		if state.sessionID != "" {
			sendFailure(send, inbound.Type, "connection already bound to a session", "conflict")
			return
		}
		ack, err := h.service.JoinSession(ctx, payload.Code, state.userID, payload.DisplayName)
		if err != nil {
			sendError(send, inbound.Type, err)
			return
		}
		state.userID = ack.UserID
		h.bind(state, ack.SessionID, true, send, closeSignals)
		sendSuccess(send, inbound.Type, ack)

	case actionLeaveSession:
		if state.sessionID == "" || !state.joined {
			sendFailure(send, inbound.Type, "not joined to a session", "validation")
			return
		}
		if err := h.service.LeaveSession(ctx, state.sessionID, state.userID); err != nil {
			sendError(send, inbound.Type, err)
			return
		}
		sendSuccess(send, inbound.Type, nil)

	case actionSubmitAnswer:
		var payload answerPayload
		if !h.decode(inbound, &payload, send) {
			return
		}
		if state.sessionID == "" || !state.joined {
			sendFailure(send, inbound.Type, "not joined to a session", "validation")
			return
		}
		ack, err := h.service.SubmitAnswer(ctx, state.sessionID, state.userID, payload.QuestionID, payload.OptionID)
		if err != nil {
			sendError(send, inbound.Type, err)
			return
		}
		sendSuccess(send, inbound.Type, ack)

	default:
		sendFailure(send, inbound.Type, "unsupported action", "validation")
	}
}

// bind subscribes the connection to a session's event stream and starts the
// forwarder that relays events to the socket until the connection closes.
func (h *WSHandler) bind(state *connState, sessionID string, joined bool, send chan outboundMessage, closeSignals chan struct{}) {
	state.sessionID = sessionID
	state.joined = joined

	updates, cancel, err := h.service.Subscribe(sessionID)
	if err != nil {
		h.log.Warn("subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	state.cancelSub = cancel
	state.forwarderDone = make(chan struct{})

	go func() {
		defer close(state.forwarderDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
}

func (h *WSHandler) decode(inbound inboundMessage, payload any, send chan outboundMessage) bool {
	if err := json.Unmarshal(inbound.Payload, payload); err != nil {
		sendFailure(send, inbound.Type, "malformed payload", "validation")
		return false
	}
	if err := h.validate.Struct(payload); err != nil {
		sendFailure(send, inbound.Type, err.Error(), "validation")
		return false
	}
	return true
}

func sendSuccess(send chan outboundMessage, action string, data any) {
	send <- outboundMessage{Type: "ack", Payload: ackPayload{
		Action:  action,
		Success: true,
		Data:    data,
	}}
}

func sendError(send chan outboundMessage, action string, err error) {
	sendFailure(send, action, err.Error(), domain.ErrorCode(err))
}

func sendFailure(send chan outboundMessage, action, message, code string) {
	send <- outboundMessage{Type: "ack", Payload: ackPayload{
		Action:  action,
		Success: false,
		Error:   message,
		Code:    code,
	}}
}
