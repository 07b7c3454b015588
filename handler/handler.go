package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chat-api/internal/domain"
	"chat-api/internal/usecase"
)

const headerCorrelationID = "X-Correlation-Id"

// ChatUseCase is the application surface the handler dispatches to.
type ChatUseCase interface {
	SignUp(ctx context.Context, name string) (domain.User, error)
	SignIn(ctx context.Context, name string) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	PostMessage(ctx context.Context, in usecase.PostMessageInput) (domain.Message, error)
	GetMessage(ctx context.Context, roomID, messageID string) (domain.Message, error)
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	CreateRoom(ctx context.Context, name string) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
}

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Request is the command envelope accepted by Handle. Op selects the
// operation; the remaining fields are read as that operation needs them.
type Request struct {
	Op            string `json:"op"`
	CorrelationID string `json:"correlationId,omitempty"`
	RoomID        string `json:"roomId,omitempty"`
	MessageID     string `json:"messageId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	SenderID      string `json:"senderId,omitempty"`
	Name          string `json:"name,omitempty"`
	Body          string `json:"body,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type userView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type roomView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type messageView struct {
	ID         string `json:"id"`
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Body       string `json:"body"`
}

type roomsResponse struct {
	Rooms []roomView `json:"rooms"`
}

type messagesResponse struct {
	Messages []messageView `json:"messages"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Handler struct {
	chat   ChatUseCase
	logger *slog.Logger
}

func NewHandler(chat ChatUseCase, logger *slog.Logger) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chat: chat, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		req.CorrelationID = uuid.NewString()
		return h.fail(req, domain.NewError(domain.ErrorValidation, "invalid_request", err)), nil
	}
	if strings.TrimSpace(req.CorrelationID) == "" {
		req.CorrelationID = uuid.NewString()
	}

	body, err := h.dispatch(ctx, req)
	if err != nil {
		return h.fail(req, err), nil
	}

	status := http.StatusOK
	if req.Op == "sign_up" || req.Op == "post_message" || req.Op == "create_room" {
		status = http.StatusCreated
	}
	h.logger.Debug("request handled", "op", req.Op, "status", status, "correlation_id", req.CorrelationID)
	return jsonResponse(status, req.CorrelationID, body), nil
}

func (h *Handler) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Op {
	case "status":
		return statusResponse{Status: "ok"}, nil
	case "sign_up":
		u, err := h.chat.SignUp(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return toUserView(u), nil
	case "sign_in":
		u, err := h.chat.SignIn(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return toUserView(u), nil
	case "get_user":
		u, err := h.chat.GetUser(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return toUserView(u), nil
	case "post_message":
		m, err := h.chat.PostMessage(ctx, usecase.PostMessageInput{
			RoomID:   req.RoomID,
			SenderID: req.SenderID,
			Body:     req.Body,
		})
		if err != nil {
			return nil, err
		}
		return toMessageView(m), nil
	case "get_message":
		m, err := h.chat.GetMessage(ctx, req.RoomID, req.MessageID)
		if err != nil {
			return nil, err
		}
		return toMessageView(m), nil
	case "list_messages":
		msgs, err := h.chat.ListMessages(ctx, req.RoomID, req.Limit)
		if err != nil {
			return nil, err
		}
		out := messagesResponse{Messages: make([]messageView, 0, len(msgs))}
		for _, m := range msgs {
			out.Messages = append(out.Messages, toMessageView(m))
		}
		return out, nil
	case "create_room":
		r, err := h.chat.CreateRoom(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return roomView{ID: r.ID, Name: r.Name}, nil
	case "list_rooms":
		rooms, err := h.chat.ListRooms(ctx)
		if err != nil {
			return nil, err
		}
		out := roomsResponse{Rooms: make([]roomView, 0, len(rooms))}
		for _, r := range rooms {
			out.Rooms = append(out.Rooms, roomView{ID: r.ID, Name: r.Name})
		}
		return out, nil
	case "":
		return nil, domain.NewError(domain.ErrorValidation, "missing_op", nil)
	default:
		return nil, domain.NewError(domain.ErrorValidation, "unknown_op", nil)
	}
}

// fail turns err into the public response. Only validation, not-found and
// ambiguity errors are shown to the caller; anything else is logged in full
// and reported by incident id.
func (h *Handler) fail(req Request, err error) Response {
	kind, _ := domain.KindOf(err)
	switch kind {
	case domain.ErrorValidation:
		return jsonResponse(http.StatusBadRequest, req.CorrelationID, errorResponse{Error: string(kind), Message: publicReason(err)})
	case domain.ErrorNotFound:
		return jsonResponse(http.StatusNotFound, req.CorrelationID, errorResponse{Error: string(kind), Message: publicReason(err)})
	case domain.ErrorAmbiguousResult:
		return jsonResponse(http.StatusConflict, req.CorrelationID, errorResponse{Error: string(kind), Message: publicReason(err)})
	}

	h.logger.Error("request failed",
		"op", req.Op,
		"incident_id", req.CorrelationID,
		"kind", string(kind),
		"err", err,
	)
	return jsonResponse(http.StatusInternalServerError, req.CorrelationID, errorResponse{
		Error:   "INTERNAL",
		Message: fmt.Sprintf("Internal server error (%s)", req.CorrelationID),
	})
}

func publicReason(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Reason != "" {
		return domainErr.Reason
	}
	kind, _ := domain.KindOf(err)
	return strings.ToLower(string(kind))
}

func jsonResponse(status int, correlationID string, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL","message":"Internal server error"}`)
	}
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(body),
	}
}

func toUserView(u domain.User) userView {
	return userView{ID: u.ID, Name: u.Name}
}

func toMessageView(m domain.Message) messageView {
	return messageView{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Body:       m.Body,
	}
}
