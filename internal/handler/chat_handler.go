package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

// ChatHandler is the REST mirror of the websocket event surface, used by
// clients that cannot hold a long-lived connection.
type ChatHandler struct {
	rooms    service.RoomService
	chat     service.ChatService
	presence service.PresenceService
}

func NewChatHandler(rooms service.RoomService, chat service.ChatService, presence service.PresenceService) *ChatHandler {
	return &ChatHandler{rooms: rooms, chat: chat, presence: presence}
}

type RoomCheckResponse struct {
	Exists bool    `json:"exists"`
	RoomID *uint64 `json:"roomId,omitempty"`
}

type RoomCreatedResponse struct {
	Success bool   `json:"success"`
	RoomID  uint64 `json:"roomId"`
}

type PostMessageRequest struct {
	Body        string `json:"body"`
	ClientToken string `json:"clientToken,omitempty"`
}

func (h *ChatHandler) CheckRoom(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	member := id.UID
	if id.IsAdmin() {
		member = c.QueryParam("memberId")
		if member == "" {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "memberId is required"))
		}
	}
	rm, exists, err := h.rooms.Check(c.Request().Context(), member)
	if err != nil {
		return h.serviceError(c, err)
	}
	resp := RoomCheckResponse{Exists: exists}
	if exists {
		resp.RoomID = &rm.ID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) CreateRoom(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	if id.IsAdmin() {
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "rooms are created by members"))
	}
	rm, err := h.rooms.Create(c.Request().Context(), id.UID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, RoomCreatedResponse{Success: true, RoomID: rm.ID})
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid room id"))
	}
	msgs, err := h.chat.History(c.Request().Context(), roomID, id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) PostMessage(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid room id"))
	}
	var req PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	var token *string
	if req.ClientToken != "" {
		token = &req.ClientToken
	}
	msg, err := h.chat.Send(c.Request().Context(), id, "", roomID, req.Body, token)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid room id"))
	}
	if err := h.presence.MarkRead(c.Request().Context(), roomID, id); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChatHandler) ListRooms(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	summaries, err := h.presence.RoomSummaries(c.Request().Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"summaries": summaries})
}

func (h *ChatHandler) CloseRoom(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid room id"))
	}
	if err := h.rooms.Close(c.Request().Context(), id, roomID); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func roomIDParam(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func (h *ChatHandler) serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "room not found"))
	case errors.Is(err, service.ErrRoomClosed):
		return c.JSON(http.StatusGone, NewErrorResponse("room_closed", "room is closed"))
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "operation failed"))
	}
}
