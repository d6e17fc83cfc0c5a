package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/repository"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

type NotificationHandler struct {
	notifRepo repository.NotificationRepository
	broadcast service.BroadcastService
}

func NewNotificationHandler(notifRepo repository.NotificationRepository, broadcast service.BroadcastService) *NotificationHandler {
	return &NotificationHandler{notifRepo: notifRepo, broadcast: broadcast}
}

type NotificationResponse struct {
	ID        uint64  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	JobID     *uint64 `json:"jobId,omitempty"`
	RoomID    *uint64 `json:"roomId,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"createdAt"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		JobID:     n.JobID,
		RoomID:    n.RoomID,
		Read:      n.ReadAt != nil,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	unreadOnly := c.QueryParam("unread_only") != "false"
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			limit = lParsed
		}
	}
	list, err := h.notifRepo.ListByUser(c.Request().Context(), uid, unreadOnly, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch notifications"))
	}
	cnt, err := h.notifRepo.CountUnread(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to count unread"))
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unreadCount":   cnt,
	})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	if err := h.notifRepo.MarkAllRead(c.Request().Context(), uid); err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to mark read"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type BroadcastRequest struct {
	TargetRole string `json:"targetRole"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

type BroadcastResponse struct {
	Success bool   `json:"success"`
	JobID   uint64 `json:"jobId"`
	Details struct {
		RecipientCount int `json:"recipientCount"`
		SuccessCount   int `json:"successCount"`
		FailureCount   int `json:"failureCount"`
	} `json:"details"`
}

func (h *NotificationHandler) SendGroupNotification(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	job, err := h.broadcast.Broadcast(c.Request().Context(), id, req.TargetRole, req.Type, req.Title, req.Body)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "admin only"))
		}
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid broadcast request"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "broadcast failed"))
	}
	var resp BroadcastResponse
	resp.Success = true
	resp.JobID = job.ID
	resp.Details.RecipientCount = job.RecipientCount
	resp.Details.SuccessCount = job.SuccessCount
	resp.Details.FailureCount = job.FailureCount
	return c.JSON(http.StatusOK, resp)
}
