package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/repository"
)

type UserHandler struct {
	userRepo repository.UserRepository
}

func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

type RegisterRequest struct {
	DisplayName string  `json:"displayName"`
	PushToken   *string `json:"pushToken,omitempty"`
}

// Register upserts the caller's directory entry. The role is taken from the
// verified token, so a client cannot promote itself through this endpoint.
func (h *UserHandler) Register(c echo.Context) error {
	id := identityFrom(c)
	if id.UID == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	u := &model.User{
		UID:         id.UID,
		Role:        id.Role,
		DisplayName: req.DisplayName,
		PushToken:   req.PushToken,
	}
	if err := h.userRepo.Upsert(c.Request().Context(), u); err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to save user"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
