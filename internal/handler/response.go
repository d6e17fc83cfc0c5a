package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// identityFrom rebuilds the authenticated identity stored by the auth
// middleware. An empty UID means the request never passed RequireAuth.
func identityFrom(c echo.Context) service.Identity {
	uid, _ := c.Get("uid").(string)
	role, _ := c.Get("role").(string)
	return service.Identity{UID: uid, Role: role}
}
