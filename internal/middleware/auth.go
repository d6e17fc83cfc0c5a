package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/support-chat-backend/internal/model"
)

type AuthMiddleware struct {
	authClient *auth.Client
}

func NewAuthMiddleware(ctx context.Context, projectID string) (*AuthMiddleware, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &AuthMiddleware{authClient: client}, nil
}

// RequireAuth verifies the Firebase ID token and stores uid and role in the
// echo context. Role comes from the token's custom claims, never from the
// request body; accounts without a role claim are members.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		token, err := m.authClient.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		}
		c.Set("uid", token.UID)
		c.Set("role", roleFromClaims(token.Claims))
		return next(c)
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket upgrades (browsers cannot set headers there).
func bearerToken(c echo.Context) string {
	authz := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return c.QueryParam("token")
}

func roleFromClaims(claims map[string]interface{}) string {
	role, _ := claims["role"].(string)
	switch role {
	case model.RoleAdmin, model.RoleOwner, model.RoleMember:
		return role
	}
	return model.RoleMember
}
