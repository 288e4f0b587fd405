package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	PermissionRebuild = "graph.rebuild"
	PermissionStatus  = "graph.status"
)

var errInvalidUserID = errors.New("invalid user ID")

var allPermissions = []string{
	PermissionRebuild,
	PermissionStatus,
}

// AuthMiddleware authenticates with the master API key or a JWT verified
// against the configured JWKS. Without any auth configured every caller is
// treated as an anonymous admin.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		app := c.(*AppContext).App
		if !app.AuthEnabled() {
			c.(*AppContext).User = &AppUser{Role: "anonymous", Permissions: allPermissions}
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserRole != "" && token == app.MasterAPIKey {
			c.(*AppContext).User = &AppUser{
				UserID:      app.MasterUserID,
				Role:        app.MasterUserRole,
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Keyfunc == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		parsed, err := jwt.Parse(token, app.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		user, err := userFromClaims(claims)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		c.(*AppContext).User = user

		return next(c)
	}
}

func userFromClaims(claims jwt.MapClaims) (*AppUser, error) {
	user := &AppUser{Role: "user"}

	switch id := claims["id"].(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, errInvalidUserID
		}
		user.UserID = n
	case float64:
		user.UserID = int64(id)
	default:
		return nil, errInvalidUserID
	}

	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}
	if perms, ok := claims["permissions"].([]any); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				user.Permissions = append(user.Permissions, s)
			}
		}
	}
	if user.Role == "admin" && len(user.Permissions) == 0 {
		user.Permissions = allPermissions
	}
	return user, nil
}
