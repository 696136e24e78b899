package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.Split(authHeader, " ")[1]
		app := c.(*AppContext).App

		// Master API Key bypass
		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			c.(*AppContext).User = &AppUser{
				Subject:    "master",
				AllTenants: true,
			}
			return next(c)
		}

		if app.Key == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		k := *app.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		subject := ""
		if sub, ok := claims["sub"].(string); ok {
			subject = sub
		}

		var tenantIDs []string
		if tenantsClaim, ok := claims["tenants"].([]any); ok {
			for _, t := range tenantsClaim {
				if tStr, ok := t.(string); ok && tStr != "" {
					tenantIDs = append(tenantIDs, tStr)
				}
			}
		} else if tenantClaim, ok := claims["tenant_id"].(string); ok && tenantClaim != "" {
			tenantIDs = append(tenantIDs, tenantClaim)
		}
		if len(tenantIDs) == 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "No tenant access"})
		}

		c.(*AppContext).User = &AppUser{
			Subject:   subject,
			TenantIDs: tenantIDs,
		}

		return next(c)
	}
}
