package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/query"
	"github.com/latticehq/lattice/pkg/store"
)

// AppUser is the authenticated caller. TenantIDs lists the tenants the
// caller's token grants; AllTenants marks the master API key.
type AppUser struct {
	Subject    string
	TenantIDs  []string
	AllTenants bool
}

// AllowedTenant reports whether the caller may query the given tenant.
func (u *AppUser) AllowedTenant(tenantID string) bool {
	if u == nil || tenantID == "" {
		return false
	}
	if u.AllTenants {
		return true
	}
	for _, id := range u.TenantIDs {
		if id == tenantID {
			return true
		}
	}
	return false
}

// App bundles the process-wide dependencies injected into every request.
// Everything is constructed once at boot; nothing here is tenant-specific.
type App struct {
	DBConn       *pgxpool.Pool
	Store        store.GraphStore
	AiClient     ai.GraphAIClient
	Orchestrator *query.Orchestrator
	Key          *keyfunc.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
