package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/latticehq/lattice/internal/server/middleware"
	"github.com/latticehq/lattice/pkg/logger"
	"github.com/latticehq/lattice/pkg/query"
	"github.com/latticehq/lattice/pkg/store"
)

type queryBody struct {
	QueryText     string `json:"query_text" validate:"required"`
	TenantID      string `json:"tenant_id" validate:"required"`
	ForceRoute    string `json:"force_route"`
	WeightProfile string `json:"weight_profile"`
	ResponseType  string `json:"response_type"`
}

type queryResponse struct {
	Message string        `json:"message,omitempty"`
	Result  *query.Result `json:"result,omitempty"`
}

// QueryHandler runs retrieval for a question and returns the evidence bundle.
func QueryHandler(c echo.Context) error {
	return handleQuery(c, false)
}

// QueryAnswerHandler runs retrieval and synthesizes a final answer over the
// bundle.
func QueryAnswerHandler(c echo.Context) error {
	return handleQuery(c, true)
}

func handleQuery(c echo.Context, synthesize bool) error {
	data := new(queryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{Message: "Invalid request body"})
	}

	cc := c.(*middleware.AppContext)
	user := cc.User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, queryResponse{Message: "Unauthorized"})
	}
	if !user.AllowedTenant(data.TenantID) {
		return c.JSON(http.StatusForbidden, queryResponse{Message: "No access to tenant"})
	}

	req := query.Request{
		QueryText:     data.QueryText,
		TenantID:      data.TenantID,
		ForceRoute:    query.Route(data.ForceRoute),
		WeightProfile: data.WeightProfile,
		ResponseType:  query.ResponseType(data.ResponseType),
	}
	if data.ForceRoute != "" && !query.ValidRoute(req.ForceRoute) {
		return c.JSON(http.StatusBadRequest, queryResponse{Message: "Unknown route"})
	}
	if synthesize || req.ResponseType == query.ResponseAnswer {
		synthesize = true
	}

	ctx := c.Request().Context()
	orchestrator := cc.App.Orchestrator

	var result *query.Result
	var err error
	if synthesize {
		result, err = orchestrator.Answer(ctx, req)
	} else {
		result, err = orchestrator.Execute(ctx, req)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrGraphUnavailable):
			logger.Error("Graph store unavailable", "err", err)
			return c.JSON(http.StatusServiceUnavailable, queryResponse{Message: "Graph store unavailable", Result: result})
		case errors.Is(err, query.ErrQueryTimeout):
			return c.JSON(http.StatusGatewayTimeout, queryResponse{Message: "Query timed out", Result: result})
		default:
			logger.Error("Query failed", "err", err)
			return c.JSON(http.StatusInternalServerError, queryResponse{Message: "Query failed"})
		}
	}

	return c.JSON(http.StatusOK, queryResponse{Result: result})
}
