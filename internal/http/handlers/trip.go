package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type routeRequest struct {
	RouteID string `json:"route_id"`
}

// State returns the current snapshot without changing anything.
func (a *API) State(c *gin.Context) {
	c.JSON(http.StatusOK, a.Core.Snapshot())
}

func (a *API) RouteCatalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"routes": a.Core.Routes()})
}

func (a *API) SelectRoute(c *gin.Context) {
	var req routeRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	snap, err := a.Core.SelectRoute(c.Request.Context(), req.RouteID)
	a.respondSnapshot(c, snap, err)
}

func (a *API) ToggleDirection(c *gin.Context) {
	snap, err := a.Core.ToggleDirection(c.Request.Context())
	a.respondSnapshot(c, snap, err)
}

// StartShift optionally takes {"route_id"}; without it the selected route is used.
func (a *API) StartShift(c *gin.Context) {
	var req routeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	snap, err := a.Core.StartShift(c.Request.Context(), req.RouteID)
	a.respondSnapshot(c, snap, err)
}

func (a *API) StartBoarding(c *gin.Context) {
	snap, err := a.Core.StartBoarding(c.Request.Context())
	a.respondSnapshot(c, snap, err)
}

func (a *API) ReadyForRoute(c *gin.Context) {
	snap, err := a.Core.ReadyForRoute(c.Request.Context())
	a.respondSnapshot(c, snap, err)
}

func (a *API) StartRoute(c *gin.Context) {
	snap, err := a.Core.StartRoute(c.Request.Context())
	a.respondSnapshot(c, snap, err)
}

func (a *API) Finish(c *gin.Context) {
	snap, err := a.Core.Finish(c.Request.Context())
	a.respondSnapshot(c, snap, err)
}
