package api

import (
	"log"
	stdhttp "net/http"

	intconfig "driverdesk/internal/config"
	h "driverdesk/internal/http/handlers"
	"driverdesk/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter mounts the driver console under /api. ws is the snapshot push
// endpoint; it may be nil.
func NewRouter(env intconfig.Env, a *h.API, ws gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)
		api.GET("/endpoints", h.Endpoints)
		if ws != nil {
			api.GET("/ws", ws)
		}

		api.GET("/state", a.State)

		trip := api.Group("/trip")
		trip.GET("/routes", a.RouteCatalogue)
		trip.POST("/route", a.SelectRoute)
		trip.POST("/direction", a.ToggleDirection)
		trip.POST("/start-shift", a.StartShift)
		trip.POST("/start-boarding", a.StartBoarding)
		trip.POST("/ready", a.ReadyForRoute)
		trip.POST("/start-route", a.StartRoute)
		trip.POST("/finish", a.Finish)
		trip.GET("/manifest", a.Manifest)

		bookings := api.Group("/bookings")
		bookings.POST("", a.LoadBookings)
		bookings.POST("/sync", a.SyncBookings)
		bookings.POST("/:id/accept", a.AcceptBooking)

		api.POST("/queue", a.EnqueueWalkup)

		scan := api.Group("/scan")
		scan.POST("", a.BeginScan)
		scan.POST("/:session/result", a.ScanResult)
		scan.POST("/:session/cancel", a.CancelScan)

		subjects := api.Group("/subjects/:kind/:id")
		subjects.POST("/confirm", a.Confirm)
		subjects.POST("/reject", a.Reject)
		subjects.POST("/revert", a.Revert)

		cash := api.Group("/cash")
		cash.POST("/collect", a.CollectCash)
		cash.POST("/settle", a.Settle)

		ledger := api.Group("/ledger")
		ledger.GET("/balance", a.Balance)
		ledger.GET("/history", a.History)
		ledger.GET("/income", a.Income)
		ledger.GET("/journal", a.LedgerJournal)
		ledger.GET("/receipts/:id", a.Receipt)

		api.POST("/qr/issue", a.IssueQR)
	}

	h.SetRouter(r)
	return r
}
