package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"pickupBoard/cmd/middleware"
	"pickupBoard/internal/auth"
	"pickupBoard/internal/service"
)

type Routers struct {
	Service  service.Service
	Verifier *auth.Verifier
	Creds    auth.Provider
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	app.GET("/health", r.Service.Health)

	apiGroup := app.Group("/v1")
	apiGroup.Use(middleware.AuthMiddleware(r.Verifier, r.Creds))

	apiGroup.GET("/events", r.Service.GetAllEvents)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.GET("/events/:id/roster", r.Service.GetRoster)
	apiGroup.GET("/events/:id/overview", r.Service.GetOverview)
	apiGroup.GET("/events/:id/drivers", r.Service.GetDrivers)

	apiGroup.PATCH("/slots/:id/confirmed", r.Service.ToggleConfirmed)
	apiGroup.PATCH("/slots/:id/cant-come", r.Service.ToggleCantCome)
	apiGroup.POST("/drivers/:id/assignments", r.Service.AssignDriver)

	apiGroup.GET("/dropoff-locations", r.Service.GetDropoffLocations)
	apiGroup.PATCH("/dropoff-locations/:id/availability", r.Service.ToggleDropoffAvailability)
	apiGroup.PUT("/dropoff-locations/schedule", r.Service.SaveDropoffSchedule)

	apiGroup.GET("/special-groups", r.Service.GetSpecialGroups)
	apiGroup.GET("/neighborhoods", r.Service.GetNeighborhoods)

	apiGroup.GET("/recruitment/templates/:id", r.Service.GetTemplate)
	apiGroup.POST("/recruitment/blasts", r.Service.CreateBlast)
	apiGroup.GET("/recruitment/blasts", r.Service.GetRecentBlasts)
	apiGroup.GET("/recruitment/blasts/:id", r.Service.GetBlast)

	return app
}
