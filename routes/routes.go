package routes

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dishevent/dishevent-server/controllers"
	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/repository"
)

// Deps is everything the router needs, built once in main.
type Deps struct {
	ServiceName string
	CookieName  string
	StaticDir   string

	Resolver middleware.SessionResolver
	Events   repository.EventRepository
	Limiters *middleware.Limiters

	Session *controllers.SessionController
	Event   *controllers.EventController
	Guest   *controllers.GuestController
	Export  *controllers.ExportController
	Public  *controllers.PublicController
	Upload  *controllers.UploadController
	Health  *controllers.HealthController
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.Use(
		middleware.RequestID(),
		otelgin.Middleware(d.ServiceName),
		middleware.AccessLog(),
		gin.Recovery(),
	)

	r.GET("/ping", d.Health.Ping)
	r.GET("/health", d.Health.Health)

	authed := middleware.AuthSession(d.Resolver, d.CookieName)
	optional := middleware.OptionalSession(d.Resolver, d.CookieName)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/session", middleware.RateLimitByIP(d.Limiters.Session), d.Session.Create)
			auth.GET("/session", d.Session.Get)
			auth.DELETE("/session", d.Session.Delete)
			auth.GET("/guard", d.Session.Guard)
		}

		events := api.Group("/events")
		events.Use(authed)
		{
			events.GET("", d.Event.List)
			events.POST("", d.Event.Create)
			events.GET("/stream", d.Event.Stream)
			events.GET("/:id", d.Event.Get)
			events.GET("/:id/stream", d.Event.Watch)
			events.PUT("/:id", d.Event.Update)
			events.PATCH("/:id", d.Event.Update)
			events.DELETE("/:id", d.Event.Delete)

			events.GET("/:id/guests", d.Guest.List)
			events.POST("/:id/guests", d.Guest.Create)
			events.GET("/:id/guests/stream", d.Guest.Stream)
			events.GET("/:id/guests/export", middleware.CheckEventOwner(d.Events), d.Export.ExportGuests)
			events.PATCH("/:id/guests/:guestId", d.Guest.Update)
			events.DELETE("/:id/guests/:guestId", d.Guest.Delete)
		}

		public := api.Group("/public/events/:id")
		public.Use(optional)
		{
			public.GET("", d.Public.View)
			public.POST("/unlock", middleware.RateLimitByIP(d.Limiters.Unlock), d.Public.Unlock)
			public.POST("/rsvp", middleware.RateLimitByIP(d.Limiters.RSVP), d.Public.RSVP)
		}

		api.POST("/uploads", authed, middleware.RateLimitByIP(d.Limiters.Upload), d.Upload.Upload)
		api.DELETE("/uploads", authed, d.Upload.Delete)
	}

	r.GET("/v0/b/:bucket/o/*object", d.Upload.Download)

	r.NoRoute(middleware.RouteGuard(d.Resolver, d.CookieName, d.StaticDir))
}
