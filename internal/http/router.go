// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rideflow/internal/http/handlers"
	"rideflow/internal/http/middleware"
	"rideflow/internal/modules/pricing"
	"rideflow/internal/modules/session"
)

// maxRequestBody caps JSON bodies; the largest legitimate one is a route of
// two place strings.
const maxRequestBody = 64 << 10

type RouterDeps struct {
	Sessions *session.Manager
	Pricing  *pricing.Service
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log), middleware.BodyLimit(maxRequestBody))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pricingHandler := handlers.NewPricingHandler(deps.Pricing)
	r.POST("/api/price", pricingHandler.Estimate)

	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	quoteHandler := handlers.NewQuoteHandler(deps.Sessions)
	searchHandler := handlers.NewSearchHandler(deps.Sessions)
	streamHandler := handlers.NewStreamHandler(deps.Sessions, log.Named("stream"))

	sessions := r.Group("/api/sessions")
	sessions.POST("", sessionHandler.Create)
	sessions.DELETE("/:id", sessionHandler.Delete)
	sessions.PUT("/:id/route", sessionHandler.SetRoute)

	sessions.GET("/:id/quote", quoteHandler.Get)
	sessions.POST("/:id/quote/refresh", quoteHandler.Refresh)
	sessions.POST("/:id/quote/alternative", quoteHandler.SelectAlternative)

	sessions.PUT("/:id/search/:field", searchHandler.SetQuery)
	sessions.GET("/:id/search/:field", searchHandler.Get)
	sessions.POST("/:id/search/:field/select", searchHandler.Select)
	sessions.POST("/:id/search/:field/focus", searchHandler.Focus)
	sessions.POST("/:id/search/:field/blur", searchHandler.Blur)

	sessions.GET("/:id/stream", streamHandler.Stream)

	return r
}
