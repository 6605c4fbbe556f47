package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/vidgrab/api/handlers"
	"github.com/yourusername/vidgrab/api/middleware"
	"github.com/yourusername/vidgrab/internal/messages"
	"github.com/yourusername/vidgrab/pkg/logger"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	jobs handlers.JobService,
	acks handlers.Acknowledger,
	catalog *messages.Catalog,
	cache handlers.Pinger,
	gatherer prometheus.Gatherer,
	log *zap.Logger,
	multiLogger *logger.MultiLogger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log = logger.OrNop(log)
	router := gin.New()

	router.Use(middleware.Logger(log, multiLogger))
	router.Use(middleware.Recovery(log, multiLogger))

	healthHandler := handlers.NewHealthHandler(cache)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(jobs, acks, catalog, log)
		jobGroup := v1.Group("/jobs")
		{
			jobGroup.POST("", jobHandler.SubmitJob)
			jobGroup.GET("", jobHandler.ListJobs)
			jobGroup.GET("/stats", jobHandler.GetStats)
			jobGroup.GET("/:id", jobHandler.GetJob)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
