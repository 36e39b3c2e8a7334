// Package notifyapi is the HTTP surface of the notification service.
package notifyapi

import (
	"net/http"

	"usernotify/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SwaggerInstance is the swag instance name the notification docs register under.
const SwaggerInstance = "notifications"

// NewRouter creates and configures the Gin router.
func NewRouter(h *MailHandler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.InstanceName(SwaggerInstance)))

	notifications := r.Group("/api/notifications")
	notifications.POST("/send-mail", h.SendMail)

	return r
}
