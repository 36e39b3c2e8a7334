package notifyapi

import (
	"context"
	"log/slog"
	"net/http"

	"usernotify/internal/notification"
	"usernotify/pkg/middleware"
	"usernotify/pkg/models"

	"github.com/gin-gonic/gin"
)

// ManualSource is the event source recorded for manually triggered mail.
const ManualSource = "manual-trigger"

// Dispatcher is the part of notification.Dispatcher the handler needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.LifecycleEvent) (notification.Outcome, error)
}

// MailHandler serves the manual notification trigger.
type MailHandler struct {
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

// NewMailHandler creates a new MailHandler.
func NewMailHandler(d Dispatcher, logger *slog.Logger) *MailHandler {
	return &MailHandler{Dispatcher: d, Logger: logger.With("component", "manual-trigger")}
}

// SendMail godoc
// @Summary      Send a lifecycle notification
// @Description  Dispatches the notification for eventType to email without going through the broker
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Param        request  body  models.ManualMailRequest  true  "Manual mail request"
// @Success      202
// @Failure      400  {object}  models.ErrorResponse
// @Failure      502  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/notifications/send-mail [post]
func (h *MailHandler) SendMail(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)

	var req models.ManualMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(http.StatusBadRequest, err.Error(), c.Request.URL.Path))
		return
	}
	eventType := req.ResolvedType()
	if !eventType.IsKnown() {
		msg := "eventType must be one of USER_CREATED USER_DELETED"
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(http.StatusBadRequest, msg, c.Request.URL.Path))
		return
	}

	h.Logger.Info("manual notification requested", "email", req.Email, "type", eventType, "correlation_id", correlationID)

	event := models.LifecycleEvent{EventType: eventType, Email: req.Email, Source: ManualSource}
	if _, err := h.Dispatcher.Dispatch(c.Request.Context(), event); err != nil {
		if models.IsKind(err, models.KindMail) {
			c.JSON(http.StatusBadGateway, models.NewErrorResponse(http.StatusBadGateway, "Mail gateway error: "+err.Error(), c.Request.URL.Path))
			return
		}
		h.Logger.Error("manual notification failed", "error", err, "correlation_id", correlationID)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(http.StatusInternalServerError, "failed to send notification", c.Request.URL.Path))
		return
	}

	c.Status(http.StatusAccepted)
}
