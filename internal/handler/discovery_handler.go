// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

// DiscoveryHandler handles discovery pass requests and the status snapshot
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	statusService    *service.StatusService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, statusService *service.StatusService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		statusService:    statusService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RunDiscovery starts a manual discovery pass
// @Summary Run discovery
// @Description Search for the motor controller, then the headset. Components already connected are skipped. The result is published on /ws/events.
// @Tags Discovery
// @Produce json
// @Success 202 {object} utils.APIResponse{data=model.DiscoveryStatus} "Discovery started"
// @Failure 409 {object} utils.APIResponse "A discovery pass is already running"
// @Router /api/v1/discovery/run [post]
func (h *DiscoveryHandler) RunDiscovery(c *gin.Context) {
	if _, err := h.discoveryService.RunAsync(model.TriggerManual); err != nil {
		respondError(c, "Discovery not started", err)
		return
	}

	h.logger.Info("Manual discovery started", zap.String("client_ip", c.ClientIP()))
	utils.AcceptedResponse(c, "Discovery started", h.discoveryService.Status())
}

// GetDiscovery returns the state of the discovery pass
// @Summary Discovery status
// @Description Running flag, remaining time budget and the last pass result
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.DiscoveryStatus} "Discovery status"
// @Router /api/v1/discovery [get]
func (h *DiscoveryHandler) GetDiscovery(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Discovery status", h.discoveryService.Status())
}

// GetStatus returns the full status snapshot
// @Summary Status snapshot
// @Description Motor, headset, recording and discovery state in one document
// @Tags Status
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.Status} "Status snapshot"
// @Router /api/v1/status [get]
func (h *DiscoveryHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Status snapshot", h.statusService.Snapshot())
}
