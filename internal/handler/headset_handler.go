// internal/handler/headset_handler.go
package handler

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

// HeadsetHandler handles headset stream requests
type HeadsetHandler struct {
	headsetService *service.HeadsetService
	timeout        time.Duration
	logger         *utils.ServiceLogger
}

// NewHeadsetHandler creates a new headset handler. timeout bounds the beacon wait.
func NewHeadsetHandler(headsetService *service.HeadsetService, timeout time.Duration, logger *zap.Logger) *HeadsetHandler {
	return &HeadsetHandler{
		headsetService: headsetService,
		timeout:        timeout,
		logger:         utils.NewServiceLogger(logger, "headset-handler"),
	}
}

// ConnectHeadsetRequest names a headset address when broadcasts are blocked
type ConnectHeadsetRequest struct {
	Address string `json:"address" binding:"required" example:"192.168.1.40"`
}

// DiscoverHeadset waits for the headset beacon in the background
// @Summary Discover headset
// @Description Listen for the discovery beacon and connect the stream to its sender. The outcome is published on /ws/events.
// @Tags Headset
// @Produce json
// @Param timeout query string false "Beacon wait" default(30s)
// @Success 202 {object} utils.APIResponse{data=model.HeadsetStatus} "Discovery started"
// @Failure 400 {object} utils.APIResponse "Invalid timeout"
// @Failure 409 {object} utils.APIResponse "Discovery running or already connected"
// @Router /api/v1/headset/discover [post]
func (h *HeadsetHandler) DiscoverHeadset(c *gin.Context) {
	timeout := h.timeout
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			utils.ValidationErrorResponse(c, map[string]string{"timeout": "must be a positive duration such as 30s"})
			return
		}
		timeout = parsed
	}

	if _, err := h.headsetService.DiscoverAsync(timeout); err != nil {
		respondError(c, "Headset discovery not started", err)
		return
	}

	utils.AcceptedResponse(c, "Headset discovery started", h.headsetService.Status())
}

// ConnectHeadset connects the stream to a known address without waiting for a beacon
// @Summary Connect headset by address
// @Tags Headset
// @Accept json
// @Produce json
// @Param request body ConnectHeadsetRequest true "Headset address"
// @Success 200 {object} utils.APIResponse{data=model.HeadsetStatus} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid address"
// @Failure 409 {object} utils.APIResponse "Attempt running or already connected"
// @Failure 500 {object} utils.APIResponse "Connection failed"
// @Router /api/v1/headset/connect [post]
func (h *HeadsetHandler) ConnectHeadset(c *gin.Context) {
	var req ConnectHeadsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	addr, err := netip.ParseAddr(req.Address)
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"address": "must be an IP address"})
		return
	}

	if _, err := h.headsetService.Connect(c.Request.Context(), addr); err != nil {
		respondError(c, "Failed to connect headset", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Headset connected", h.headsetService.Status())
}

// DisconnectHeadset stops the receiver and closes the stream
// @Summary Disconnect headset
// @Tags Headset
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.HeadsetStatus} "Disconnected"
// @Failure 409 {object} utils.APIResponse "Not connected"
// @Router /api/v1/headset/disconnect [post]
func (h *HeadsetHandler) DisconnectHeadset(c *gin.Context) {
	if err := h.headsetService.Disconnect(); err != nil {
		respondError(c, "Failed to disconnect headset", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Headset disconnected", h.headsetService.Status())
}
