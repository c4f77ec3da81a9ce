// internal/handler/motor_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

// MotorHandler handles motor controller requests
type MotorHandler struct {
	motorService *service.MotorService
	logger       *utils.ServiceLogger
}

// NewMotorHandler creates a new motor handler
func NewMotorHandler(motorService *service.MotorService, logger *zap.Logger) *MotorHandler {
	return &MotorHandler{
		motorService: motorService,
		logger:       utils.NewServiceLogger(logger, "motor-handler"),
	}
}

// ConnectMotor scans the serial ports for the controller
// @Summary Connect motor controller
// @Description Handshake candidate ports in order until the controller answers. The outcome is published on /ws/events.
// @Tags Motor
// @Produce json
// @Success 202 {object} utils.APIResponse{data=model.MotorStatus} "Scan started"
// @Failure 409 {object} utils.APIResponse "Scan running or already connected"
// @Router /api/v1/motor/connect [post]
func (h *MotorHandler) ConnectMotor(c *gin.Context) {
	if _, err := h.motorService.ConnectAsync(); err != nil {
		respondError(c, "Motor scan not started", err)
		return
	}

	utils.AcceptedResponse(c, "Motor scan started", h.motorService.Status())
}

// DisconnectMotor closes the serial link
// @Summary Disconnect motor controller
// @Tags Motor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.MotorStatus} "Disconnected"
// @Failure 409 {object} utils.APIResponse "Not connected"
// @Router /api/v1/motor/disconnect [post]
func (h *MotorHandler) DisconnectMotor(c *gin.Context) {
	if err := h.motorService.Disconnect(); err != nil {
		respondError(c, "Failed to disconnect motor controller", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Motor controller disconnected", h.motorService.Status())
}

// TestMotor fires the vibration trigger
// @Summary Trigger vibration
// @Description Send the trigger command. The controller does not acknowledge it.
// @Tags Motor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.MotorStatus} "Trigger sent"
// @Failure 409 {object} utils.APIResponse "Not connected"
// @Failure 500 {object} utils.APIResponse "Write failed"
// @Router /api/v1/motor/test [post]
func (h *MotorHandler) TestMotor(c *gin.Context) {
	if err := h.motorService.SendTestCommand(); err != nil {
		respondError(c, "Failed to send trigger", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trigger sent", h.motorService.Status())
}

// ListCandidates lists the serial ports a scan would try
// @Summary List candidate ports
// @Tags Motor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{count=int,candidates=[]discovery.Candidate}} "Candidate ports"
// @Router /api/v1/motor/candidates [get]
func (h *MotorHandler) ListCandidates(c *gin.Context) {
	candidates, err := h.motorService.Candidates(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list serial ports", zap.Error(err))
		respondError(c, "Failed to list serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Candidate ports", gin.H{
		"count":      len(candidates),
		"candidates": candidates,
	})
}
