// internal/handler/recording_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RecordingHandler handles recording session requests
type RecordingHandler struct {
	recordingService *service.RecordingService
	logger           *utils.ServiceLogger
}

// NewRecordingHandler creates a new recording handler
func NewRecordingHandler(recordingService *service.RecordingService, logger *zap.Logger) *RecordingHandler {
	return &RecordingHandler{
		recordingService: recordingService,
		logger:           utils.NewServiceLogger(logger, "recording-handler"),
	}
}

// StartRecordingRequest names the recording file
type StartRecordingRequest struct {
	BaseName string `json:"base_name" example:"experiment_data"`
}

// StartRecording opens a new recording file
// @Summary Start recording
// @Description Open a new CSV file for the headset stream. A running recording is stopped first. An empty base name uses the configured default.
// @Tags Recording
// @Accept json
// @Produce json
// @Param request body StartRecordingRequest false "Recording name"
// @Success 201 {object} utils.APIResponse{data=model.RecordingSession} "Recording started"
// @Failure 400 {object} utils.APIResponse "Invalid base name"
// @Failure 409 {object} utils.APIResponse "No free file name"
// @Router /api/v1/recording/start [post]
func (h *RecordingHandler) StartRecording(c *gin.Context) {
	var req StartRecordingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request", err)
			return
		}
	}

	session, err := h.recordingService.Start(c.Request.Context(), req.BaseName)
	if err != nil {
		respondError(c, "Failed to start recording", err)
		return
	}

	h.logger.Info("Recording started",
		zap.String("session_id", session.ID.String()),
		zap.String("file", session.FilePath),
		zap.String("request_id", c.GetString("request_id")),
	)
	utils.SuccessResponse(c, http.StatusCreated, "Recording started", session)
}

// StopRecording closes the open recording
// @Summary Stop recording
// @Tags Recording
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.RecordingSession} "Recording stopped"
// @Failure 404 {object} utils.APIResponse "No recording active"
// @Router /api/v1/recording/stop [post]
func (h *RecordingHandler) StopRecording(c *gin.Context) {
	session, err := h.recordingService.Stop(c.Request.Context())
	if session == nil && err == nil {
		err = service.ErrRecordingNotActive
	}
	if session == nil {
		respondError(c, "Failed to stop recording", err)
		return
	}
	if err != nil {
		// The file is closed and cataloged, only the final flush failed.
		h.logger.Warn("Recording stopped with error", zap.String("file", session.FilePath), zap.Error(err))
	}

	utils.SuccessResponse(c, http.StatusOK, "Recording stopped", session)
}

// GetCurrentRecording returns the open session with live counters
// @Summary Current recording
// @Tags Recording
// @Produce json
// @Success 200 {object} utils.APIResponse{data=recording.Session} "Open session"
// @Failure 404 {object} utils.APIResponse "No recording active"
// @Router /api/v1/recording [get]
func (h *RecordingHandler) GetCurrentRecording(c *gin.Context) {
	session, err := h.recordingService.Current()
	if err != nil {
		respondError(c, "No recording active", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Recording active", session)
}

// ListRecordings lists cataloged recordings
// @Summary List recordings
// @Description Catalog entries, newest first
// @Tags Recording
// @Produce json
// @Param base_name query string false "Filter by base name"
// @Param active query bool false "Only the open session"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} utils.APIResponse{data=object{recordings=[]model.RecordingSession,total=int,limit=int,offset=int}} "Recordings"
// @Failure 400 {object} utils.APIResponse "Invalid query"
// @Router /api/v1/recordings [get]
func (h *RecordingHandler) ListRecordings(c *gin.Context) {
	filter, validation := parseRecordingFilter(c)
	if len(validation) > 0 {
		utils.ValidationErrorResponse(c, validation)
		return
	}

	sessions, total, err := h.recordingService.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list recordings", zap.Error(err))
		respondError(c, "Failed to list recordings", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Recordings", gin.H{
		"recordings": sessions,
		"total":      total,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

// GetRecording returns one catalog entry
// @Summary Get recording
// @Tags Recording
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} utils.APIResponse{data=model.RecordingSession} "Recording"
// @Failure 400 {object} utils.APIResponse "Invalid ID"
// @Failure 404 {object} utils.APIResponse "Not found"
// @Router /api/v1/recordings/{id} [get]
func (h *RecordingHandler) GetRecording(c *gin.Context) {
	id, ok := parseRecordingID(c)
	if !ok {
		return
	}

	session, err := h.recordingService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Recording not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Recording", session)
}

// GetRecordingStats analyzes a recording file
// @Summary Recording statistics
// @Description Sample rate and per-tracker path length and speeds of a recording file
// @Tags Recording
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} utils.APIResponse{data=analysis.Report} "Statistics"
// @Failure 400 {object} utils.APIResponse "Invalid ID"
// @Failure 404 {object} utils.APIResponse "Recording or file not found"
// @Failure 422 {object} utils.APIResponse "Recording has no samples"
// @Router /api/v1/recordings/{id}/stats [get]
func (h *RecordingHandler) GetRecordingStats(c *gin.Context) {
	id, ok := parseRecordingID(c)
	if !ok {
		return
	}

	report, err := h.recordingService.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to analyze recording", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Recording statistics", report)
}

func parseRecordingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"id": "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseRecordingFilter(c *gin.Context) (*model.RecordingFilter, map[string]string) {
	filter := &model.RecordingFilter{
		BaseName: c.Query("base_name"),
		Limit:    defaultListLimit,
	}
	validation := make(map[string]string)

	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			validation["active"] = "must be true or false"
		}
		filter.ActiveOnly = active
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			validation["limit"] = "must be between 1 and " + strconv.Itoa(maxListLimit)
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			validation["offset"] = "must be zero or more"
		}
		filter.Offset = offset
	}

	return filter, validation
}
