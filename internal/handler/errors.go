package handler

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"vr-datastreamer/internal/analysis"
	"vr-datastreamer/internal/recording"
	"vr-datastreamer/internal/repository"
	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

// serviceError maps a service error onto a status code and a stable error code
func serviceError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict, "BUSY"
	case errors.Is(err, service.ErrAlreadyConnected):
		return http.StatusConflict, "ALREADY_CONNECTED"
	case errors.Is(err, service.ErrNotConnected):
		return http.StatusConflict, "NOT_CONNECTED"
	case errors.Is(err, service.ErrRecordingNotActive):
		return http.StatusNotFound, "RECORDING_NOT_ACTIVE"
	case errors.Is(err, service.ErrNoDevice):
		return http.StatusNotFound, "NO_DEVICE"
	case errors.Is(err, service.ErrNoPeer):
		return http.StatusNotFound, "NO_PEER"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, recording.ErrInvalidBaseName):
		return http.StatusBadRequest, "INVALID_BASE_NAME"
	case errors.Is(err, recording.ErrNoFreeName):
		return http.StatusConflict, "NO_FREE_NAME"
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "FILE_NOT_FOUND"
	case errors.Is(err, analysis.ErrNoSamples):
		return http.StatusUnprocessableEntity, "NO_SAMPLES"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

func respondError(c *gin.Context, message string, err error) {
	status, code := serviceError(err)
	utils.CodedErrorResponse(c, status, code, message, err)
}
