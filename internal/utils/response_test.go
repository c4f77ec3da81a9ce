package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler gin.HandlerFunc) (int, APIResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.Set("request_id", "req-7")
		handler(c)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestCodedErrorResponse(t *testing.T) {
	status, resp := serve(t, func(c *gin.Context) {
		CodedErrorResponse(c, http.StatusConflict, "BUSY", "Discovery already running", errors.New("operation in progress"))
	})

	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "req-7", resp.RequestID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BUSY", resp.Error.Code)
	assert.Equal(t, "operation in progress", resp.Error.Details)
}

func TestErrorResponseDerivesCode(t *testing.T) {
	status, resp := serve(t, func(c *gin.Context) {
		ErrorResponse(c, http.StatusNotFound, "Recording not found", nil)
	})

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}

func TestValidationErrorResponse(t *testing.T) {
	status, resp := serve(t, func(c *gin.Context) {
		ValidationErrorResponse(c, map[string]string{"limit": "must be between 1 and 500"})
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be between 1 and 500", resp.Error.Fields["limit"])
}

func TestAcceptedResponse(t *testing.T) {
	status, resp := serve(t, func(c *gin.Context) {
		AcceptedResponse(c, "Discovery started", gin.H{"running": true})
	})

	assert.Equal(t, http.StatusAccepted, status)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"running": true}, resp.Data)
}
