package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/services"
)

// ErrorResponse sends a standardized error response
// Internal errors are logged but not exposed to clients
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	requestID := getRequestID(c)

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     statusCode,
		}).Error(message)
	}

	response := gin.H{
		"success":    false,
		"message":    message,
		"request_id": requestID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	// Only include error details in development mode
	if gin.Mode() == gin.DebugMode && err != nil {
		response["error_details"] = err.Error()
	}

	c.JSON(statusCode, response)
}

// SuccessResponse sends a standardized success response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	requestID := getRequestID(c)

	response := gin.H{
		"success":    true,
		"message":    message,
		"request_id": requestID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	if data != nil {
		response["data"] = data
	}

	c.JSON(statusCode, response)
}

// ServiceErrorResponse maps typed service errors onto HTTP status codes.
// The error message is safe to expose for client-error classes; everything
// unrecognized is treated as internal.
func ServiceErrorResponse(c *gin.Context, err error) {
	switch {
	case isNotFound(err):
		ErrorResponse(c, http.StatusNotFound, err.Error(), nil)
	case isQuota(err):
		quotaErr, _ := services.IsQuotaExceededError(err)
		c.JSON(http.StatusForbidden, gin.H{
			"success":    false,
			"message":    quotaErr.Error(),
			"code":       "QUOTA_EXCEEDED",
			"resource":   quotaErr.Resource,
			"current":    quotaErr.Current,
			"limit":      quotaErr.Limit,
			"request_id": getRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	case isNoPlan(err):
		ErrorResponse(c, http.StatusForbidden, err.Error(), nil)
	case isStock(err):
		ErrorResponse(c, http.StatusConflict, err.Error(), nil)
	case isTransition(err):
		ErrorResponse(c, http.StatusConflict, err.Error(), nil)
	case isConflict(err):
		ErrorResponse(c, http.StatusConflict, "The request conflicted with a concurrent change, please retry", err)
	case isRefund(err):
		ErrorResponse(c, http.StatusBadGateway, err.Error(), err)
	default:
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

func isQuota(err error) bool      { _, ok := services.IsQuotaExceededError(err); return ok }
func isNoPlan(err error) bool     { _, ok := services.IsNoActivePlanError(err); return ok }
func isStock(err error) bool      { _, ok := services.IsInsufficientStockError(err); return ok }
func isTransition(err error) bool { _, ok := services.IsInvalidTransitionError(err); return ok }
func isConflict(err error) bool   { _, ok := services.IsPersistenceConflictError(err); return ok }
func isRefund(err error) bool     { _, ok := services.IsRefundFailedError(err); return ok }

// getRequestID retrieves the request ID set by middleware
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
		return requestID
	}
	return time.Now().Format("20060102150405")
}
