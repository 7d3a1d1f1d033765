package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestID middleware generates or extracts correlation IDs for request tracing
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// StructuredLogger middleware logs requests with structured fields
func StructuredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		requestID, _ := c.Get("request_id")

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   duration.String(),
			"ip":         c.ClientIP(),
			"request_id": requestID,
		})
		if tenantID := GetTenantID(c); tenantID != "" {
			entry = entry.WithField("tenant_id", tenantID)
		}

		if c.Writer.Status() >= 500 {
			entry.Error("Request completed")
		} else {
			entry.Info("Request completed")
		}
	}
}

// TenantExtraction extracts tenant identification from the request.
// Supports multiple tenant identification methods:
// 1. X-Tenant-ID header (UUID)
// 2. X-Tenant-Slug header (slug string)
// 3. Query parameter (tenant_id or slug)
// 4. URL path parameter (:slug in routes)
func TenantExtraction() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		tenantSlug := c.GetHeader("X-Tenant-Slug")

		if tenantID == "" {
			tenantID = c.Query("tenant_id")
		}
		if tenantSlug == "" {
			tenantSlug = c.Query("slug")
		}
		if tenantSlug == "" {
			if slugParam := c.Param("slug"); slugParam != "" {
				tenantSlug = slugParam
			}
		}

		if tenantID != "" {
			c.Set(TenantIDKey, tenantID)
		}
		if tenantSlug != "" {
			c.Set(TenantSlugKey, tenantSlug)
		}

		c.Next()
	}
}

// Context keys for tenant identification
const (
	TenantIDKey   = "tenant_id"
	TenantSlugKey = "tenant_slug"
)

// GetTenantID extracts tenant ID from gin context
func GetTenantID(c *gin.Context) string {
	if id, exists := c.Get(TenantIDKey); exists {
		return id.(string)
	}
	return ""
}

// GetTenantSlug extracts tenant slug from gin context
func GetTenantSlug(c *gin.Context) string {
	if slug, exists := c.Get(TenantSlugKey); exists {
		return slug.(string)
	}
	return ""
}

// RequireTenantUUID parses the extracted tenant ID as a UUID, aborting with
// 400 when missing or malformed. Handlers behind this middleware can read
// the parsed value with GetTenantUUID.
func RequireTenantUUID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := GetTenantID(c)
		if raw == "" {
			c.AbortWithStatusJSON(400, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TENANT_REQUIRED",
					"message": "X-Tenant-ID header is required",
				},
			})
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(400, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TENANT_INVALID",
					"message": "X-Tenant-ID must be a valid UUID",
				},
			})
			return
		}
		c.Set(tenantUUIDKey, id)
		c.Next()
	}
}

const tenantUUIDKey = "tenant_uuid"

// GetTenantUUID returns the tenant UUID parsed by RequireTenantUUID
func GetTenantUUID(c *gin.Context) uuid.UUID {
	if id, exists := c.Get(tenantUUIDKey); exists {
		return id.(uuid.UUID)
	}
	return uuid.Nil
}
