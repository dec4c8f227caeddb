package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func mustTenantID(c *gin.Context) uuid.UUID {
	val, _ := c.Get("tenant_id")
	if id, ok := val.(uuid.UUID); ok {
		return id
	}
	// Fall back to header (for multi-tenant proxied requests).
	if h := c.GetHeader("X-Tenant-ID"); h != "" {
		if id, err := uuid.Parse(h); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func errResp(msg string) gin.H { return gin.H{"error": msg} }

func parseExpires(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("invalid expires %q: %w", *s, err)
	}
	return &t, nil
}
