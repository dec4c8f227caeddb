package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/vpn"
)

// WireGuardHandler handles /api/v1/wireguard endpoints: live interface/peer
// diagnostics read straight from the kernel via wgctrl, independent of
// whatever the core last compiled.
type WireGuardHandler struct {
	mgr *vpn.Manager
	log *zap.Logger
}

func NewWireGuardHandler(mgr *vpn.Manager, log *zap.Logger) *WireGuardHandler {
	return &WireGuardHandler{mgr: mgr, log: log}
}

// Status GET /api/v1/wireguard/status
func (h *WireGuardHandler) Status(c *gin.Context) {
	status, err := h.mgr.Status()
	if err != nil {
		h.log.Warn("wireguard status unavailable", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "unknown", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
