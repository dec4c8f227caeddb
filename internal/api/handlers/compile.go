package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenwall/aclcore/internal/acl"
	"github.com/fenwall/aclcore/internal/gateway"
)

// maxConcurrentCompiles bounds how many locations a single batch compile
// request drives at once, the way the teacher's main.go bounded its
// goroutine+error-channel fan-out.
const maxConcurrentCompiles = 8

// CompileHandler handles /api/v1/locations/:id endpoints: trigger a
// compile+publish, read back the last published config, or preview one
// without publishing.
type CompileHandler struct {
	svc *gateway.Service
	log *zap.Logger
}

func NewCompileHandler(svc *gateway.Service, log *zap.Logger) *CompileHandler {
	return &CompileHandler{svc: svc, log: log}
}

// Compile POST /api/v1/locations/:id/compile
func (h *CompileHandler) Compile(c *gin.Context) {
	locationID, err := parseLocationID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid location id"))
		return
	}

	cfg, err := h.svc.CompileAndPublish(c.Request.Context(), locationID)
	if err != nil {
		h.log.Error("compile location", zap.Int64("location_id", int64(locationID)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errResp(err.Error()))
		return
	}
	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{"published": false, "reason": "ACL disabled or no address family assigned"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// GetConfig GET /api/v1/locations/:id/config
func (h *CompileHandler) GetConfig(c *gin.Context) {
	locationID, err := parseLocationID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid location id"))
		return
	}

	cfg := h.svc.CurrentConfig(locationID)
	if cfg == nil {
		c.JSON(http.StatusNotFound, errResp("no config has been published for this location yet"))
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Preview GET /api/v1/locations/:id/preview
func (h *CompileHandler) Preview(c *gin.Context) {
	locationID, err := parseLocationID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid location id"))
		return
	}

	preview, err := h.svc.Preview(c.Request.Context(), locationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errResp(err.Error()))
		return
	}
	c.String(http.StatusOK, preview)
}

// CompileBatchRequest names the locations a batch compile should cover.
type CompileBatchRequest struct {
	LocationIDs []int64 `json:"locationIds" binding:"required"`
}

type batchResult struct {
	LocationID acl.ID `json:"locationId"`
	RuleCount  int    `json:"ruleCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CompileBatch POST /api/v1/locations/compile-batch
// Compiles and publishes a set of locations concurrently, bounded by
// maxConcurrentCompiles; one location's failure does not abort the rest.
func (h *CompileHandler) CompileBatch(c *gin.Context) {
	var req CompileBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errResp(err.Error()))
		return
	}

	results := make([]batchResult, len(req.LocationIDs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(maxConcurrentCompiles)

	for i, rawID := range req.LocationIDs {
		i, locationID := i, acl.ID(rawID)
		g.Go(func() error {
			cfg, err := h.svc.CompileAndPublish(ctx, locationID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = batchResult{LocationID: locationID, Error: err.Error()}
				return nil
			}
			if cfg == nil {
				results[i] = batchResult{LocationID: locationID, RuleCount: 0}
				return nil
			}
			results[i] = batchResult{LocationID: locationID, RuleCount: len(cfg.Rules)}
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func parseLocationID(c *gin.Context) (acl.ID, error) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return acl.NoID, err
	}
	return acl.ID(n), nil
}
