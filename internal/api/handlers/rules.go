package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/store"
)

// RuleHandler handles /api/v1/rules endpoints: CRUD and lifecycle
// transitions over declarative ACL rules. Address/principal/port fields
// travel as an opaque JSON body (RuleRecord.Body) the same way the
// teacher's PolicyHandler carried a policy's json.RawMessage spec. The
// compiler does not decode Body: PGStore.FetchApplicableRules reads the
// rule's structured columns instead.
type RuleHandler struct {
	store *store.RuleStore
	log   *zap.Logger
}

func NewRuleHandler(s *store.RuleStore, log *zap.Logger) *RuleHandler {
	return &RuleHandler{store: s, log: log}
}

type CreateRuleRequest struct {
	Name    string          `json:"name"    binding:"required"`
	Enabled bool            `json:"enabled"`
	Expires *string         `json:"expires"` // RFC3339, optional
	Body    json.RawMessage `json:"body"     binding:"required"`
}

type UpdateRuleRequest struct {
	Name    *string         `json:"name"`
	Enabled *bool           `json:"enabled"`
	Expires *string         `json:"expires"`
	Body    json.RawMessage `json:"body"`
}

// List GET /api/v1/rules
func (h *RuleHandler) List(c *gin.Context) {
	tenantID := mustTenantID(c)
	state := c.Query("state")

	rules, err := h.store.List(c.Request.Context(), tenantID, state)
	if err != nil {
		h.log.Error("list rules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errResp("failed to list rules"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rules, "count": len(rules)})
}

// Get GET /api/v1/rules/:id
func (h *RuleHandler) Get(c *gin.Context) {
	tenantID := mustTenantID(c)
	id, err := parseRuleID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid id"))
		return
	}

	r, err := h.store.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, errResp("rule not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errResp(err.Error()))
		return
	}
	c.JSON(http.StatusOK, r)
}

// Create POST /api/v1/rules
func (h *RuleHandler) Create(c *gin.Context) {
	tenantID := mustTenantID(c)
	userID, _ := c.Get("user_id")

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errResp(err.Error()))
		return
	}

	expires, err := parseExpires(req.Expires)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp(err.Error()))
		return
	}

	uid, _ := userID.(uuid.UUID)
	record := &store.RuleRecord{
		TenantID:  tenantID,
		Name:      req.Name,
		Enabled:   req.Enabled,
		Expires:   expires,
		Body:      req.Body,
		CreatedBy: &uid,
	}

	if err := h.store.Create(c.Request.Context(), record); err != nil {
		h.log.Error("create rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errResp("failed to create rule"))
		return
	}
	c.JSON(http.StatusCreated, record)
}

// Update PUT /api/v1/rules/:id
func (h *RuleHandler) Update(c *gin.Context) {
	tenantID := mustTenantID(c)
	id, err := parseRuleID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid id"))
		return
	}

	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errResp(err.Error()))
		return
	}

	existing, err := h.store.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		c.JSON(http.StatusNotFound, errResp("rule not found"))
		return
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}
	if req.Expires != nil {
		expires, err := parseExpires(req.Expires)
		if err != nil {
			c.JSON(http.StatusBadRequest, errResp(err.Error()))
			return
		}
		existing.Expires = expires
	}
	if req.Body != nil {
		existing.Body = req.Body
	}

	if err := h.store.Update(c.Request.Context(), existing); err != nil {
		c.JSON(http.StatusInternalServerError, errResp("failed to update rule"))
		return
	}
	c.JSON(http.StatusOK, existing)
}

// Delete DELETE /api/v1/rules/:id
func (h *RuleHandler) Delete(c *gin.Context) {
	tenantID := mustTenantID(c)
	id, err := parseRuleID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid id"))
		return
	}

	if err := h.store.Delete(c.Request.Context(), tenantID, id); err != nil {
		c.JSON(http.StatusNotFound, errResp("rule not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// Apply POST /api/v1/rules/:id/apply
// Transitions a rule New|Modified -> Applied. Only applied rules
// participate in compilation.
func (h *RuleHandler) Apply(c *gin.Context) {
	tenantID := mustTenantID(c)
	id, err := parseRuleID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid id"))
		return
	}

	if err := h.store.MarkApplied(c.Request.Context(), tenantID, id); err != nil {
		h.log.Error("mark rule applied", zap.Error(err), zap.Int64("rule_id", id))
		c.JSON(http.StatusInternalServerError, errResp("apply failed: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied", "ruleId": id})
}

// MarkModified POST /api/v1/rules/:id/invalidate
// Flags an applied rule as modified without changing its body — for when a
// referenced group, alias, or device changed and the rule needs re-review.
func (h *RuleHandler) MarkModified(c *gin.Context) {
	tenantID := mustTenantID(c)
	id, err := parseRuleID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid id"))
		return
	}

	if err := h.store.MarkModified(c.Request.Context(), tenantID, id); err != nil {
		h.log.Error("mark rule modified", zap.Error(err), zap.Int64("rule_id", id))
		c.JSON(http.StatusInternalServerError, errResp("invalidate failed: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "modified", "ruleId": id})
}

// ListRevisions GET /api/v1/rules/:id/revisions
func (h *RuleHandler) ListRevisions(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errResp("invalid id"))
		return
	}
	revs, err := h.store.ListRevisions(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errResp(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": revs})
}

func parseRuleID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
