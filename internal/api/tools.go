package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/observability"
	"github.com/lexvault/lexvault/internal/tools"
)

// ToolHandler handles the legal analysis tool endpoints
type ToolHandler struct {
	runner *tools.Runner
	logger observability.Logger
}

// NewToolHandler creates a new tool handler instance
func NewToolHandler(runner *tools.Runner, logger observability.Logger) *ToolHandler {
	return &ToolHandler{runner: runner, logger: logger}
}

// ClauseAnalyzer handles POST /api/v1/tools/clause-analyzer
func (h *ToolHandler) ClauseAnalyzer(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ClauseAnalyzerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.ClauseAnalyzer(c.Request.Context(), req.Text, userID)
	h.respond(c, "clause-analyzer", result, err)
}

// ComplianceChecker handles POST /api/v1/tools/compliance-checker
func (h *ToolHandler) ComplianceChecker(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ComplianceCheckerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.ComplianceChecker(c.Request.Context(), req.Text, userID, req.Jurisdiction, req.Framework)
	h.respond(c, "compliance-checker", result, err)
}

// PrecedentFinder handles POST /api/v1/tools/precedent-finder
func (h *ToolHandler) PrecedentFinder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req PrecedentFinderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.PrecedentFinder(c.Request.Context(), req.Query, userID)
	h.respond(c, "precedent-finder", result, err)
}

// NegotiationCoach handles POST /api/v1/tools/negotiation-coach
func (h *ToolHandler) NegotiationCoach(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req NegotiationCoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.NegotiationCoach(c.Request.Context(), req.ClauseText, tools.Position(req.Position), userID)
	h.respond(c, "negotiation-coach", result, err)
}

func (h *ToolHandler) respond(c *gin.Context, tool string, result *tools.Result, err error) {
	if err != nil {
		h.logger.Error("Tool execution failed", map[string]interface{}{
			"tool":  tool,
			"error": err.Error(),
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "tool execution failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
