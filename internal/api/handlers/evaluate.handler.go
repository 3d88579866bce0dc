package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/countgate/internal/logging"
	"github.com/platformbuilds/countgate/internal/models"
	"github.com/platformbuilds/countgate/internal/services"
	"github.com/platformbuilds/countgate/pkg/logger"
)

// EvaluateRequest is one gate invocation over HTTP.
type EvaluateRequest struct {
	Name string `json:"name"`
	models.QueryParams
}

type EvaluateResponse struct {
	Passed   bool                     `json:"passed"`
	Result   *models.EvaluationResult `json:"result"`
	BuildLog []string                 `json:"buildLog"`
}

type EvaluateHandler struct {
	gates   *services.GateService
	timeout time.Duration
	logger  logger.Logger
}

// NewEvaluateHandler bounds each evaluation by timeout so the typed error is
// written before the server's write deadline. Zero means unbounded.
func NewEvaluateHandler(gates *services.GateService, timeout time.Duration, logger logger.Logger) *EvaluateHandler {
	return &EvaluateHandler{gates: gates, timeout: timeout, logger: logger}
}

// POST /api/v1/evaluate
//
// A tripped gate is a successful evaluation and answers 200 with passed=false.
// Configuration, transport and decode failures go through the error
// middleware with the build log as details.
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	spec, err := models.NewQuerySpec(req.QueryParams)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	rec := &logging.Recorder{}
	result, err := h.gates.Evaluate(ctx, req.Name, spec, rec)
	if err != nil {
		_ = c.Error(err).SetMeta(rec.Lines())
		return
	}

	c.JSON(http.StatusOK, EvaluateResponse{
		Passed:   !result.ThresholdExceeded,
		Result:   result,
		BuildLog: rec.Lines(),
	})
}
