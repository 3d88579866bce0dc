package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/countgate/internal/models"
)

// CheckResult mirrors a form validation answer: OK or an error message.
type CheckResult struct {
	Field   string `json:"field"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// CheckHandler serves the per-field checks used by configuration forms.
type CheckHandler struct{}

func NewCheckHandler() *CheckHandler { return &CheckHandler{} }

var fieldChecks = map[string]func(string) error{
	"query":               models.CheckQuery,
	"indexes":             models.CheckIndexes,
	"threshold":           models.CheckThreshold,
	"comparison":          models.CheckComparison,
	"units":               models.CheckUnits,
	"since":               checkSince,
	"queryRequestTimeout": checkTimeout,
}

var fieldOptions = map[string]func() []string{
	"comparison": models.ComparisonOptions,
	"units":      models.UnitOptions,
}

// GET /api/v1/checks/:field?value=
func (h *CheckHandler) Check(c *gin.Context) {
	field := c.Param("field")
	check, ok := fieldChecks[field]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown field: " + field})
		return
	}

	res := CheckResult{Field: field, Valid: true}
	if err := check(c.Query("value")); err != nil {
		res.Valid = false
		res.Message = err.Error()
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/v1/options/:field
func (h *CheckHandler) Options(c *gin.Context) {
	field := c.Param("field")
	options, ok := fieldOptions[field]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no options for field: " + field})
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": field, "options": options()})
}

func checkSince(value string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return models.CheckSince(nil)
	}
	return models.CheckSince(&n)
}

func checkTimeout(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return models.CheckQueryRequestTimeout(nil)
	}
	return models.CheckQueryRequestTimeout(&n)
}
