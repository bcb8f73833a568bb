package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// ScenarioGenerator runs one scenario batch
type ScenarioGenerator interface {
	Generate(ctx context.Context, req *models.ScenarioRequest) (*models.ScenarioResponse, error)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string   `json:"error"`
	Type    string   `json:"type"`
	Details []string `json:"details,omitempty"`
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	generator ScenarioGenerator
	version   string
	checks    map[string]HealthCheck
	log       *logger.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(generator ScenarioGenerator, version string, checks map[string]HealthCheck) *Handlers {
	return &Handlers{
		generator: generator,
		version:   version,
		checks:    checks,
		log:       logger.GetLogger("api.handlers"),
	}
}

// RootHandler greets the caller
func (h *Handlers) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from ESG!"})
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	}

	if len(h.checks) > 0 {
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		deps := make(gin.H, len(names))
		for _, name := range names {
			deps[name] = h.checks[name]()
		}
		body["dependencies"] = deps
	}

	c.JSON(http.StatusOK, body)
}

// GenerateScenariosHandler runs one batch and returns both path tensors
func (h *Handlers) GenerateScenariosHandler(c *gin.Context) {
	var req models.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "malformed scenario request",
			Type:    errors.ErrorTypeInvalidArgument.String(),
			Details: []string{err.Error()},
		})
		return
	}

	resp, err := h.generator.Generate(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if !resp.Empty() {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// NotFoundHandler answers unknown routes
func (h *Handlers) NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error: "route " + c.Request.Method + " " + c.Request.URL.Path + " not found",
		Type:  "not_found",
	})
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("Scenario request failed: %v", err)
	}
	c.JSON(status, ErrorResponse{
		Error:   err.Error(),
		Type:    errors.TypeOf(err).String(),
		Details: errors.DetailsOf(err),
	})
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}

	switch errors.TypeOf(err) {
	case errors.ErrorTypeInvalidArgument,
		errors.ErrorTypeNumericDegeneracy,
		errors.ErrorTypeResourceExhausted:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
