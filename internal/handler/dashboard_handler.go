package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
)

// DashboardHandler serves the faculty dashboard summary.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard godoc
// GET /api/v1/faculty/dashboard
// Returns counters, test status breakdown, upcoming tests and recent results.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	data, err := h.dashboardService.GetDashboardData(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, data)
}
