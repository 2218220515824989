package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"hostel-hub.backend/internal/domain/entities"
	"hostel-hub.backend/internal/interfaces/http/response"
)

type userStatsService interface {
	UserStats(ctx context.Context) (*entities.RoleCounts, error)
}

// AdminHandler handles admin endpoints
type AdminHandler struct {
	stats userStatsService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(stats userStatsService) *AdminHandler {
	return &AdminHandler{stats: stats}
}

// UserStats counts users per role
// GET /api/v1/admin/users/stats
func (h *AdminHandler) UserStats(c *gin.Context) {
	counts, err := h.stats.UserStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, counts)
}
