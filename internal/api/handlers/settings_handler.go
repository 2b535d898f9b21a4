// internal/api/handlers/settings_handler.go
package handlers

import (
	"net/http"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	Settings *service.SettingsService
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req models.Settings
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Settings.Update(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type DashboardHandler struct {
	Dashboard *service.DashboardService
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.Dashboard.Stats(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
