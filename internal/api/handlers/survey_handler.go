// internal/api/handlers/survey_handler.go
package handlers

import (
	"net/http"

	"kol-campaign-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

// SurveyHandler serves the public, token-addressed survey endpoints.
type SurveyHandler struct {
	Surveys *service.SurveyService
}

func (h *SurveyHandler) GetSurvey(c *gin.Context) {
	s, err := h.Surveys.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SurveyHandler) StartSurvey(c *gin.Context) {
	r, err := h.Surveys.Start(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": r.Status, "startedAt": r.StartedAt})
}

func (h *SurveyHandler) SubmitSurvey(c *gin.Context) {
	var req service.SubmitInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Surveys.Submit(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
