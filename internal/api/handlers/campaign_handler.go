// internal/api/handlers/campaign_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	Campaigns *service.CampaignService
	Exports   *service.ExportService
	Payments  *service.PaymentService
}

func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	p := paging(c)
	clientID, ok := queryID(c, "clientId")
	if !ok {
		return
	}
	f := store.CampaignFilter{
		Status:   models.CampaignStatus(c.Query("status")),
		ClientID: clientID,
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     p.store(),
	}
	campaigns, total, err := h.Campaigns.List(c.Request.Context(), currentActor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(campaigns, total, p))
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cmp, err := h.Campaigns.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req service.CreateCampaignInput
	if !bindJSON(c, &req) {
		return
	}
	cmp, err := h.Campaigns.Create(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cmp)
}

func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateCampaignInput
	if !bindJSON(c, &req) {
		return
	}
	cmp, err := h.Campaigns.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Campaigns.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type CampaignStatusRequest struct {
	Status models.CampaignStatus `json:"status" binding:"required"`
}

func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CampaignStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Campaigns.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CampaignHandler) ListHcps(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	assigned, err := h.Campaigns.ListHcps(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if assigned == nil {
		assigned = []service.AssignedHcp{}
	}
	c.JSON(http.StatusOK, gin.H{"items": assigned})
}

type AssignHcpsRequest struct {
	HcpIDs []string `json:"hcpIds" binding:"required,min=1,max=1000,dive,objectid"`
}

func (h *CampaignHandler) AssignHcps(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AssignHcpsRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Campaigns.AssignHcps(c.Request.Context(), id, req.HcpIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CampaignHandler) RemoveHcp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	hcpID, ok := pathID(c, "hcpId")
	if !ok {
		return
	}
	if err := h.Campaigns.RemoveHcp(c.Request.Context(), id, hcpID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CampaignHandler) SendReminders(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.Campaigns.SendReminders(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// ExportCSV streams the responses as an attachment.
func (h *CampaignHandler) ExportCSV(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := currentActor(c)
	cmp, err := h.Campaigns.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.Exports.FileName(cmp)))
	c.Status(http.StatusOK)
	if _, err := h.Exports.WriteCSV(c.Request.Context(), actor, cmp.ID, c.Writer); err != nil {
		// headers are gone, the client sees a truncated file
		_ = c.Error(err)
	}
}

func (h *CampaignHandler) UploadExport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.Exports.Upload(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *CampaignHandler) Kols(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	ranking, err := h.Campaigns.Kols(c.Request.Context(), currentActor(c), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ranking})
}

func (h *CampaignHandler) PaymentSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sum, err := h.Payments.Summary(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
