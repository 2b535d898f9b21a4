// internal/api/handlers/response_handler.go
package handlers

import (
	"net/http"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type ResponseHandler struct {
	Responses *service.ResponseService
}

func (h *ResponseHandler) ListResponses(c *gin.Context) {
	p := paging(c)
	campaignID, ok := queryID(c, "campaignId")
	if !ok {
		return
	}
	hcpID, ok := queryID(c, "hcpId")
	if !ok {
		return
	}
	f := store.ResponseFilter{
		CampaignID: campaignID,
		HcpID:      hcpID,
		Status:     models.ResponseStatus(c.Query("status")),
		Page:       p.store(),
	}
	items, total, err := h.Responses.List(c.Request.Context(), currentActor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(items, total, p))
}

func (h *ResponseHandler) GetResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.Responses.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type ResponseStatusRequest struct {
	Status models.ResponseStatus `json:"status" binding:"required,oneof=completed flagged"`
}

// UpdateStatus flags or unflags a finished response.
func (h *ResponseHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ResponseStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Responses.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type NominationHandler struct {
	Nominations *service.NominationService
}

func (h *NominationHandler) ListNominations(c *gin.Context) {
	p := paging(c)
	campaignID, ok := queryID(c, "campaignId")
	if !ok {
		return
	}
	f := store.NominationFilter{
		CampaignID: campaignID,
		Status:     models.NominationStatus(c.Query("status")),
		Page:       p.store(),
	}
	items, total, err := h.Nominations.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(items, total, p))
}

func (h *NominationHandler) Review(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ReviewInput
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.Nominations.Review(c.Request.Context(), currentActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

type PaymentHandler struct {
	Payments *service.PaymentService
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	p := paging(c)
	campaignID, ok := queryID(c, "campaignId")
	if !ok {
		return
	}
	hcpID, ok := queryID(c, "hcpId")
	if !ok {
		return
	}
	f := store.PaymentFilter{
		CampaignID: campaignID,
		HcpID:      hcpID,
		Status:     models.PaymentStatus(c.Query("status")),
		Page:       p.store(),
	}
	items, total, err := h.Payments.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(items, total, p))
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pay, err := h.Payments.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pay)
}

func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.PaymentStatusInput
	if !bindJSON(c, &req) {
		return
	}
	pay, err := h.Payments.Transition(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pay)
}
