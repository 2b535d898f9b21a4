// internal/api/handlers/hcp_handler.go
package handlers

import (
	"net/http"
	"strings"

	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

// maxImportSize caps the multipart CSV accepted by ImportHcps.
const maxImportSize = 10 << 20

type HcpHandler struct {
	Hcps *service.HcpService
}

func (h *HcpHandler) ListHcps(c *gin.Context) {
	p := paging(c)
	areaID, ok := queryID(c, "diseaseAreaId")
	if !ok {
		return
	}
	f := store.HcpFilter{
		Query:         strings.TrimSpace(c.Query("q")),
		Specialty:     strings.TrimSpace(c.Query("specialty")),
		DiseaseAreaID: areaID,
		Page:          p.store(),
	}
	hcps, total, err := h.Hcps.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(hcps, total, p))
}

func (h *HcpHandler) GetHcp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	hcp, err := h.Hcps.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hcp)
}

func (h *HcpHandler) CreateHcp(c *gin.Context) {
	var req service.HcpInput
	if !bindJSON(c, &req) {
		return
	}
	hcp, err := h.Hcps.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hcp)
}

func (h *HcpHandler) UpdateHcp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.HcpInput
	if !bindJSON(c, &req) {
		return
	}
	hcp, err := h.Hcps.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hcp)
}

func (h *HcpHandler) DeleteHcp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Hcps.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type BulkSpecialtyRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	DryRun bool   `json:"dryRun"`
}

func (h *HcpHandler) BulkSpecialty(c *gin.Context) {
	var req BulkSpecialtyRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Hcps.BulkSpecialty(c.Request.Context(), req.From, req.To, req.DryRun)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ImportHcps reads a CSV from the "file" field of a multipart form.
func (h *HcpHandler) ImportHcps(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A CSV file is required in the 'file' field", "details": err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file", "details": err.Error()})
		return
	}
	defer f.Close()

	res, err := h.Hcps.Import(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
