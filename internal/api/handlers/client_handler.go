// internal/api/handlers/client_handler.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	Clients *service.ClientService
}

func (h *ClientHandler) ListClients(c *gin.Context) {
	p := paging(c)
	f := store.ClientFilter{Query: strings.TrimSpace(c.Query("q")), Page: p.store()}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid active"})
			return
		}
		f.Active = &active
	}
	clients, total, err := h.Clients.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(clients, total, p))
}

// GetClient is open to client users for their own organisation.
func (h *ClientHandler) GetClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req service.ClientInput
	if !bindJSON(c, &req) {
		return
	}
	cl, err := h.Clients.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ClientInput
	if !bindJSON(c, &req) {
		return
	}
	cl, err := h.Clients.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *ClientHandler) DeleteClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Clients.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type DiseaseAreaHandler struct {
	DiseaseAreas *service.DiseaseAreaService
}

func (h *DiseaseAreaHandler) ListDiseaseAreas(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	areas, err := h.DiseaseAreas.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	if areas == nil {
		areas = []models.DiseaseArea{}
	}
	c.JSON(http.StatusOK, gin.H{"items": areas})
}

func (h *DiseaseAreaHandler) CreateDiseaseArea(c *gin.Context) {
	var req service.DiseaseAreaInput
	if !bindJSON(c, &req) {
		return
	}
	area, err := h.DiseaseAreas.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, area)
}

func (h *DiseaseAreaHandler) UpdateDiseaseArea(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.DiseaseAreaInput
	if !bindJSON(c, &req) {
		return
	}
	area, err := h.DiseaseAreas.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, area)
}

func (h *DiseaseAreaHandler) DeleteDiseaseArea(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.DiseaseAreas.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
