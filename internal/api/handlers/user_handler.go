// internal/api/handlers/user_handler.go
package handlers

import (
	"net/http"
	"strings"

	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/store"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Users *service.UserService
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	p := paging(c)
	clientID, ok := queryID(c, "clientId")
	if !ok {
		return
	}
	f := store.UserFilter{
		Role:     models.Role(c.Query("role")),
		ClientID: clientID,
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     p.store(),
	}
	users, total, err := h.Users.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(users, total, p))
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Users.Create(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateUserInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Users.Update(c.Request.Context(), currentActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
