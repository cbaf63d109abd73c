package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/services"
)

// IdentityHandler serves the administrative identity-mapping endpoints.
type IdentityHandler struct {
	service *services.IdentityService
}

func NewIdentityHandler(service *services.IdentityService) *IdentityHandler {
	return &IdentityHandler{service: service}
}

// List returns all known username to actor id mappings.
func (h *IdentityHandler) List(c *gin.Context) {
	mappings, err := h.service.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list identity mappings"})
		return
	}
	c.JSON(http.StatusOK, mappings)
}

// GetByActorID resolves the username behind an actor id.
func (h *IdentityHandler) GetByActorID(c *gin.Context) {
	mapping, err := h.service.FindByActorID(c.Param("actor_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Actor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up actor"})
		return
	}
	c.JSON(http.StatusOK, mapping)
}
