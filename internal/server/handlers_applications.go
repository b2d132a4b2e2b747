package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/applications"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListApplications(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}

	items, err := h.applications.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "failed to list applications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleCreateApplication(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}

	var input applications.ApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Request body must be a JSON object"})
		return
	}

	item, err := h.applications.Create(c.Request.Context(), userID, input)
	if err != nil {
		h.respondError(c, "failed to create application", err)
		return
	}
	h.reports.Invalidate(userID)
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h *httpHandler) handleGetApplication(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}
	applicationID, ok := h.applicationID(c)
	if !ok {
		return
	}

	item, err := h.applications.Get(c.Request.Context(), userID, applicationID)
	if err != nil {
		h.respondError(c, "failed to load application", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *httpHandler) handleUpdateApplication(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}
	applicationID, ok := h.applicationID(c)
	if !ok {
		return
	}

	var input applications.ApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Request body must be a JSON object"})
		return
	}

	item, err := h.applications.Update(c.Request.Context(), userID, applicationID, input)
	if err != nil {
		h.respondError(c, "failed to update application", err)
		return
	}
	h.reports.Invalidate(userID)
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *httpHandler) handleDeleteApplication(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}
	applicationID, ok := h.applicationID(c)
	if !ok {
		return
	}

	if err := h.applications.Delete(c.Request.Context(), userID, applicationID); err != nil {
		h.respondError(c, "failed to delete application", err)
		return
	}
	h.reports.Invalidate(userID)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) applicationID(c *gin.Context) (applications.ApplicationID, bool) {
	applicationID, err := applications.NewApplicationID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Application not found"})
		return "", false
	}
	return applicationID, true
}
