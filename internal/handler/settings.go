package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SettingsReader interface {
	AllSettings(ctx context.Context) (map[string]string, error)
}

type SettingsHandler struct {
	Store SettingsReader
}

func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.Store.AllSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}
