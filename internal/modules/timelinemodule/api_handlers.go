package timelinemodule

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the timeline endpoints
func (m *Manager) RegisterRoutes(r *gin.RouterGroup) {
	timeline := r.Group("/timeline")
	{
		timeline.GET("", m.handleGetTimeline)
		timeline.POST("", m.handleLoadTimeline)
		timeline.POST("/reload", m.handleReloadTimeline)
	}
}

// handleGetTimeline returns the current layout
func (m *Manager) handleGetTimeline(c *gin.Context) {
	c.JSON(http.StatusOK, m.Current())
}

// handleLoadTimeline loads a manifest from the request body
func (m *Manager) handleLoadTimeline(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	timeline, err := m.Load(data)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": loadErr.Error(),
				"clip":  loadErr.Index,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, timeline)
}

// handleReloadTimeline re-reads the configured manifest file
func (m *Manager) handleReloadTimeline(c *gin.Context) {
	timeline, err := m.Reload()
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": loadErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, timeline)
}
