package exportmodule

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ExportStartRequest is the body of an export start request
type ExportStartRequest struct {
	FPS int `json:"fps,omitempty"`
}

// RegisterRoutes mounts the export endpoints
func (m *Manager) RegisterRoutes(r *gin.RouterGroup) {
	export := r.Group("/export")
	{
		export.POST("", m.handleStart)
		export.GET("/sessions", m.handleListSessions)
		export.GET("/:id", m.handleGetJob)
		export.DELETE("/:id", m.handleCancel)
		export.GET("/:id/download", m.handleDownload)
	}
}

// handleStart launches an export of the current timeline
func (m *Manager) handleStart(c *gin.Context) {
	var request ExportStartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	job, err := m.StartExport(request.FPS)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// handleGetJob returns job status and progress
func (m *Manager) handleGetJob(c *gin.Context) {
	job, err := m.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleCancel requests cancellation of a running job
func (m *Manager) handleCancel(c *gin.Context) {
	if err := m.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

// handleDownload streams the finished MP4 buffer
func (m *Manager) handleDownload(c *gin.Context) {
	buffer, filename, err := m.Buffer(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "video/mp4", buffer)
}

// handleListSessions returns recent export session records
func (m *Manager) handleListSessions(c *gin.Context) {
	sessions, err := m.store.ListSessions(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
