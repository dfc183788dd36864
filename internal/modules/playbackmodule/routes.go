package playbackmodule

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the transport and preview endpoints
func (m *Manager) RegisterRoutes(r *gin.RouterGroup, hub *PreviewHub) {
	playback := r.Group("/playback")
	{
		playback.POST("/play", m.handlePlay)
		playback.POST("/pause", m.handlePause)
		playback.POST("/seek", m.handleSeek)
		playback.GET("/state", m.handleState)
	}

	preview := r.Group("/preview")
	{
		preview.GET("/frame", m.handleFrame)
		preview.GET("/ws", hub.HandleConnection)
	}
}
