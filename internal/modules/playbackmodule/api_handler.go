package playbackmodule

import (
	"net/http"

	"github.com/chai2010/webp"
	"github.com/gin-gonic/gin"
)

// SeekRequest is the body of a seek transport command
type SeekRequest struct {
	Time float64 `json:"time"`
}

// handlePlay starts playback
func (m *Manager) handlePlay(c *gin.Context) {
	m.Play()
	c.JSON(http.StatusOK, m.State())
}

// handlePause pauses playback
func (m *Manager) handlePause(c *gin.Context) {
	m.Pause()
	c.JSON(http.StatusOK, m.State())
}

// handleSeek moves the clock. Out-of-range times clamp rather than error.
func (m *Manager) handleSeek(c *gin.Context) {
	var request SeekRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m.Seek(request.Time)
	c.JSON(http.StatusOK, m.State())
}

// handleState returns the current playback snapshot
func (m *Manager) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, m.State())
}

// handleFrame returns the current render surface as a webp still
func (m *Manager) handleFrame(c *gin.Context) {
	frame := m.compositor.Snapshot()

	data, err := webp.EncodeRGBA(frame, previewFrameQuality)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode frame"})
		return
	}

	c.Data(http.StatusOK, "image/webp", data)
}
