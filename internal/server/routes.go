package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

var startTime = time.Now()

// handleStatus reports service and system health. Exposed so operators can
// watch resource pressure while an export encode is running.
func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"uptime":         time.Since(startTime).String(),
		"goroutines":     runtime.NumGoroutine(),
		"playback":       s.playback.State(),
		"open_resources": s.playback.Compositor().OpenResources(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_percent"] = vm.UsedPercent
	}

	c.JSON(http.StatusOK, status)
}
