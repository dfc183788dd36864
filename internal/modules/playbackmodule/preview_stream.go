package playbackmodule

import (
	"net/http"
	"time"

	"github.com/chai2010/webp"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"storyreel/internal/events"
)

// previewFrameQuality is the webp quality used for pushed preview frames.
// Preview is a monitoring surface, not the export artifact, so a lossy
// encode at interactive size is fine.
const previewFrameQuality = 80

// previewFrameInterval paces frame pushes to websocket clients. The surface
// is rendered at the scheduler rate regardless; this only bounds network
// traffic.
const previewFrameInterval = 200 * time.Millisecond

// PreviewHub pushes playback state changes, export progress and webp preview
// frames to connected websocket clients
type PreviewHub struct {
	logger   hclog.Logger
	bus      *events.Bus
	manager  *Manager
	upgrader websocket.Upgrader
}

// NewPreviewHub creates a websocket hub bound to the playback manager
func NewPreviewHub(logger hclog.Logger, bus *events.Bus, manager *Manager) *PreviewHub {
	return &PreviewHub{
		logger:  logger.Named("preview-hub"),
		bus:     bus,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin: func(*http.Request) bool {
				// The service fronts a local editing UI; origin policy is
				// delegated to the deployment proxy.
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and serves one preview client
func (h *PreviewHub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.logger.Debug("preview client connected", "remote", conn.RemoteAddr())
	go h.serve(conn)
}

func (h *PreviewHub) serve(conn *websocket.Conn) {
	defer conn.Close()

	eventCh, unsubscribe := h.bus.Subscribe(32)
	defer unsubscribe()

	// Reader goroutine: drains control frames and unblocks on close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	frames := time.NewTicker(previewFrameInterval)
	defer frames.Stop()

	// Initial state so clients don't wait for the first transition.
	if err := conn.WriteJSON(h.manager.State()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			h.logger.Debug("preview client disconnected", "remote", conn.RemoteAddr())
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-frames.C:
			frame := h.manager.Compositor().Snapshot()
			data, err := webp.EncodeRGBA(frame, previewFrameQuality)
			if err != nil {
				h.logger.Warn("failed to encode preview frame", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}
}
