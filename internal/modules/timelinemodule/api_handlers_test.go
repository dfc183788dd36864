package timelinemodule

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, manager *Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	manager.RegisterRoutes(engine.Group("/api"))
	return engine
}

func TestHandleLoadTimeline(t *testing.T) {
	manager := newTestManager(t)
	engine := newTestRouter(t, manager)

	body := `{"title": "t", "clips": [{"kind": "video", "source": "a.mp4", "duration": 5}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/timeline", strings.NewReader(body))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_duration":5`)
	assert.Equal(t, 5.0, manager.Current().TotalDuration)
}

func TestHandleLoadTimelineRejectsBadManifest(t *testing.T) {
	manager := newTestManager(t)
	engine := newTestRouter(t, manager)

	body := `{"clips": [{"kind": "video", "source": "a.mp4", "duration": -1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/timeline", strings.NewReader(body))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"clip":0`)
	// The previous (empty) timeline stays in place.
	assert.True(t, manager.Current().Empty())
}

func TestHandleGetTimeline(t *testing.T) {
	manager := newTestManager(t)
	_, err := manager.Load([]byte(`{"title": "current", "clips": [{"kind": "video", "source": "a.mp4", "duration": 2}]}`))
	require.NoError(t, err)
	engine := newTestRouter(t, manager)

	req := httptest.NewRequest(http.MethodGet, "/api/timeline", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"current"`)
}

func TestHandleReloadWithoutManifestPath(t *testing.T) {
	manager := newTestManager(t)
	engine := newTestRouter(t, manager)

	req := httptest.NewRequest(http.MethodPost, "/api/timeline/reload", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
