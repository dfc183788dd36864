package exportmodule

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/database"
	"storyreel/internal/events"
	"storyreel/internal/modules/timelinemodule"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	db, err := database.Open(database.Config{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	return NewSessionStore(db, hclog.NewNullLogger())
}

func newTestExportManager(t *testing.T, manifest string, renderer Renderer, encoder Encoder) *Manager {
	t.Helper()
	logger := hclog.NewNullLogger()
	timelines := timelinemodule.NewManager(logger, "")
	if manifest != "" {
		_, err := timelines.Load([]byte(manifest))
		require.NoError(t, err)
	}
	newRenderer := func(*timelinemodule.Timeline) Renderer { return renderer }
	newEncoder := func(int) Encoder { return encoder }
	return NewManager(logger, events.NewBus(logger), newTestStore(t), timelines, newRenderer, newEncoder, 30, time.Second)
}

const smallManifest = `{"title": "My Trailer", "clips": [{"kind": "video", "source": "a.mp4", "duration": 0.5}]}`

func waitForStatus(t *testing.T, manager *Manager, id string, status Status) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		got, err := manager.GetJob(id)
		if err != nil {
			return false
		}
		job = got
		return job.Status == status
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestManagerExportLifecycle(t *testing.T) {
	renderer := &fakeExportRenderer{}
	encoder := &fakeEncoder{output: []byte("finished-mp4")}
	manager := newTestExportManager(t, smallManifest, renderer, encoder)

	job, err := manager.StartExport(10)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, 5, job.TotalFrames) // 0.5s at 10fps
	assert.Equal(t, "My Trailer", job.Title)

	done := waitForStatus(t, manager, job.ID, StatusCompleted)
	assert.Equal(t, 1.0, done.Progress)
	assert.Equal(t, 5, done.FramesDone)
	assert.Empty(t, done.Error)

	buffer, filename, err := manager.Buffer(job.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("finished-mp4"), buffer)
	assert.Contains(t, filename, "my-trailer-")
	assert.Contains(t, filename, ".mp4")

	// The persisted record reflects the terminal state.
	session, err := manager.store.GetSession(job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusCompleted), session.Status)
	assert.Equal(t, int64(len(buffer)), session.SizeBytes)
	require.NotNil(t, session.EndTime)
}

func TestManagerRejectsConcurrentExports(t *testing.T) {
	release := make(chan struct{})
	renderer := &fakeExportRenderer{
		updateHook: func(frame int, _ float64) error {
			if frame == 0 {
				<-release
			}
			return nil
		},
	}
	manager := newTestExportManager(t, smallManifest, renderer, &fakeEncoder{})

	job, err := manager.StartExport(10)
	require.NoError(t, err)

	_, err = manager.StartExport(10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")

	close(release)
	waitForStatus(t, manager, job.ID, StatusCompleted)

	// A finished job frees the slot.
	next, err := manager.StartExport(10)
	require.NoError(t, err)
	waitForStatus(t, manager, next.ID, StatusCompleted)
}

func TestManagerCancelExport(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	renderer := &fakeExportRenderer{
		updateHook: func(frame int, _ float64) error {
			if frame == 0 {
				close(started)
				<-block
			}
			return nil
		},
	}
	encoder := &fakeEncoder{}
	manager := newTestExportManager(t, smallManifest, renderer, encoder)

	job, err := manager.StartExport(10)
	require.NoError(t, err)
	<-started

	require.NoError(t, manager.Cancel(job.ID))
	close(block)

	cancelled := waitForStatus(t, manager, job.ID, StatusCancelled)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// No artifact for a cancelled job.
	_, _, err = manager.Buffer(job.ID)
	assert.Error(t, err)

	// Cancelling a terminal job is rejected.
	assert.Error(t, manager.Cancel(job.ID))

	session, err := manager.store.GetSession(job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusCancelled), session.Status)
}

func TestManagerRecordsFailure(t *testing.T) {
	renderer := &fakeExportRenderer{
		updateHook: func(frame int, _ float64) error {
			return assert.AnError
		},
	}
	manager := newTestExportManager(t, smallManifest, renderer, &fakeEncoder{})

	job, err := manager.StartExport(10)
	require.NoError(t, err)

	failed := waitForStatus(t, manager, job.ID, StatusFailed)
	assert.Contains(t, failed.Error, assert.AnError.Error())

	session, err := manager.store.GetSession(job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusFailed), session.Status)
	assert.NotEmpty(t, session.Error)
}

func TestManagerUnknownJob(t *testing.T) {
	manager := newTestExportManager(t, smallManifest, &fakeExportRenderer{}, &fakeEncoder{})

	_, err := manager.GetJob("missing")
	assert.Error(t, err)
	assert.Error(t, manager.Cancel("missing"))
	_, _, err = manager.Buffer("missing")
	assert.Error(t, err)
}

func TestDownloadFilename(t *testing.T) {
	start := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "my-trailer-20260829-103000.mp4", downloadFilename("My Trailer", start))
	assert.Equal(t, "export-20260829-103000.mp4", downloadFilename("", start))
	assert.Equal(t, "shadow--spire-20260829-103000.mp4", downloadFilename("Shadow & Spire!", start))
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", "t1", 30, 240)
	require.NoError(t, err)
	require.NoError(t, store.UpdateProgress("s1", 120, 0.5))

	session, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, 120, session.FramesDone)
	assert.Equal(t, 0.5, session.Progress)
	assert.Equal(t, string(StatusRunning), session.Status)

	require.NoError(t, store.CompleteSession("s1", 1024))
	session, err = store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, string(StatusCompleted), session.Status)
	assert.Equal(t, int64(1024), session.SizeBytes)
	assert.Equal(t, 1.0, session.Progress)

	_, err = store.GetSession("missing")
	assert.Error(t, err)
}

func TestSessionStoreListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i, id := range []string{"old", "mid", "new"} {
		_, err := store.CreateSession(id, "", 30, 10)
		require.NoError(t, err)
		// Separate the start times so ordering is deterministic.
		start := time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.db.Model(&database.ExportSession{}).
			Where("id = ?", id).Update("start_time", start).Error)
	}

	sessions, err := store.ListSessions(2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "mid", sessions[1].ID)
}
