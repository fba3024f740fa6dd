// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakeSource struct {
	mu         sync.Mutex
	snap       *model.Snapshot
	snapErr    error
	offlineErr error
	offline    []int64
}

func (f *fakeSource) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	// Fresh copy per call, like a repository read
	return &model.Snapshot{
		Sections: append([]model.Section(nil), f.snap.Sections...),
		Content:  append([]model.ContentItem(nil), f.snap.Content...),
		TakenAt:  f.snap.TakenAt,
	}, nil
}

func (f *fakeSource) SetOfflineMode(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, userID)
	return f.offlineErr
}

func (f *fakeSource) offlineUsers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.offline...)
}

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func idp(id int64) *int64 { return &id }

// sampleSnapshot has section A holding one text item "x".
func sampleSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Sections: []model.Section{
			{ID: 1, Title: "A", Icon: "📘", Active: true, CreatedAt: testTime},
		},
		Content: []model.ContentItem{
			{ID: 10, SectionID: 1, Kind: model.KindText, Body: "x", OrderIndex: 1, CreatedAt: testTime},
		},
		TakenAt: testTime,
	}
}

type testEnv struct {
	src      *fakeSource
	pipeline *Pipeline
	workDir  string
	mediaDir string
}

func newTestEnv(t *testing.T, snap *model.Snapshot, mutate ...func(*Options)) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		src:      &fakeSource{snap: snap},
		workDir:  filepath.Join(root, "work"),
		mediaDir: filepath.Join(root, "media"),
	}
	require.NoError(t, os.MkdirAll(env.mediaDir, 0755))

	opts := &Options{
		WorkDir:         env.workDir,
		Media:           DirResolver{Root: env.mediaDir},
		SiteTitle:       "Field Reference",
		AllowMarkup:     true,
		DeliveryTimeout: 5 * time.Second,
	}
	for _, m := range mutate {
		m(opts)
	}
	env.pipeline = New(env.src, opts, zerolog.Nop())
	return env
}

func (e *testEnv) addMedia(t *testing.T, name, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.mediaDir, name), []byte(data), 0644))
}

// bundle is what a deliverer saw inside the archive.
type bundle struct {
	files      map[string][]byte
	order      []string
	mediaCount int
}

// capture returns a deliverer that reads the archive before it is removed.
func capture(t *testing.T, out *bundle) Deliverer {
	return DelivererFunc(func(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return err
		}
		defer zr.Close()

		out.files = make(map[string][]byte)
		out.order = nil
		out.mediaCount = mediaCount
		for _, f := range zr.File {
			out.order = append(out.order, f.Name)
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return err
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return err
			}
			out.files[f.Name] = data
		}
		return nil
	})
}

func assertCleanedUp(t *testing.T, env *testEnv, requesterID int64) {
	t.Helper()
	entries, err := os.ReadDir(env.workDir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "work dir should be empty after requester %d", requesterID)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExport_Scenario(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())

	var got bundle
	res, err := env.pipeline.Export(context.Background(), 7, capture(t, &got))
	require.NoError(t, err)

	assert.Equal(t, int64(7), res.RequesterID)
	assert.Equal(t, 0, res.MediaCount)
	assert.Equal(t, 1, res.Sections)
	assert.Equal(t, 1, res.Items)
	assert.NotEmpty(t, res.JobID)
	assert.Len(t, res.Checksum, 64)
	assert.Positive(t, res.ArchiveBytes)
	assert.Equal(t, 0, got.mediaCount)

	assert.Equal(t, []string{"README.md", "content.json", "index.html", "media/", "sections.json"}, got.order)

	var content []map[string]interface{}
	require.NoError(t, json.Unmarshal(got.files["content.json"], &content))
	require.Len(t, content, 1)
	assert.Equal(t, "x", content[0]["text_content"])
	assert.Equal(t, "A", content[0]["section_title"])

	var sections []model.Section
	require.NoError(t, json.Unmarshal(got.files["sections.json"], &sections))
	require.Len(t, sections, 1)
	assert.Equal(t, "A", sections[0].Title)

	page := string(got.files["index.html"])
	assert.Contains(t, page, `id="section-1"`)
	assert.Contains(t, page, "<h2>📘 A</h2>")
	assert.Contains(t, page, `<div class="text">x</div>`)

	assert.Equal(t, []int64{7}, env.src.offlineUsers())
	assertCleanedUp(t, env, 7)

	status, ok := env.pipeline.Job(res.JobID)
	require.True(t, ok)
	assert.Equal(t, StateDelivered, status.State)
}

func TestExport_Deterministic(t *testing.T) {
	snap := sampleSnapshot()
	snap.Sections = append(snap.Sections, model.Section{ID: 2, Title: "B", ParentID: idp(1), Active: true, CreatedAt: testTime})
	snap.Content = append(snap.Content, model.ContentItem{ID: 11, SectionID: 2, Kind: model.KindImage, MediaRef: "map.png", OrderIndex: 1, CreatedAt: testTime})
	env := newTestEnv(t, snap)
	env.addMedia(t, "map.png", "png-bytes")

	var first, second bundle
	r1, err := env.pipeline.Export(context.Background(), 1, capture(t, &first))
	require.NoError(t, err)
	r2, err := env.pipeline.Export(context.Background(), 1, capture(t, &second))
	require.NoError(t, err)

	for _, name := range []string{"index.html", "sections.json", "content.json", "README.md"} {
		assert.Equal(t, first.files[name], second.files[name], name)
	}
	assert.Equal(t, r1.Checksum, r2.Checksum)
	assert.Equal(t, []byte("png-bytes"), first.files["media/11_map.png"])
}

func TestExport_MissingMedia(t *testing.T) {
	snap := sampleSnapshot()
	snap.Content = append(snap.Content,
		model.ContentItem{ID: 11, SectionID: 1, Kind: model.KindImage, MediaRef: "missing.png", OrderIndex: 2},
		model.ContentItem{ID: 12, SectionID: 1, Kind: model.KindDocument, MediaRef: "guide.pdf", OrderIndex: 3, ButtonLabel: "Guide"},
	)
	env := newTestEnv(t, snap)
	env.addMedia(t, "guide.pdf", "%PDF")

	var got bundle
	res, err := env.pipeline.Export(context.Background(), 3, capture(t, &got))
	require.NoError(t, err)

	assert.Equal(t, 1, res.MediaCount)
	assert.Equal(t, []int64{11}, res.Unavailable)
	assert.Equal(t, 1, got.mediaCount)

	page := string(got.files["index.html"])
	assert.Contains(t, page, "Media unavailable")
	assert.NotContains(t, page, "missing.png")
	assert.Contains(t, page, `href="media/12_guide.pdf"`)

	var content []contentRecord
	require.NoError(t, json.Unmarshal(got.files["content.json"], &content))
	require.Len(t, content, 3)
	require.NotNil(t, content[1].MediaAvailable)
	assert.False(t, *content[1].MediaAvailable)
	assert.Empty(t, content[1].MediaPath)
	require.NotNil(t, content[2].MediaAvailable)
	assert.True(t, *content[2].MediaAvailable)
	assert.Equal(t, "media/12_guide.pdf", content[2].MediaPath)
}

func TestExport_EmptyRepository(t *testing.T) {
	env := newTestEnv(t, &model.Snapshot{TakenAt: testTime})

	var got bundle
	res, err := env.pipeline.Export(context.Background(), 1, capture(t, &got))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sections)
	assert.Equal(t, "[]\n", string(got.files["sections.json"]))
	assert.Equal(t, "[]\n", string(got.files["content.json"]))
	assert.Contains(t, string(got.files["index.html"]), "No sections.")
}

func TestExport_InProgress(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := DelivererFunc(func(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
		close(entered)
		<-release
		return nil
	})

	errc := make(chan error, 1)
	go func() {
		_, err := env.pipeline.Export(context.Background(), 5, blocking)
		errc <- err
	}()
	<-entered

	_, err := env.pipeline.Export(context.Background(), 5, capture(t, &bundle{}))
	assert.ErrorIs(t, err, ErrExportInProgress)

	status, ok := env.pipeline.Running(5)
	require.True(t, ok)
	assert.Equal(t, StateArchiving, status.State)

	// Other requesters are not blocked
	_, err = env.pipeline.Export(context.Background(), 6, capture(t, &bundle{}))
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-errc)

	_, ok = env.pipeline.Running(5)
	assert.False(t, ok)
	assertCleanedUp(t, env, 5)
}

func TestExport_RateLimited(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot(), func(o *Options) {
		o.MinInterval = time.Hour
		o.Burst = 1
	})

	_, err := env.pipeline.Export(context.Background(), 1, capture(t, &bundle{}))
	require.NoError(t, err)

	_, err = env.pipeline.Export(context.Background(), 1, capture(t, &bundle{}))
	assert.ErrorIs(t, err, ErrRateLimited)

	// Limits are per requester
	_, err = env.pipeline.Export(context.Background(), 2, capture(t, &bundle{}))
	assert.NoError(t, err)
}

func TestExport_DeliveryFailure(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())

	var jobID, archive string
	failing := DelivererFunc(func(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
		status, _ := env.pipeline.Running(requesterID)
		jobID = status.ID
		archive = archivePath
		return errors.New("chat unreachable")
	})

	_, err := env.pipeline.Export(context.Background(), 4, failing)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Contains(t, err.Error(), "chat unreachable")

	status, ok := env.pipeline.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, StateFailed, status.State)
	assert.NotEmpty(t, status.Error)

	assert.NoFileExists(t, archive)
	assert.Empty(t, env.src.offlineUsers())
	assertCleanedUp(t, env, 4)
}

func TestExport_OfflineModeErrorKeepsDelivery(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())
	env.src.offlineErr = errors.New("db locked")

	res, err := env.pipeline.Export(context.Background(), 2, capture(t, &bundle{}))
	require.NoError(t, err)

	status, ok := env.pipeline.Job(res.JobID)
	require.True(t, ok)
	assert.Equal(t, StateDelivered, status.State)
}

func TestExport_SnapshotError(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())
	env.src.snapErr = errors.New("disk gone")

	called := false
	_, err := env.pipeline.Export(context.Background(), 9, DelivererFunc(func(context.Context, int64, string, int) error {
		called = true
		return nil
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.False(t, called)
	assertCleanedUp(t, env, 9)
}

// plantingResolver damages the work dir from inside the media stage and
// reports the asset missing, so the failure surfaces in a later stage.
type plantingResolver struct {
	t         *testing.T
	pipeline  *Pipeline
	requester int64
	workDir   string
	plant     func(workDir string) error

	jobID   string
	updates <-chan JobStatus
}

func (r *plantingResolver) Resolve(ref string) (string, error) {
	status, ok := r.pipeline.Running(r.requester)
	require.True(r.t, ok)
	r.jobID = status.ID
	r.updates, _, _ = r.pipeline.Subscribe(status.ID)
	require.NoError(r.t, r.plant(r.workDir))
	return "", fmt.Errorf("%w: %s", ErrMediaUnavailable, ref)
}

func TestExport_IOFailureCleansUp(t *testing.T) {
	tests := []struct {
		name     string
		plant    func(workDir string) error
		failedIn State
	}{
		{
			name: "rendering",
			// A directory in place of the page cannot be written over
			plant: func(workDir string) error {
				return os.Mkdir(filepath.Join(workDir, indexFile), 0755)
			},
			failedIn: StateRendering,
		},
		{
			name: "archiving",
			// A dangling link is listed but cannot be opened
			plant: func(workDir string) error {
				return os.Symlink(filepath.Join(workDir, "gone"), filepath.Join(workDir, mediaDir, "dangling"))
			},
			failedIn: StateArchiving,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "archiving" && runtime.GOOS == "windows" {
				t.Skip("symlinks need extra privileges on Windows")
			}

			snap := sampleSnapshot()
			snap.Content = append(snap.Content, model.ContentItem{ID: 11, SectionID: 1, Kind: model.KindImage, MediaRef: "map.png", OrderIndex: 2})
			env := newTestEnv(t, snap)
			resolver := &plantingResolver{
				t:         t,
				pipeline:  env.pipeline,
				requester: 3,
				workDir:   filepath.Join(env.workDir, "3"),
				plant:     tt.plant,
			}
			env.pipeline.opts.Media = resolver

			called := false
			_, err := env.pipeline.Export(context.Background(), 3, DelivererFunc(func(context.Context, int64, string, int) error {
				called = true
				return nil
			}))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIO)
			assert.False(t, called)

			var states []State
			for st := range resolver.updates {
				states = append(states, st.State)
			}
			require.GreaterOrEqual(t, len(states), 2)
			assert.Equal(t, tt.failedIn, states[len(states)-2])
			assert.Equal(t, StateFailed, states[len(states)-1])

			status, ok := env.pipeline.Job(resolver.jobID)
			require.True(t, ok)
			assert.Equal(t, StateFailed, status.State)
			assert.NotEmpty(t, status.Error)

			assert.NoFileExists(t, filepath.Join(env.workDir, "3_offline_pack.zip"))
			assert.NoDirExists(t, filepath.Join(env.workDir, "3"))
			assertCleanedUp(t, env, 3)
			assert.Empty(t, env.src.offlineUsers())
		})
	}
}

func TestExport_Cancel(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())

	var jobID string
	cancelling := DelivererFunc(func(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
		status, _ := env.pipeline.Running(requesterID)
		jobID = status.ID
		assert.True(t, env.pipeline.Cancel(requesterID))
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := env.pipeline.Export(context.Background(), 8, cancelling)
	assert.ErrorIs(t, err, context.Canceled)

	status, ok := env.pipeline.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, StateFailed, status.State)
	assert.False(t, env.pipeline.Cancel(8))
	assertCleanedUp(t, env, 8)
}

func TestExport_CancelledContext(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline.Export(ctx, 1, capture(t, &bundle{}))
	assert.ErrorIs(t, err, context.Canceled)
	assertCleanedUp(t, env, 1)
}

func TestExport_NilDeliverer(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())
	_, err := env.pipeline.Export(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestExport_Subscribe(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())

	var events <-chan JobStatus
	subscribing := DelivererFunc(func(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
		status, _ := env.pipeline.Running(requesterID)
		ch, _, ok := env.pipeline.Subscribe(status.ID)
		if !ok {
			return errors.New("job not found")
		}
		events = ch
		return nil
	})

	_, err := env.pipeline.Export(context.Background(), 1, subscribing)
	require.NoError(t, err)

	var states []State
	for st := range events {
		states = append(states, st.State)
	}
	assert.Equal(t, []State{StateArchiving, StateDelivered}, states)

	_, _, ok := env.pipeline.Subscribe("no-such-job")
	assert.False(t, ok)
}

func TestSetRendering(t *testing.T) {
	env := newTestEnv(t, sampleSnapshot())
	env.pipeline.SetRendering("Полевой справочник", false)

	var got bundle
	_, err := env.pipeline.Export(context.Background(), 1, capture(t, &got))
	require.NoError(t, err)
	assert.Contains(t, string(got.files["index.html"]), "<title>Полевой справочник</title>")
	assert.Contains(t, string(got.files["README.md"]), "# Полевой справочник")
}

func TestResultSummary(t *testing.T) {
	r := &Result{MediaCount: 2, CompletedAt: testTime}
	s := r.Summary()
	assert.Contains(t, s, "Media files: 2")
	assert.Contains(t, s, "2025-03-01 12:00")
}

// =============================================================================
// JOBS
// =============================================================================

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateRequested, StateSnapshotting, true},
		{StateSnapshotting, StateMediaCopying, true},
		{StateMediaCopying, StateRendering, true},
		{StateRendering, StateArchiving, true},
		{StateArchiving, StateDelivered, true},
		{StateRequested, StateRendering, false},
		{StateArchiving, StateSnapshotting, false},
		{StateRendering, StateFailed, true},
		{StateDelivered, StateFailed, false},
		{StateFailed, StateRequested, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, validTransition(tt.from, tt.to))
		})
	}
}

func TestJob_FailIsFinal(t *testing.T) {
	j := newJob(1, nil, testTime)
	require.NoError(t, j.transition(StateSnapshotting, testTime))
	j.fail(errors.New("boom"), testTime)
	j.fail(errors.New("again"), testTime)

	st := j.snapshot()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "boom", st.Error)
	assert.Error(t, j.transition(StateMediaCopying, testTime))
}

func TestRegistry_History(t *testing.T) {
	r := newRegistry(2)

	var ids []string
	for i := int64(1); i <= 3; i++ {
		j, err := r.begin(i, nil, testTime)
		require.NoError(t, err)
		ids = append(ids, j.id())
		r.finish(j)
	}

	_, ok := r.get(ids[0])
	assert.False(t, ok)
	_, ok = r.get(ids[2])
	assert.True(t, ok)
	assert.False(t, r.cancel(1))
}
