// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrExportInProgress is returned when the requester already has an export running.
	ErrExportInProgress = errors.New("export already in progress")

	// ErrRateLimited is returned when the requester asks for exports too often.
	ErrRateLimited = errors.New("export rate limit exceeded")

	// ErrMediaUnavailable marks a media reference that has no file behind it.
	// It is logged per item and never returned from Export.
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrIO wraps disk, permission and archive failures.
	ErrIO = errors.New("export I/O failure")

	// ErrDelivery wraps a failure reported by the Deliverer.
	ErrDelivery = errors.New("delivery failed")
)

// FailureMessage is what a requester is told when an export fails.
const FailureMessage = "The offline pack could not be created. Please try again in a few minutes."

// =============================================================================
// CONTRACTS
// =============================================================================

// Source is the part of the repository the pipeline needs.
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
	SetOfflineMode(ctx context.Context, userID int64) error
}

// Deliverer hands a finished archive to the requester. The archive is removed
// as soon as Deliver returns, so implementations must finish with the file
// before returning.
type Deliverer interface {
	Deliver(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, requesterID int64, archivePath string, mediaCount int) error {
	return f(ctx, requesterID, archivePath, mediaCount)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the pipeline.
type Options struct {
	// WorkDir holds per-requester working directories and archives.
	WorkDir string

	// Media resolves media references. Default: DirResolver rooted at "media".
	Media MediaResolver

	// SiteTitle is the heading of the static view.
	SiteTitle string

	// AllowMarkup keeps inline markup in text bodies.
	AllowMarkup bool

	// MinInterval is the minimum spacing between exports of one requester.
	// Zero disables rate limiting.
	MinInterval time.Duration

	// Burst is how many exports a requester may start back to back.
	Burst int

	// DeliveryTimeout bounds one Deliver call.
	DeliveryTimeout time.Duration

	// HistorySize is how many finished jobs Job can still report.
	HistorySize int
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		WorkDir:         filepath.Join(os.TempDir(), "fieldref-export"),
		Media:           DirResolver{Root: "media"},
		SiteTitle:       "Field Reference",
		AllowMarkup:     true,
		MinInterval:     time.Minute,
		Burst:           1,
		DeliveryTimeout: 2 * time.Minute,
		HistorySize:     100,
	}
}

// =============================================================================
// RESULT
// =============================================================================

// Result describes a delivered export.
type Result struct {
	JobID        string        `json:"job_id"`
	RequesterID  int64         `json:"requester_id"`
	MediaCount   int           `json:"media_count"`
	Unavailable  []int64       `json:"unavailable,omitempty"`
	Sections     int           `json:"sections"`
	Items        int           `json:"items"`
	ArchiveBytes int64         `json:"archive_bytes"`
	Checksum     string        `json:"checksum"`
	Duration     time.Duration `json:"duration"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Summary is the success text shown to the requester.
func (r *Result) Summary() string {
	return fmt.Sprintf("Offline pack ready\nCreated: %s\nMedia files: %d\nUnpack the archive and open index.html in a browser.",
		formatTimestamp(r.CompletedAt), r.MediaCount)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs exports. It is safe for concurrent use; exports for different
// requesters run in parallel, one per requester at a time.
type Pipeline struct {
	src  Source
	opts Options
	log  zerolog.Logger
	jobs *registry

	limiterMu sync.Mutex
	limiters  map[int64]*rate.Limiter

	renderMu sync.RWMutex
	renderer *HTMLRenderer

	// now is the clock; tests replace it
	now func() time.Time
}

// New creates a pipeline reading from src.
func New(src Source, opts *Options, logger zerolog.Logger) *Pipeline {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	defaults := DefaultOptions()
	if o.WorkDir == "" {
		o.WorkDir = defaults.WorkDir
	}
	if o.Media == nil {
		o.Media = defaults.Media
	}
	if o.Burst < 1 {
		o.Burst = 1
	}
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = defaults.DeliveryTimeout
	}
	if o.HistorySize <= 0 {
		o.HistorySize = defaults.HistorySize
	}

	return &Pipeline{
		src:      src,
		opts:     o,
		log:      logger.With().Str("component", "export").Logger(),
		jobs:     newRegistry(o.HistorySize),
		limiters: make(map[int64]*rate.Limiter),
		renderer: NewHTMLRenderer(o.SiteTitle, o.AllowMarkup),
		now:      time.Now,
	}
}

// SetRendering replaces the static view settings for later exports.
func (p *Pipeline) SetRendering(title string, allowMarkup bool) {
	r := NewHTMLRenderer(title, allowMarkup)
	p.renderMu.Lock()
	p.renderer = r
	p.renderMu.Unlock()
}

func (p *Pipeline) currentRenderer() *HTMLRenderer {
	p.renderMu.RLock()
	defer p.renderMu.RUnlock()
	return p.renderer
}

// allow reports whether requesterID may start an export now.
func (p *Pipeline) allow(requesterID int64) bool {
	if p.opts.MinInterval <= 0 {
		return true
	}

	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()

	limiter, ok := p.limiters[requesterID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.opts.MinInterval), p.opts.Burst)
		p.limiters[requesterID] = limiter
	}
	return limiter.Allow()
}

// Cancel stops the in-flight export of requesterID. It reports whether there
// was one to cancel.
func (p *Pipeline) Cancel(requesterID int64) bool {
	return p.jobs.cancel(requesterID)
}

// Job returns the status of a running or recently finished job.
func (p *Pipeline) Job(id string) (JobStatus, bool) {
	j, ok := p.jobs.get(id)
	if !ok {
		return JobStatus{}, false
	}
	return j.snapshot(), true
}

// Running returns the status of requesterID's in-flight job, if any.
func (p *Pipeline) Running(requesterID int64) (JobStatus, bool) {
	j, ok := p.jobs.running(requesterID)
	if !ok {
		return JobStatus{}, false
	}
	return j.snapshot(), true
}

// Subscribe streams the status changes of job id. The channel starts with
// the current status and is closed when the job ends; call the returned
// function to stop early.
func (p *Pipeline) Subscribe(id string) (<-chan JobStatus, func(), bool) {
	j, ok := p.jobs.get(id)
	if !ok {
		return nil, nil, false
	}
	ch, stop := j.subscribe()
	return ch, stop, true
}

// Export builds the bundle for requesterID and hands it to d. The working
// directory and archive are removed on every exit path.
func (p *Pipeline) Export(ctx context.Context, requesterID int64, d Deliverer) (*Result, error) {
	if d == nil {
		return nil, errors.New("deliverer cannot be nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j, err := p.jobs.begin(requesterID, cancel, p.now())
	if err != nil {
		return nil, err
	}
	if !p.allow(requesterID) {
		p.jobs.abandon(j)
		return nil, ErrRateLimited
	}
	defer p.jobs.finish(j)

	log := p.log.With().Str("job", j.id()).Int64("requester", requesterID).Logger()
	log.Info().Msg("export requested")

	workDir := filepath.Join(p.opts.WorkDir, strconv.FormatInt(requesterID, 10))
	archivePath := filepath.Join(p.opts.WorkDir, fmt.Sprintf("%d_offline_pack.zip", requesterID))
	defer p.cleanup(log, workDir, archivePath)

	res, err := p.run(ctx, j, log, requesterID, workDir, archivePath, d)
	if err != nil {
		j.fail(err, p.now())
		log.Warn().Err(err).Msg("export failed")
		return nil, err
	}

	log.Info().
		Int("media", res.MediaCount).
		Int64("bytes", res.ArchiveBytes).
		Dur("duration", res.Duration).
		Msg("export delivered")
	return res, nil
}

// run performs the stages in order. Cancellation is checked before each stage.
func (p *Pipeline) run(ctx context.Context, j *job, log zerolog.Logger, requesterID int64, workDir, archivePath string, d Deliverer) (*Result, error) {
	start := p.now()
	step := func(s State) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return j.transition(s, p.now())
	}

	// Snapshot
	if err := step(StateSnapshotting); err != nil {
		return nil, err
	}
	snap, err := p.src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if err := prepareWorkDir(workDir); err != nil {
		return nil, err
	}

	// Media
	if err := step(StateMediaCopying); err != nil {
		return nil, err
	}
	media, err := copyMedia(ctx, log, p.opts.Media, snap, workDir)
	if err != nil {
		return nil, err
	}
	j.setMediaCount(len(media.paths))

	// Mirror and static view
	if err := step(StateRendering); err != nil {
		return nil, err
	}
	if err := writeMirror(workDir, snap, media); err != nil {
		return nil, err
	}
	renderer := p.currentRenderer()
	if err := writePage(workDir, indexFile, renderer.Render(snap, media)); err != nil {
		return nil, err
	}
	if err := writePage(workDir, readmeFile, renderOutline(renderer.title, snap, media)); err != nil {
		return nil, err
	}

	// Archive and hand off
	if err := step(StateArchiving); err != nil {
		return nil, err
	}
	info, err := writeArchive(ctx, workDir, archivePath, snap.TakenAt)
	if err != nil {
		return nil, err
	}

	dctx, dcancel := context.WithTimeout(ctx, p.opts.DeliveryTimeout)
	err = d.Deliver(dctx, requesterID, archivePath, len(media.paths))
	dcancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := j.transition(StateDelivered, p.now()); err != nil {
		return nil, err
	}

	// Delivery already happened; a stats failure must not undo it
	if err := p.src.SetOfflineMode(context.WithoutCancel(ctx), requesterID); err != nil {
		log.Error().Err(err).Msg("failed to record offline mode")
	}

	done := p.now()
	return &Result{
		JobID:        j.id(),
		RequesterID:  requesterID,
		MediaCount:   len(media.paths),
		Unavailable:  media.unavailable,
		Sections:     len(snap.Sections),
		Items:        len(snap.Content),
		ArchiveBytes: info.size,
		Checksum:     info.checksum,
		Duration:     done.Sub(start),
		CompletedAt:  done,
	}, nil
}

// prepareWorkDir replaces any stale directory with an empty one.
func prepareWorkDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: clear work dir: %v", ErrIO, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, mediaDir), 0755); err != nil {
		return fmt.Errorf("%w: create work dir: %v", ErrIO, err)
	}
	return nil
}

func writePage(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, name, err)
	}
	return nil
}

// cleanup removes the working directory and the archive, best effort.
func (p *Pipeline) cleanup(log zerolog.Logger, workDir, archivePath string) {
	if err := os.RemoveAll(workDir); err != nil {
		log.Warn().Err(err).Str("path", workDir).Msg("failed to remove work dir")
	}
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", archivePath).Msg("failed to remove archive")
	}
}
