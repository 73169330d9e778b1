// Package jobmanager owns the full indexing job lifecycle: create, pause,
// resume, cancel, the ordered pipelines (text+bm25, text embeddings,
// pdf+thumbnails, image embeddings), checkpointed commits, and a watchdog
// that fails stuck RUNNING tasks. Each job runs on its own goroutine with a
// context for cancellation and a pause gate every pipeline checks between
// units of work; all durable state lives in the catalog, so a crashed
// daemon leaves inspectable task rows behind.
package jobmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/eventbus"
	"github.com/allanyiin/slidemanager/internal/imageembed"
	"github.com/allanyiin/slidemanager/internal/planner"
	"github.com/allanyiin/slidemanager/internal/ratelimit"
	"github.com/allanyiin/slidemanager/internal/textembed"
)

type runningJob struct {
	cancel context.CancelFunc
	pause  *pauseGate
}

// Manager runs every indexing job for one library against its catalog
// Store, publishing lifecycle and progress events to Bus.
type Manager struct {
	store       *catalog.Store
	bus         *eventbus.Bus
	libraryRoot string
	log         *slog.Logger

	openAIAPIKey string

	embedderMu sync.Mutex
	embedder   *imageembed.Embedder

	mu   sync.Mutex
	jobs map[string]*runningJob

	watchdogOnce sync.Once
}

// New constructs a Manager for one library root.
func New(store *catalog.Store, bus *eventbus.Bus, libraryRoot, openAIAPIKey string, log *slog.Logger) *Manager {
	return &Manager{
		store:        store,
		bus:          bus,
		libraryRoot:  libraryRoot,
		openAIAPIKey: openAIAPIKey,
		log:          log,
		jobs:         make(map[string]*runningJob),
	}
}

// StartWatchdog launches the background staleness scanner exactly once.
func (m *Manager) StartWatchdog(ctx context.Context) {
	m.watchdogOnce.Do(func() {
		go m.watchdogLoop(ctx)
	})
}

// CreateJob inserts a new job row, registers its cancel/pause controls, and
// launches its run loop in the background, returning the new job id
// immediately; callers poll the snapshot endpoint or subscribe to events
// for progress.
func (m *Manager) CreateJob(parent context.Context, opts catalog.JobOptions) (string, error) {
	m.StartWatchdog(parent)

	jobID := fmt.Sprintf("J%s_%d", time.Now().Format("20060102_150405"), os.Getpid())

	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encoding job options: %w", err)
	}
	if err := m.store.InsertJob(parent, jobID, m.libraryRoot, string(optionsJSON)); err != nil {
		return "", fmt.Errorf("inserting job %s: %w", jobID, err)
	}
	m.bus.Publish(jobID, "job_created", map[string]any{"library_root": m.libraryRoot})

	ctx, cancel := context.WithCancel(context.Background())
	rj := &runningJob{cancel: cancel, pause: newPauseGate()}

	m.mu.Lock()
	m.jobs[jobID] = rj
	m.mu.Unlock()

	go m.runJob(ctx, jobID, opts, rj.pause)

	return jobID, nil
}

// PauseJob pauses a running job's pipelines at their next checkpoint.
func (m *Manager) PauseJob(ctx context.Context, jobID string) error {
	rj, ok := m.lookup(jobID)
	if !ok {
		return nil
	}
	rj.pause.pause()
	if err := m.store.SetJobStatus(ctx, jobID, catalog.JobPaused); err != nil {
		return err
	}
	if err := m.store.TouchTasksHeartbeat(ctx, jobID, catalog.TaskRunning, "paused"); err != nil {
		return err
	}
	m.bus.Publish(jobID, "job_paused", map[string]any{})
	return nil
}

// ResumeJob unblocks a paused job's pipelines.
func (m *Manager) ResumeJob(ctx context.Context, jobID string) error {
	rj, ok := m.lookup(jobID)
	if !ok {
		return nil
	}
	rj.pause.resume()
	if err := m.store.SetJobStatus(ctx, jobID, catalog.JobRunning); err != nil {
		return err
	}
	if err := m.store.TouchTasksHeartbeat(ctx, jobID, catalog.TaskRunning, "resumed"); err != nil {
		return err
	}
	m.bus.Publish(jobID, "job_resumed", map[string]any{})
	return nil
}

// CancelJob requests cancellation; the run loop observes this at its next
// checkpoint and performs the actual finalize-cancel bookkeeping.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	rj, ok := m.lookup(jobID)
	if !ok {
		return nil
	}
	rj.cancel()
	if err := m.store.SetJobStatus(ctx, jobID, catalog.JobCancelRequested); err != nil {
		return err
	}
	if err := m.store.TouchTasksHeartbeat(ctx, jobID, catalog.TaskRunning, "cancel_requested"); err != nil {
		return err
	}
	m.bus.Publish(jobID, "job_cancel_requested", map[string]any{})
	return nil
}

func (m *Manager) lookup(jobID string) (*runningJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rj, ok := m.jobs[jobID]
	return rj, ok
}

func (m *Manager) forget(jobID string) {
	m.mu.Lock()
	delete(m.jobs, jobID)
	m.mu.Unlock()
}

// runJob drives one job end to end: plan, then the four pipelines in a
// fixed order, finishing in COMPLETED/CANCELLED/FAILED. bg is used for the
// terminal-state writes, since ctx itself may already be cancelled by the
// time they run.
func (m *Manager) runJob(ctx context.Context, jobID string, opts catalog.JobOptions, pause *pauseGate) {
	bg := context.Background()
	defer func() {
		m.forget(jobID)
		m.bus.Forget(jobID)
	}()

	if err := m.store.SetJobStatus(bg, jobID, catalog.JobPlanning); err != nil {
		m.log.Error("set job planning status", "job_id", jobID, "error", err)
	}
	m.bus.Publish(jobID, "job_planning_started", map[string]any{})

	checkpoint := func(ctx context.Context) error { return pause.checkpoint(ctx) }
	result, err := planner.Plan(ctx, m.store, jobID, m.libraryRoot, opts, checkpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.finalizeCancel(bg, jobID)
			return
		}
		m.failJob(bg, jobID, err)
		return
	}
	m.bus.Publish(jobID, "job_planning_finished", map[string]any{
		"files":       result.FilesPlanned,
		"task_counts": result.TaskCounts,
		"task_total":  sumCounts(result.TaskCounts),
		"skipped":     result.Skipped,
	})

	if err := m.store.StartJob(bg, jobID); err != nil {
		m.log.Error("start job", "job_id", jobID, "error", err)
	}
	m.bus.Publish(jobID, "job_started", map[string]any{})

	stages := []func(context.Context, string, catalog.JobOptions, *pauseGate) error{
		m.runTextAndBM25,
		m.runTextEmbeddings,
		m.runPDFAndThumbs,
		m.runImageEmbeddings,
	}
	for _, stage := range stages {
		if err := stage(ctx, jobID, opts, pause); err != nil {
			if errors.Is(err, context.Canceled) {
				m.finalizeCancel(bg, jobID)
				return
			}
			m.failJob(bg, jobID, err)
			return
		}
	}

	if ctx.Err() != nil {
		m.finalizeCancel(bg, jobID)
		return
	}

	if err := m.store.FinishJob(bg, jobID, catalog.JobCompleted); err != nil {
		m.log.Error("finish job", "job_id", jobID, "error", err)
	}
	m.bus.Publish(jobID, "job_completed", map[string]any{})
}

func (m *Manager) failJob(ctx context.Context, jobID string, cause error) {
	m.log.Error("job failed", "job_id", jobID, "error", cause)
	if err := m.store.FinishJob(ctx, jobID, catalog.JobFailed); err != nil {
		m.log.Error("finish failed job", "job_id", jobID, "error", err)
	}
	m.bus.Publish(jobID, "job_failed", map[string]any{"error": cause.Error()})
}

// finalizeCancel marks every still-QUEUED/RUNNING task and artifact touched
// by this job as CANCELLED and resolves the job to its terminal CANCELLED
// status.
func (m *Manager) finalizeCancel(ctx context.Context, jobID string) {
	if err := m.store.CancelJobActiveWork(ctx, jobID); err != nil {
		m.log.Error("finalize cancel", "job_id", jobID, "error", err)
	}
	if err := m.store.FinishJob(ctx, jobID, catalog.JobCancelled); err != nil {
		m.log.Error("finish cancelled job", "job_id", jobID, "error", err)
	}
	m.bus.Publish(jobID, "job_cancelled", map[string]any{})
}

// publishArtifactState emits the per-artifact terminal-transition event the
// desktop client consumes for incremental page updates. Published once per
// (page, kind) as it reaches READY/ERROR/SKIPPED, independent of the
// coarser task_progress events the pipelines emit at commit cadence.
func (m *Manager) publishArtifactState(jobID string, pageID int64, kind catalog.ArtifactKind, status catalog.ArtifactStatus, filePath string, pageNo int) {
	m.bus.Publish(jobID, "artifact_state_changed", map[string]any{
		"page_id": pageID,
		"kind":    kind,
		"status":  status,
		"file":    filePath,
		"page_no": pageNo,
	})
}

func sumCounts(counts map[catalog.TaskKind]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// newTextEmbedClient lazily builds the OpenAI embeddings client for a job's
// configured rate limits; returns nil if no API key is configured, in which
// case the TEXT_VEC pipeline fails every non-cache-hit page with
// EMBED_FAIL rather than panicking on a nil client.
func (m *Manager) newTextEmbedClient(opts catalog.EmbedOptions) *textembed.Client {
	if m.openAIAPIKey == "" {
		return nil
	}
	limiter := ratelimit.New(opts.ReqPerMin, opts.TokPerMin)
	return textembed.NewClient(m.openAIAPIKey, limiter, opts.MaxRetries)
}

// imageEmbedder lazily loads the ONNX image embedder for the library root
// and caches it on the Manager; a failed load is not cached.
func (m *Manager) imageEmbedder() (*imageembed.Embedder, error) {
	m.embedderMu.Lock()
	defer m.embedderMu.Unlock()
	if m.embedder != nil {
		return m.embedder, nil
	}
	emb, err := imageembed.Load(m.libraryRoot)
	if err != nil {
		return nil, err
	}
	m.embedder = emb
	return m.embedder, nil
}
