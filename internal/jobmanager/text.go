package jobmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/textextract"
)

// runTextAndBM25 drains every QUEUED TEXT/BM25 artifact, extracting and
// normalizing each page's slide text once and fanning the result into both
// the page_text row and (when enabled) the BM25 index, committing on the
// job's configured page-count/elapsed-time cadence.
func (m *Manager) runTextAndBM25(ctx context.Context, jobID string, opts catalog.JobOptions, pause *pauseGate) error {
	if !opts.EnableText && !opts.EnableBM25 {
		return nil
	}

	taskID, ok, err := m.store.FirstQueuedTask(ctx, jobID, catalog.TaskText)
	if err != nil {
		return fmt.Errorf("finding text task: %w", err)
	}
	if !ok {
		return nil
	}

	items, err := m.store.QueuedTextWork(ctx, opts.FilePaths)
	if err != nil {
		return fmt.Errorf("listing queued text work: %w", err)
	}
	if len(items) == 0 {
		return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
	}

	if err := m.store.StartTask(ctx, taskID); err != nil {
		return fmt.Errorf("starting text task: %w", err)
	}

	commitEvery := opts.CommitEveryPages
	if commitEvery <= 0 {
		commitEvery = 1
	}
	commitInterval := time.Duration(opts.CommitEverySec * float64(time.Second))
	lastCommit := time.Now()
	sinceCommit := 0

	for i, it := range items {
		if err := pause.checkpoint(ctx); err != nil {
			return err
		}

		if err := m.processTextPage(ctx, jobID, it, opts); err != nil {
			m.log.Error("text extraction failed", "page_id", it.PageID, "error", err)
		}

		sinceCommit++
		progress := float64(i+1) / float64(len(items))
		if sinceCommit >= commitEvery || time.Since(lastCommit) >= commitInterval {
			if err := m.store.TouchTaskProgress(ctx, taskID, progress, fmt.Sprintf("%d/%d pages", i+1, len(items))); err != nil {
				return fmt.Errorf("updating text task progress: %w", err)
			}
			m.bus.Publish(jobID, "task_progress", map[string]any{"kind": "text", "progress": progress})
			sinceCommit = 0
			lastCommit = time.Now()
		}
	}

	if err := m.store.TouchTaskProgress(ctx, taskID, 1.0, fmt.Sprintf("%d/%d pages", len(items), len(items))); err != nil {
		return fmt.Errorf("finalizing text task progress: %w", err)
	}
	return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
}

// extractPage is the extraction seam; tests swap it out to control per-page
// timing and failure modes without fabricating slide XML.
var extractPage = textextract.ExtractPageText

func (m *Manager) processTextPage(ctx context.Context, jobID string, it catalog.TextWorkItem, opts catalog.JobOptions) error {
	if err := m.store.SetArtifactStatus(ctx, it.PageID, catalog.KindText, catalog.StatusRunning, ""); err != nil {
		return err
	}

	raw, norm, sig, err := extractPage(it.PPTXPath, it.PageNo)
	if err != nil {
		_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindText, catalog.ErrTextExtractFail, err.Error())
		m.publishArtifactState(jobID, it.PageID, catalog.KindText, catalog.StatusError, it.PPTXPath, it.PageNo)
		if opts.EnableBM25 {
			_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindBM25, catalog.ErrTextExtractFail, err.Error())
			m.publishArtifactState(jobID, it.PageID, catalog.KindBM25, catalog.StatusError, it.PPTXPath, it.PageNo)
		}
		return err
	}

	if err := m.store.UpsertPageText(ctx, it.PageID, raw, norm, sig); err != nil {
		return fmt.Errorf("storing page text for page %d: %w", it.PageID, err)
	}
	if opts.EnableText {
		if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindText, catalog.StatusReady); err != nil {
			return err
		}
		m.publishArtifactState(jobID, it.PageID, catalog.KindText, catalog.StatusReady, it.PPTXPath, it.PageNo)
	}

	if !opts.EnableBM25 {
		return nil
	}
	if err := m.store.SetArtifactStatus(ctx, it.PageID, catalog.KindBM25, catalog.StatusRunning, ""); err != nil {
		return err
	}
	if err := m.store.UpsertFTSPage(ctx, it.PageID, norm); err != nil {
		_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindBM25, catalog.ErrTextExtractFail, err.Error())
		m.publishArtifactState(jobID, it.PageID, catalog.KindBM25, catalog.StatusError, it.PPTXPath, it.PageNo)
		return fmt.Errorf("indexing bm25 for page %d: %w", it.PageID, err)
	}
	if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindBM25, catalog.StatusReady); err != nil {
		return err
	}
	m.publishArtifactState(jobID, it.PageID, catalog.KindBM25, catalog.StatusReady, it.PPTXPath, it.PageNo)
	return nil
}
