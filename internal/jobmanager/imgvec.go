package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/imageembed"
	"github.com/allanyiin/slidemanager/internal/textembed"
)

// runImageEmbeddings drains every QUEUED IMG_VEC artifact. A missing ONNX
// model asset or a missing thumbnail degrades every affected page to
// SKIPPED rather than ERROR: the pipeline is optional, not a hard
// dependency of a usable index.
func (m *Manager) runImageEmbeddings(ctx context.Context, jobID string, opts catalog.JobOptions, pause *pauseGate) error {
	if !opts.EnableImgVec || !opts.Embed.EnabledImage || !opts.Thumb.Enabled {
		return nil
	}

	taskID, ok, err := m.store.FirstQueuedTask(ctx, jobID, catalog.TaskImgVec)
	if err != nil {
		return fmt.Errorf("finding img_vec task: %w", err)
	}
	if !ok {
		return nil
	}

	items, err := m.store.QueuedImgVecWork(ctx, opts.FilePaths)
	if err != nil {
		return fmt.Errorf("listing queued img_vec work: %w", err)
	}
	if len(items) == 0 {
		return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
	}

	if err := m.store.StartTask(ctx, taskID); err != nil {
		return fmt.Errorf("starting img_vec task: %w", err)
	}

	embedder, embErr := m.imageEmbedder()
	if embErr != nil && !errors.Is(embErr, imageembed.ErrModelMissing) {
		m.log.Error("loading image embedder", "error", embErr)
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

		if embErr != nil {
			_ = m.store.MarkArtifactErrorNoRetryCount(ctx, it.PageID, catalog.KindImgVec, catalog.ErrImgVecSkipped, "missing onnx model")
			if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindImgVec, catalog.StatusSkipped); err != nil {
				return err
			}
			m.publishArtifactState(jobID, it.PageID, catalog.KindImgVec, catalog.StatusSkipped, it.PPTXPath, it.PageNo)
		} else if err := m.processImgVecPage(ctx, jobID, it, embedder); err != nil {
			m.log.Error("img_vec page failed", "page_id", it.PageID, "error", err)
		}

		sinceCommit++
		progress := float64(i+1) / float64(len(items))
		if sinceCommit >= commitEvery || time.Since(lastCommit) >= commitInterval {
			if err := m.store.TouchTaskProgress(ctx, taskID, progress, fmt.Sprintf("%d/%d pages", i+1, len(items))); err != nil {
				return fmt.Errorf("updating img_vec task progress: %w", err)
			}
			m.bus.Publish(jobID, "task_progress", map[string]any{"kind": "img_vec", "progress": progress})
			sinceCommit = 0
			lastCommit = time.Now()
		}
	}

	if err := m.store.TouchTaskProgress(ctx, taskID, 1.0, fmt.Sprintf("%d/%d pages", len(items), len(items))); err != nil {
		return fmt.Errorf("finalizing img_vec task progress: %w", err)
	}
	return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
}

func (m *Manager) processImgVecPage(ctx context.Context, jobID string, it catalog.ImgVecWorkItem, embedder *imageembed.Embedder) error {
	if err := m.store.SetArtifactStatus(ctx, it.PageID, catalog.KindImgVec, catalog.StatusRunning, ""); err != nil {
		return err
	}

	path, ok, err := m.store.ThumbnailPath(ctx, it.PageID)
	if err != nil {
		return err
	}
	if !ok {
		_ = m.store.MarkArtifactErrorNoRetryCount(ctx, it.PageID, catalog.KindImgVec, catalog.ErrThumbMissing, "no thumbnail available")
		if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindImgVec, catalog.StatusSkipped); err != nil {
			return err
		}
		m.publishArtifactState(jobID, it.PageID, catalog.KindImgVec, catalog.StatusSkipped, it.PPTXPath, it.PageNo)
		return nil
	}

	vec, err := embedder.Embed(path)
	if err != nil {
		_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindImgVec, catalog.ErrImgVecFail, err.Error())
		m.publishArtifactState(jobID, it.PageID, catalog.KindImgVec, catalog.StatusError, it.PPTXPath, it.PageNo)
		return fmt.Errorf("embedding page %d: %w", it.PageID, err)
	}

	packed := textembed.PackF32(vec)
	if err := m.store.UpsertPageImageEmbedding(ctx, it.PageID, embedder.ModelID(), len(vec), packed); err != nil {
		return fmt.Errorf("storing image embedding for page %d: %w", it.PageID, err)
	}
	if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindImgVec, catalog.StatusReady); err != nil {
		return err
	}
	m.publishArtifactState(jobID, it.PageID, catalog.KindImgVec, catalog.StatusReady, it.PPTXPath, it.PageNo)
	return nil
}
