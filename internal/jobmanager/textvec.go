package jobmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/textembed"
)

// runTextEmbeddings drains every QUEUED TEXT_VEC artifact. A page with no
// extracted text gets a cached zero vector under a private
// ZeroVectorSentinelPrefix key (never calling the provider); otherwise a
// shared (model, text_sig) cache hit is reused, and a miss is batched into
// live provider calls, with any batch result that came back with an empty
// signature cached under a private NoSigSentinelPrefix key.
func (m *Manager) runTextEmbeddings(ctx context.Context, jobID string, opts catalog.JobOptions, pause *pauseGate) error {
	if !opts.EnableTextVec || !opts.Embed.EnabledText {
		return nil
	}

	taskID, ok, err := m.store.FirstQueuedTask(ctx, jobID, catalog.TaskTextVec)
	if err != nil {
		return fmt.Errorf("finding text_vec task: %w", err)
	}
	if !ok {
		return nil
	}

	items, err := m.store.QueuedTextVecWork(ctx, opts.FilePaths)
	if err != nil {
		return fmt.Errorf("listing queued text_vec work: %w", err)
	}
	if len(items) == 0 {
		return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
	}

	if err := m.store.StartTask(ctx, taskID); err != nil {
		return fmt.Errorf("starting text_vec task: %w", err)
	}

	client := m.newTextEmbedClient(opts.Embed)
	model := opts.Embed.ModelText

	commitEvery := opts.CommitEveryPages
	if commitEvery <= 0 {
		commitEvery = 1
	}
	commitInterval := time.Duration(opts.CommitEverySec * float64(time.Second))
	lastCommit := time.Now()
	sinceCommit := 0

	batchSize := opts.Embed.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	processed := 0
	for start := 0; start < len(items); start += batchSize {
		if err := pause.checkpoint(ctx); err != nil {
			return err
		}
		end := min(start+batchSize, len(items))
		batch := items[start:end]

		if err := m.processTextVecBatch(ctx, jobID, batch, model, client); err != nil {
			m.log.Error("text_vec batch failed", "job_id", jobID, "error", err)
		}

		processed += len(batch)
		sinceCommit += len(batch)
		progress := float64(processed) / float64(len(items))
		if sinceCommit >= commitEvery || time.Since(lastCommit) >= commitInterval {
			if err := m.store.TouchTaskProgress(ctx, taskID, progress, fmt.Sprintf("%d/%d pages", processed, len(items))); err != nil {
				return fmt.Errorf("updating text_vec task progress: %w", err)
			}
			m.bus.Publish(jobID, "task_progress", map[string]any{"kind": "text_vec", "progress": progress})
			sinceCommit = 0
			lastCommit = time.Now()
		}
	}

	if err := m.store.TouchTaskProgress(ctx, taskID, 1.0, fmt.Sprintf("%d/%d pages", len(items), len(items))); err != nil {
		return fmt.Errorf("finalizing text_vec task progress: %w", err)
	}
	return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
}

// processTextVecBatch handles one batch: pages with cached or zero vectors
// are resolved locally, the rest are sent to the provider in one call.
func (m *Manager) processTextVecBatch(ctx context.Context, jobID string, batch []catalog.TextVecWorkItem, model string, client *textembed.Client) error {
	var liveIdx []int
	var liveTexts []string

	for i, it := range batch {
		if err := m.store.SetArtifactStatus(ctx, it.PageID, catalog.KindTextVec, catalog.StatusRunning, ""); err != nil {
			return err
		}
		if it.NormText == "" {
			if err := m.cacheAndLinkZeroVector(ctx, it.PageID, model); err != nil {
				_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindTextVec, catalog.ErrEmbedFail, err.Error())
				m.publishArtifactState(jobID, it.PageID, catalog.KindTextVec, catalog.StatusError, it.PPTXPath, it.PageNo)
				continue
			}
			if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindTextVec, catalog.StatusReady); err != nil {
				return err
			}
			m.publishArtifactState(jobID, it.PageID, catalog.KindTextVec, catalog.StatusReady, it.PPTXPath, it.PageNo)
			continue
		}
		if _, _, hit, err := m.store.TextEmbeddingCacheHit(ctx, model, it.TextSig); err == nil && hit {
			if err := m.store.UpsertPageTextEmbedding(ctx, it.PageID, model, it.TextSig); err != nil {
				return err
			}
			if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindTextVec, catalog.StatusReady); err != nil {
				return err
			}
			m.publishArtifactState(jobID, it.PageID, catalog.KindTextVec, catalog.StatusReady, it.PPTXPath, it.PageNo)
			continue
		}
		liveIdx = append(liveIdx, i)
		liveTexts = append(liveTexts, it.NormText)
	}

	if len(liveTexts) == 0 {
		return nil
	}
	if client == nil {
		for _, i := range liveIdx {
			_ = m.store.MarkArtifactError(ctx, batch[i].PageID, catalog.KindTextVec, catalog.ErrEmbedFail, "no text embedding provider configured")
			m.publishArtifactState(jobID, batch[i].PageID, catalog.KindTextVec, catalog.StatusError, batch[i].PPTXPath, batch[i].PageNo)
		}
		return fmt.Errorf("no text embedding provider configured")
	}

	vectors, err := client.EmbedBatch(ctx, liveTexts, model)
	if err != nil {
		for _, i := range liveIdx {
			_ = m.store.MarkArtifactError(ctx, batch[i].PageID, catalog.KindTextVec, catalog.ErrEmbedFail, err.Error())
			m.publishArtifactState(jobID, batch[i].PageID, catalog.KindTextVec, catalog.StatusError, batch[i].PPTXPath, batch[i].PageNo)
		}
		return err
	}

	for j, i := range liveIdx {
		it := batch[i]
		vec := vectors[j]
		sig := it.TextSig
		if sig == "" {
			sig = fmt.Sprintf("%s%d:%d", textembed.NoSigSentinelPrefix, it.PageID, time.Now().UnixNano())
		}
		packed := textembed.PackF32(vec)
		if err := m.store.UpsertTextEmbeddingCache(ctx, model, sig, len(vec), packed); err != nil {
			_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindTextVec, catalog.ErrEmbedFail, err.Error())
			m.publishArtifactState(jobID, it.PageID, catalog.KindTextVec, catalog.StatusError, it.PPTXPath, it.PageNo)
			continue
		}
		if err := m.store.UpsertPageTextEmbedding(ctx, it.PageID, model, sig); err != nil {
			_ = m.store.MarkArtifactError(ctx, it.PageID, catalog.KindTextVec, catalog.ErrEmbedFail, err.Error())
			m.publishArtifactState(jobID, it.PageID, catalog.KindTextVec, catalog.StatusError, it.PPTXPath, it.PageNo)
			continue
		}
		if err := m.store.MarkArtifactDone(ctx, it.PageID, catalog.KindTextVec, catalog.StatusReady); err != nil {
			return err
		}
		m.publishArtifactState(jobID, it.PageID, catalog.KindTextVec, catalog.StatusReady, it.PPTXPath, it.PageNo)
	}
	return nil
}

// cacheAndLinkZeroVector mints a private ZeroVectorSentinelPrefix cache row
// for a page with no extracted text, so repeated runs never recompute the
// zero vector nor call the provider for it.
func (m *Manager) cacheAndLinkZeroVector(ctx context.Context, pageID int64, model string) error {
	dim := defaultTextDim
	sig := fmt.Sprintf("%s%d:%d", textembed.ZeroVectorSentinelPrefix, pageID, time.Now().UnixNano())
	if err := m.store.UpsertTextEmbeddingCache(ctx, model, sig, dim, textembed.ZeroVector(dim)); err != nil {
		return err
	}
	return m.store.UpsertPageTextEmbedding(ctx, pageID, model, sig)
}

// defaultTextDim is the dimension minted for a zero vector when no live
// provider call establishes one for this model; OpenAI's
// text-embedding-3-large is 3072-wide.
const defaultTextDim = 3072
