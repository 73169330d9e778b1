package jobmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/constants"
	"github.com/allanyiin/slidemanager/internal/pdfconvert"
	"github.com/allanyiin/slidemanager/internal/thumbrender"
)

// runPDFAndThumbs drains every file with at least one QUEUED THUMB
// artifact: converts the .pptx to .pdf via the headless office suite, then
// rasterizes and resizes each queued page's thumbnail. A file whose PDF
// conversion fails marks every one of its queued pages ERROR/PDF_CONVERT_FAIL
// without aborting the rest of the job.
func (m *Manager) runPDFAndThumbs(ctx context.Context, jobID string, opts catalog.JobOptions, pause *pauseGate) error {
	if !opts.EnableThumb || !opts.Thumb.Enabled || !opts.PDF.Enabled {
		return nil
	}

	taskID, ok, err := m.store.FirstQueuedTask(ctx, jobID, catalog.TaskThumb)
	if err != nil {
		return fmt.Errorf("finding thumb task: %w", err)
	}
	if !ok {
		return nil
	}

	files, err := m.store.QueuedThumbFiles(ctx, opts.FilePaths)
	if err != nil {
		return fmt.Errorf("listing queued thumb files: %w", err)
	}
	total, err := m.store.CountQueuedThumbPages(ctx, opts.FilePaths)
	if err != nil {
		return fmt.Errorf("counting queued thumb pages: %w", err)
	}
	if len(files) == 0 {
		return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
	}

	if err := m.store.StartTask(ctx, taskID); err != nil {
		return fmt.Errorf("starting thumb task: %w", err)
	}

	soffice := pdfconvert.ResolveSofficeBinary()
	renderWorkDir, err := os.MkdirTemp("", "slidemanager_render_")
	if err != nil {
		return fmt.Errorf("creating thumb render work dir: %w", err)
	}
	defer os.RemoveAll(renderWorkDir)

	done := 0
	for _, file := range files {
		if err := pause.checkpoint(ctx); err != nil {
			return err
		}
		n, err := m.renderFileThumbs(ctx, jobID, file, opts, renderWorkDir, soffice)
		if err != nil {
			m.log.Error("thumb rendering failed", "file_id", file.FileID, "path", file.Path, "error", err)
		}
		done += n
		progress := 0.0
		if total > 0 {
			progress = float64(done) / float64(total)
		}
		if err := m.store.TouchTaskProgress(ctx, taskID, progress, fmt.Sprintf("%d/%d pages", done, total)); err != nil {
			return fmt.Errorf("updating thumb task progress: %w", err)
		}
		m.bus.Publish(jobID, "task_progress", map[string]any{"kind": "thumb", "progress": progress})
	}

	return m.store.FinishTask(ctx, taskID, catalog.TaskDone, "", "")
}

// renderFileThumbs converts one file's PDF, renders every queued page, and
// resizes each to its target dimensions, returning the number of pages it
// attempted (success or failure) so the caller's progress counter advances
// even on a per-page render error. The converted PDF is cached at
// <library_root>/.slidemanager/pdf/<file_id>.pdf and reused by later jobs
// instead of being reconverted; renderWorkDir is scratch space for the
// per-page JPEG export, which is itself resized into the persistent
// thumbnail cache.
func (m *Manager) renderFileThumbs(ctx context.Context, jobID string, file catalog.ThumbFileWork, opts catalog.JobOptions, renderWorkDir, soffice string) (int, error) {
	pages, err := m.store.QueuedThumbPagesForFile(ctx, file.FileID)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, nil
	}

	for _, p := range pages {
		if err := m.store.SetArtifactStatus(ctx, p.PageID, catalog.KindThumb, catalog.StatusRunning, ""); err != nil {
			return 0, err
		}
	}

	// Only the headless office backend exists; a job that explicitly asked
	// for the powerpoint backend gets a clear per-file failure rather than a
	// silent substitute.
	if opts.PDF.Prefer == "powerpoint" {
		for _, p := range pages {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrPDFConvertFail, "powerpoint conversion backend is not implemented")
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
		}
		return len(pages), fmt.Errorf("powerpoint conversion backend is not implemented")
	}

	pdfDir := filepath.Join(m.libraryRoot, constants.SlidemanagerDirName, constants.PDFCacheDirName)
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		for _, p := range pages {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrPDFConvertFail, err.Error())
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
		}
		return len(pages), fmt.Errorf("creating pdf cache dir: %w", err)
	}
	pdfPath := filepath.Join(pdfDir, fmt.Sprintf("%d.pdf", file.FileID))
	if err := pdfconvert.Convert(ctx, soffice, file.Path, pdfPath, opts.PDF.TimeoutSec); err != nil {
		for _, p := range pages {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrPDFConvertFail, err.Error())
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
		}
		return len(pages), fmt.Errorf("converting %s to pdf: %w", file.Path, err)
	}

	allPages, err := m.store.PagesForFile(ctx, file.FileID)
	if err != nil {
		return len(pages), err
	}

	renderDir := filepath.Join(renderWorkDir, fmt.Sprintf("f%d", file.FileID))
	rendered, err := thumbrender.RenderPagesToJPEG(ctx, soffice, pdfPath, renderDir, len(allPages), opts.PDF.TimeoutSec)
	if err != nil {
		for _, p := range pages {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrThumbFail, err.Error())
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
		}
		return len(pages), fmt.Errorf("rendering pages for %s: %w", file.Path, err)
	}

	thumbDir := filepath.Join(m.libraryRoot, constants.SlidemanagerDirName, constants.ThumbCacheDirName, fmt.Sprintf("%d", file.FileID))
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		for _, p := range pages {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrThumbFail, err.Error())
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
		}
		return len(pages), fmt.Errorf("creating thumb cache dir: %w", err)
	}
	attempted := 0
	for _, p := range pages {
		attempted++
		if p.PageNo < 1 || p.PageNo > len(rendered) {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrThumbFail, "rendered page out of range")
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
			continue
		}
		width, height := thumbrender.ThumbSize(p.Aspect, opts.Thumb.Width, opts.Thumb.Height43, opts.Thumb.Height169)
		dst := filepath.Join(thumbDir, fmt.Sprintf("%d_%s_%dx%d.jpg", p.PageNo, p.Aspect, width, height))
		if err := thumbrender.ResizeExact(rendered[p.PageNo-1], dst, width, height); err != nil {
			_ = m.store.MarkArtifactError(ctx, p.PageID, catalog.KindThumb, catalog.ErrThumbFail, err.Error())
			m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusError, file.Path, p.PageNo)
			continue
		}
		if err := m.store.UpsertThumbnail(ctx, p.PageID, p.Aspect, width, height, dst); err != nil {
			return attempted, fmt.Errorf("recording thumbnail for page %d: %w", p.PageID, err)
		}
		if err := m.store.MarkArtifactDone(ctx, p.PageID, catalog.KindThumb, catalog.StatusReady); err != nil {
			return attempted, err
		}
		m.publishArtifactState(jobID, p.PageID, catalog.KindThumb, catalog.StatusReady, file.Path, p.PageNo)
	}
	return attempted, nil
}
