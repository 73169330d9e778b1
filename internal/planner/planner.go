// Package planner turns a job's requested file paths into catalog rows and
// queued artifact work: resolving and validating each path, scanning its
// slide count and aspect, expanding (or reconciling) its page rows, diffing
// each artifact's current status against whether the source changed, and
// queuing exactly the artifacts and tasks that need to run.
package planner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/constants"
	"github.com/allanyiin/slidemanager/internal/pptxmeta"
)

// Skip reason buckets, mirrored from catalog's constants for clarity at the
// call site.
const (
	skipNonPPTX        = catalog.SkipNonPPTX
	skipOutsideRoot    = catalog.SkipOutsideRoot
	skipUnselectedPath = catalog.SkipUnselectedPath
	skipMissingPath    = catalog.SkipMissingPath
	skipParseFailed    = catalog.SkipParseFailed
)

// Skipped summarizes why candidate paths were dropped during planning, for
// the job_planning_finished event payload.
type Skipped struct {
	Counts   map[string]int      `json:"counts"`
	Examples map[string][]string `json:"examples"`
}

func newSkipped() *Skipped {
	return &Skipped{Counts: map[string]int{}, Examples: map[string][]string{}}
}

func (s *Skipped) record(reason, path string) {
	s.Counts[reason]++
	if path == "" {
		return
	}
	bucket := s.Examples[reason]
	if len(bucket) < constants.MaxSkipExamplesPerBucket {
		s.Examples[reason] = append(bucket, path)
	}
}

// Result is what a planning pass reports back to the job manager, carried
// on the job_planning_finished event.
type Result struct {
	FilesPlanned int
	TaskCounts   map[catalog.TaskKind]int
	Skipped      *Skipped
}

// Plan resolves the job's requested file paths against libraryRoot, scans
// each valid file, expands its page rows, diffs artifact freshness, and
// queues exactly the artifacts and one job-scoped task per pipeline kind
// that actually need work. The checkpoint hook is called between files so
// the job manager's pause/cancel gate applies at file granularity without
// this package importing any job-lifecycle machinery.
func Plan(ctx context.Context, store *catalog.Store, jobID, libraryRoot string, opts catalog.JobOptions, checkpoint func(ctx context.Context) error) (Result, error) {
	rootAbs, err := filepath.Abs(libraryRoot)
	if err != nil {
		return Result{}, fmt.Errorf("resolving library root %s: %w", libraryRoot, err)
	}

	skipped := newSkipped()
	scans := resolveCandidates(rootAbs, opts.FilePaths, skipped)

	needsTask := map[catalog.TaskKind]bool{}

	planned := 0
	for _, c := range scans {
		if checkpoint != nil {
			if err := checkpoint(ctx); err != nil {
				return Result{}, err
			}
		}

		if err := planOneFile(ctx, store, jobID, c, opts, needsTask); err != nil {
			// A single file's failure never aborts the whole plan; it is
			// recorded on the file row and the planner moves on.
			continue
		}
		planned++
	}

	for kind, need := range needsTask {
		if !need {
			continue
		}
		if _, err := store.EnqueueJobTask(ctx, jobID, kind, 0); err != nil {
			return Result{}, fmt.Errorf("enqueueing %s task: %w", kind, err)
		}
	}

	taskCounts, err := store.TaskKindCounts(ctx, jobID)
	if err != nil {
		return Result{}, err
	}

	return Result{FilesPlanned: planned, TaskCounts: taskCounts, Skipped: skipped}, nil
}

type candidate struct {
	path        string
	sizeBytes   int64
	mtimeEpoch  int64
}

// resolveCandidates validates each requested path against the PPTX
// extension, library-root containment, and the filesystem, bucketing every
// rejection by reason for the job_planning_finished summary.
func resolveCandidates(rootAbs string, filePaths []string, skipped *Skipped) []candidate {
	var out []candidate
	for _, raw := range filePaths {
		if raw == "" {
			skipped.record(skipMissingPath, raw)
			continue
		}
		if strings.ToLower(filepath.Ext(raw)) != ".pptx" {
			skipped.record(skipNonPPTX, raw)
			continue
		}
		abs, err := filepath.Abs(raw)
		if err != nil {
			skipped.record(skipParseFailed, raw)
			continue
		}
		if !isUnderRoot(rootAbs, abs) {
			skipped.record(skipOutsideRoot, raw)
			continue
		}
		st, err := statFile(abs)
		if errors.Is(err, os.ErrNotExist) {
			skipped.record(skipMissingPath, raw)
			continue
		}
		if err != nil {
			skipped.record(skipParseFailed, raw)
			continue
		}
		out = append(out, candidate{path: abs, sizeBytes: st.size, mtimeEpoch: st.mtime})
	}
	return out
}

func isUnderRoot(rootAbs, path string) bool {
	rel, err := filepath.Rel(rootAbs, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}

// planOneFile upserts the file row, validates it is a real zip/PPTX,
// detects aspect and slide count, expands/reconciles page rows, and queues
// whichever artifacts need refreshing given whether the source actually
// changed since the last scan.
func planOneFile(ctx context.Context, store *catalog.Store, jobID string, c candidate, opts catalog.JobOptions, needsTask map[catalog.TaskKind]bool) error {
	prev, prevErr := store.FileByPath(ctx, c.path)
	hadPrev := prevErr == nil

	fileID, err := store.UpsertFile(ctx, c.path, c.sizeBytes, c.mtimeEpoch, "")
	if err != nil {
		return err
	}

	if !pptxmeta.IsZip(c.path) {
		return store.SetFileScanError(ctx, fileID, "File is not a zip file")
	}

	aspect := pptxmeta.DetectAspect(c.path)
	if err := store.SetFileAspect(ctx, fileID, aspect); err != nil {
		return err
	}

	slideCount, err := pptxmeta.SlideCount(c.path)
	if err != nil {
		_ = store.SetFileScanError(ctx, fileID, err.Error())
		return err
	}
	if err := store.SetFileSlideCount(ctx, fileID, slideCount); err != nil {
		return err
	}

	if err := store.DeletePagesBeyond(ctx, fileID, slideCount); err != nil {
		return err
	}

	changed := !hadPrev || prev.SizeBytes != c.sizeBytes || prev.ModEpoch != c.mtimeEpoch

	for pageNo := 1; pageNo <= slideCount; pageNo++ {
		pageID, err := store.UpsertPage(ctx, fileID, pageNo, aspect, c.sizeBytes, c.mtimeEpoch)
		if err != nil {
			return err
		}
		for _, kind := range []catalog.ArtifactKind{
			catalog.KindText, catalog.KindThumb, catalog.KindTextVec, catalog.KindImgVec, catalog.KindBM25,
		} {
			if err := store.EnsureArtifact(ctx, pageID, kind); err != nil {
				return err
			}
		}

		if err := queuePageArtifacts(ctx, store, jobID, pageID, aspect, changed, opts, needsTask); err != nil {
			return err
		}
	}
	return nil
}

// queuePageArtifacts diffs each enabled pipeline's artifact status against
// whether the page's source changed, queuing exactly the artifacts that
// need a fresh run: the source changed, or the artifact is currently
// neither READY nor SKIPPED.
func queuePageArtifacts(ctx context.Context, store *catalog.Store, jobID string, pageID int64, aspect catalog.Aspect, changed bool, opts catalog.JobOptions, needsTask map[catalog.TaskKind]bool) error {
	statuses, err := store.ArtifactStatuses(ctx, pageID)
	if err != nil {
		return err
	}
	needsRefresh := func(kind catalog.ArtifactKind) bool {
		if changed {
			return true
		}
		return !statuses[kind].IsTerminalSuccess()
	}

	if opts.EnableText && needsRefresh(catalog.KindText) {
		if err := store.SetArtifactStatus(ctx, pageID, catalog.KindText, catalog.StatusQueued, `{"v":1}`); err != nil {
			return err
		}
		needsTask[catalog.TaskText] = true
	}
	if opts.EnableThumb && opts.Thumb.Enabled && opts.PDF.Enabled && needsRefresh(catalog.KindThumb) {
		params := fmt.Sprintf(`{"v":1,"w":%d,"h43":%d,"h169":%d,"aspect":%q}`,
			opts.Thumb.Width, opts.Thumb.Height43, opts.Thumb.Height169, aspect)
		if err := store.SetArtifactStatus(ctx, pageID, catalog.KindThumb, catalog.StatusQueued, params); err != nil {
			return err
		}
		needsTask[catalog.TaskThumb] = true
	}
	if opts.EnableBM25 && needsRefresh(catalog.KindBM25) {
		if err := store.SetArtifactStatus(ctx, pageID, catalog.KindBM25, catalog.StatusQueued, `{"v":1}`); err != nil {
			return err
		}
		needsTask[catalog.TaskText] = true
	}
	if opts.EnableTextVec && opts.Embed.EnabledText && needsRefresh(catalog.KindTextVec) {
		params := fmt.Sprintf(`{"v":1,"model":%q}`, opts.Embed.ModelText)
		if err := store.SetArtifactStatus(ctx, pageID, catalog.KindTextVec, catalog.StatusQueued, params); err != nil {
			return err
		}
		needsTask[catalog.TaskTextVec] = true
	}
	if opts.EnableImgVec && opts.Embed.EnabledImage && opts.Thumb.Enabled && needsRefresh(catalog.KindImgVec) {
		params := fmt.Sprintf(`{"v":1,"model":%q}`, opts.Embed.ModelImage)
		if err := store.SetArtifactStatus(ctx, pageID, catalog.KindImgVec, catalog.StatusQueued, params); err != nil {
			return err
		}
		needsTask[catalog.TaskImgVec] = true
	}
	return nil
}
