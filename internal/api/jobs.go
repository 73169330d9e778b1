package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/allanyiin/slidemanager/internal/catalog"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCreateJob validates library_root against a real directory and,
// since one Server instance is bound to a single library's Store, against
// the bound root, before delegating to the manager. The daemon binds one
// library root per process; a request naming a different root is rejected
// rather than silently opening a second database.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid_body")
		return
	}

	var envelope struct {
		LibraryRoot string          `json:"library_root"`
		Options     json.RawMessage `json:"options"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			respondErr(w, http.StatusBadRequest, "invalid_body")
			return
		}
	}

	root := envelope.LibraryRoot
	if root == "" {
		root = s.libraryRoot
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		respondErr(w, http.StatusBadRequest, catalog.ErrLibraryRootNotFound)
		return
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		respondErr(w, http.StatusBadRequest, catalog.ErrLibraryRootNotFound)
		return
	}
	boundAbs, err := filepath.Abs(s.libraryRoot)
	if err != nil || rootAbs != boundAbs {
		respondErr(w, http.StatusBadRequest, catalog.ErrLibraryRootNotFound)
		return
	}

	opts, err := catalog.DecodeJobOptions(envelope.Options)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid_options")
		return
	}

	jobID, err := s.mgr.CreateJob(r.Context(), opts)
	if err != nil {
		s.log.Error("create job", "error", err)
		respondErr(w, http.StatusInternalServerError, "create_job_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID})
}

// handleJobSnapshot renders the full GET /jobs/{id} payload: job row,
// decoded options, per-kind artifact stats scoped to this job's tasks, and
// the single most-recently-started RUNNING task (if any).
func (s *Server) handleJobSnapshot(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	ctx := r.Context()

	job, err := s.store.JobByID(ctx, jobID)
	if err != nil {
		respondErr(w, http.StatusOK, catalog.ErrJobNotFound)
		return
	}

	var options any
	if job.OptionsJSON != "" {
		_ = json.Unmarshal([]byte(job.OptionsJSON), &options)
	}
	if options == nil {
		options = map[string]any{}
	}

	stats, err := s.store.ArtifactCountsByJob(ctx, jobID)
	if err != nil {
		s.log.Error("artifact counts by job", "job_id", jobID, "error", err)
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}

	running, err := s.store.NowRunningTask(ctx, jobID)
	if err != nil {
		s.log.Error("now running task", "job_id", jobID, "error", err)
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}

	var nowRunning any
	if running != nil {
		nowRunning = map[string]any{
			"task_id":   running.TaskID,
			"kind":      running.Kind,
			"message":   running.Message,
			"progress":  running.Progress,
			"page_id":   running.PageID,
			"file_id":   running.FileID,
			"page_no":   running.PageNo,
			"file_path": running.FilePath,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"job_id":       job.ID,
		"status":       job.Status,
		"library_root": job.LibraryRoot,
		"created_at":   epochOrNil(job.CreatedEpoch),
		"started_at":   epochOrNil(job.StartedEpoch),
		"finished_at":  epochOrNil(job.FinishedEpoch),
		"options":      options,
		"stats":        stats,
		"now_running":  nowRunning,
	})
}

func epochOrNil(epoch int64) any {
	if epoch == 0 {
		return nil
	}
	return epoch
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := s.mgr.PauseJob(r.Context(), jobID); err != nil {
		s.log.Error("pause job", "job_id", jobID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := s.mgr.ResumeJob(r.Context(), jobID); err != nil {
		s.log.Error("resume job", "job_id", jobID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := s.mgr.CancelJob(r.Context(), jobID); err != nil {
		s.log.Error("cancel job", "job_id", jobID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
