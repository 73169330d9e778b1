package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// EnqueueFileTask records a QUEUED task scoped to a file rather than to a
// single page.
func (s *Store) EnqueueFileTask(ctx context.Context, jobID string, kind TaskKind, fileID int64, priority int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks(job_id,file_id,kind,status,priority) VALUES (?,?,?,?,?)",
		jobID, fileID, string(kind), string(TaskQueued), priority)
	if err != nil {
		return 0, fmt.Errorf("enqueueing %s task for file %d: %w", kind, fileID, err)
	}
	return res.LastInsertId()
}

// EnqueueJobTask records a QUEUED task scoped only to the job itself: one
// progress-bearer task per pipeline kind, e.g. a single TEXT task covering
// every page rather than one task per page.
func (s *Store) EnqueueJobTask(ctx context.Context, jobID string, kind TaskKind, priority int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks(job_id,kind,status,priority) VALUES (?,?,?,?)",
		jobID, string(kind), string(TaskQueued), priority)
	if err != nil {
		return 0, fmt.Errorf("enqueueing %s task for job %s: %w", kind, jobID, err)
	}
	return res.LastInsertId()
}

// FirstQueuedTask finds the oldest still-QUEUED task of a kind within a job,
// used to locate the single progress-bearer task a pipeline should drive.
func (s *Store) FirstQueuedTask(ctx context.Context, jobID string, kind TaskKind) (int64, bool, error) {
	var taskID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT task_id FROM tasks WHERE job_id=? AND kind=? AND status=? ORDER BY task_id ASC LIMIT 1",
		jobID, string(kind), string(TaskQueued),
	).Scan(&taskID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("finding queued %s task for job %s: %w", kind, jobID, err)
	}
	return taskID, true, nil
}

// StartTask marks a task RUNNING and stamps started_at/heartbeat_at.
func (s *Store) StartTask(ctx context.Context, taskID int64) error {
	now := NowEpoch()
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status=?, started_at=?, heartbeat_at=? WHERE task_id=?",
		string(TaskRunning), now, now, taskID)
	return err
}

// TouchTaskProgress updates a running task's progress fraction, message,
// and heartbeat, the per-page checkpoint a pipeline emits as it works
// through a batch.
func (s *Store) TouchTaskProgress(ctx context.Context, taskID int64, progress float64, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET progress=?, message=?, heartbeat_at=? WHERE task_id=?",
		progress, message, NowEpoch(), taskID)
	return err
}

// FinishTask transitions a task to a terminal status, stamping finished_at
// and optionally an error code/message.
func (s *Store) FinishTask(ctx context.Context, taskID int64, status TaskStatus, errCode, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status=?, finished_at=?, error_code=?, error_message=? WHERE task_id=?",
		string(status), NowEpoch(), nullIfEmpty(errCode), nullIfEmpty(truncate(errMsg, 500)), taskID)
	return err
}

// TouchTasksHeartbeat bulk-updates message/heartbeat for every task of a
// job in a given status, used when the job is paused/resumed/cancelled to
// stamp a reason message across every still-active task at once.
func (s *Store) TouchTasksHeartbeat(ctx context.Context, jobID string, status TaskStatus, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET message=?, heartbeat_at=? WHERE job_id=? AND status=?",
		message, NowEpoch(), jobID, string(status))
	return err
}

// StaleRunningTask is a RUNNING task whose heartbeat (or, absent that,
// start time) predates the watchdog's staleness cutoff.
type StaleRunningTask struct {
	TaskID int64
	JobID  string
	Kind   TaskKind
}

// StaleRunningTasks lists RUNNING tasks whose most recent heartbeat is
// older than cutoffEpoch, for the watchdog to fail into
// ERROR/WATCHDOG_TIMEOUT.
func (s *Store) StaleRunningTasks(ctx context.Context, cutoffEpoch int64) ([]StaleRunningTask, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT task_id, job_id, kind, heartbeat_at, started_at FROM tasks WHERE status=?", string(TaskRunning))
	if err != nil {
		return nil, fmt.Errorf("scanning running tasks: %w", err)
	}
	defer rows.Close()

	var out []StaleRunningTask
	for rows.Next() {
		var t StaleRunningTask
		var heartbeat, started sql.NullInt64
		var kind string
		if err := rows.Scan(&t.TaskID, &t.JobID, &kind, &heartbeat, &started); err != nil {
			return nil, err
		}
		t.Kind = TaskKind(kind)
		last := heartbeat.Int64
		if last == 0 {
			last = started.Int64
		}
		if last != 0 && last < cutoffEpoch {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// RunningTask is one currently-RUNNING task of a job.
type RunningTask struct {
	TaskID   int64
	Kind     TaskKind
	Message  string
	Progress float64
	PageID   *int64
	FileID   *int64
}

// RunningTasksForJob lists all of a job's currently-RUNNING tasks. The job
// status endpoint reports only the single task from NowRunningTask.
func (s *Store) RunningTasksForJob(ctx context.Context, jobID string) ([]RunningTask, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT t.task_id, t.kind, t.message, t.progress, t.page_id, t.file_id FROM tasks t "+
			"WHERE t.job_id=? AND t.status=?", jobID, string(TaskRunning))
	if err != nil {
		return nil, fmt.Errorf("listing running tasks for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []RunningTask
	for rows.Next() {
		var t RunningTask
		var kind string
		var message sql.NullString
		var pageID, fileID sql.NullInt64
		if err := rows.Scan(&t.TaskID, &kind, &message, &t.Progress, &pageID, &fileID); err != nil {
			return nil, err
		}
		t.Kind = TaskKind(kind)
		t.Message = message.String
		if pageID.Valid {
			v := pageID.Int64
			t.PageID = &v
		}
		if fileID.Valid {
			v := fileID.Int64
			t.FileID = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// NowRunningTask is the single most-recently-started RUNNING task of a job,
// joined with its page/file context, for the GET /jobs/{id} "now_running"
// field.
type NowRunningTask struct {
	TaskID   int64
	Kind     TaskKind
	Message  string
	Progress float64
	PageID   *int64
	FileID   *int64
	PageNo   *int
	FilePath *string
}

// NowRunningTask returns the most recently started RUNNING task for a job,
// or nil if none is currently running.
func (s *Store) NowRunningTask(ctx context.Context, jobID string) (*NowRunningTask, error) {
	var t NowRunningTask
	var kind string
	var message sql.NullString
	var pageID, fileID sql.NullInt64
	var pageNo sql.NullInt64
	var filePath sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT t.task_id, t.kind, t.message, t.progress, t.page_id, t.file_id, p.page_no, f.path "+
			"FROM tasks t "+
			"LEFT JOIN pages p ON p.page_id = t.page_id "+
			"LEFT JOIN files f ON f.file_id = COALESCE(t.file_id, p.file_id) "+
			"WHERE t.job_id=? AND t.status=? "+
			"ORDER BY t.started_at DESC LIMIT 1",
		jobID, string(TaskRunning),
	).Scan(&t.TaskID, &kind, &message, &t.Progress, &pageID, &fileID, &pageNo, &filePath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading now-running task for job %s: %w", jobID, err)
	}
	t.Kind = TaskKind(kind)
	t.Message = message.String
	if pageID.Valid {
		v := pageID.Int64
		t.PageID = &v
	}
	if fileID.Valid {
		v := fileID.Int64
		t.FileID = &v
	}
	if pageNo.Valid {
		v := int(pageNo.Int64)
		t.PageNo = &v
	}
	if filePath.Valid {
		v := filePath.String
		t.FilePath = &v
	}
	return &t, nil
}

// TaskKindCounts returns how many tasks of each kind a job has queued,
// total, used by the planner's job_planning_finished summary.
func (s *Store) TaskKindCounts(ctx context.Context, jobID string) (map[TaskKind]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) AS cnt FROM tasks WHERE job_id=? GROUP BY kind", jobID)
	if err != nil {
		return nil, fmt.Errorf("counting tasks for job %s: %w", jobID, err)
	}
	defer rows.Close()

	out := make(map[TaskKind]int)
	for rows.Next() {
		var kind string
		var cnt int
		if err := rows.Scan(&kind, &cnt); err != nil {
			return nil, err
		}
		out[TaskKind(kind)] = cnt
	}
	return out, rows.Err()
}

// CancelJobActiveWork marks every QUEUED/RUNNING task and artifact scoped
// to this job's own tasks as CANCELLED. Both halves are scoped to jobID so
// cancelling one job never touches another job's in-flight work against the
// same catalog.
func (s *Store) CancelJobActiveWork(ctx context.Context, jobID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		now := NowEpoch()
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status=?, finished_at=? WHERE job_id=? AND status IN (?,?)",
			string(TaskCancelled), now, jobID, string(TaskQueued), string(TaskRunning)); err != nil {
			return fmt.Errorf("cancelling tasks for job %s: %w", jobID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE artifacts SET status=?, updated_at=? WHERE status IN (?,?) AND page_id IN "+
				"(SELECT DISTINCT page_id FROM tasks WHERE job_id=? AND page_id IS NOT NULL)",
			string(StatusCancelled), now, string(StatusQueued), string(StatusRunning), jobID); err != nil {
			return fmt.Errorf("cancelling artifacts for job %s: %w", jobID, err)
		}
		return nil
	})
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
