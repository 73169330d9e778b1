package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertJob creates a new job row in CREATED status.
func (s *Store) InsertJob(ctx context.Context, jobID, libraryRoot, optionsJSON string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO jobs(job_id,library_root,created_at,status,options_json) VALUES (?,?,?,?,?)",
		jobID, libraryRoot, NowEpoch(), string(JobCreated), optionsJSON)
	return err
}

// JobByID loads a job row, returning sql.ErrNoRows if absent.
func (s *Store) JobByID(ctx context.Context, jobID string) (Job, error) {
	var j Job
	var started, finished sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT job_id, library_root, created_at, started_at, finished_at, status, options_json FROM jobs WHERE job_id=?",
		jobID,
	).Scan(&j.ID, &j.LibraryRoot, &j.CreatedEpoch, &started, &finished, &j.Status, &j.OptionsJSON)
	if err != nil {
		return Job{}, err
	}
	j.StartedEpoch = started.Int64
	j.FinishedEpoch = finished.Int64
	return j, nil
}

// SetJobStatus sets a job's status with no timestamp side effect.
func (s *Store) SetJobStatus(ctx context.Context, jobID string, status JobStatus) error {
	_, err := s.db.ExecContext(ctx, "UPDATE jobs SET status=? WHERE job_id=?", string(status), jobID)
	return err
}

// StartJob transitions a job to RUNNING and stamps started_at the first
// time it is run (COALESCE keeps the original start time across a
// pause/resume cycle).
func (s *Store) StartJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, started_at=COALESCE(started_at,?) WHERE job_id=?",
		string(JobRunning), NowEpoch(), jobID)
	return err
}

// FinishJob transitions a job to a terminal status and stamps finished_at.
func (s *Store) FinishJob(ctx context.Context, jobID string, status JobStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status=?, finished_at=? WHERE job_id=?",
		string(status), NowEpoch(), jobID)
	return err
}

// JobsStaleRunningCutoff lists jobs in RUNNING status. It only reads; it
// does not change any job or task.
func (s *Store) JobsStaleRunningCutoff(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT job_id FROM jobs WHERE status=?", string(JobRunning))
	if err != nil {
		return nil, fmt.Errorf("listing running jobs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
