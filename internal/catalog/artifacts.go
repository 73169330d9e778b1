package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureArtifact creates the (page, kind) artifact row as MISSING if it
// doesn't exist yet. Safe to call repeatedly; never overwrites an existing
// row's status.
func (s *Store) EnsureArtifact(ctx context.Context, pageID int64, kind ArtifactKind) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO artifacts(page_id,kind,status,updated_at,attempts) VALUES (?,?,?,?,0)",
		pageID, string(kind), string(StatusMissing), NowEpoch())
	return err
}

// ArtifactStatuses returns the kind->status map for every artifact recorded
// against a page.
func (s *Store) ArtifactStatuses(ctx context.Context, pageID int64) (map[ArtifactKind]ArtifactStatus, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT kind, status FROM artifacts WHERE page_id=?", pageID)
	if err != nil {
		return nil, fmt.Errorf("loading artifact statuses for page %d: %w", pageID, err)
	}
	defer rows.Close()

	out := make(map[ArtifactKind]ArtifactStatus)
	for rows.Next() {
		var kind, status string
		if err := rows.Scan(&kind, &status); err != nil {
			return nil, err
		}
		out[ArtifactKind(kind)] = ArtifactStatus(status)
	}
	return out, rows.Err()
}

// SetArtifactStatus updates an artifact's status and optional params JSON,
// without touching attempts or error fields. Used for the QUEUED/RUNNING
// transitions that precede a pipeline's actual work.
func (s *Store) SetArtifactStatus(ctx context.Context, pageID int64, kind ArtifactKind, status ArtifactStatus, paramsJSON string) error {
	var params any
	if paramsJSON != "" {
		params = paramsJSON
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE artifacts SET status=?, updated_at=?, params_json=? WHERE page_id=? AND kind=?",
		string(status), NowEpoch(), params, pageID, string(kind))
	return err
}

// SetArtifactStatusIf transitions an artifact to status only if its current
// status matches expect, so a caller never clobbers a status another
// goroutine has already moved past.
func (s *Store) SetArtifactStatusIf(ctx context.Context, pageID int64, kind ArtifactKind, status, expect ArtifactStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE artifacts SET status=?, updated_at=? WHERE page_id=? AND kind=? AND status=?",
		string(status), NowEpoch(), pageID, string(kind), string(expect))
	return err
}

// MarkArtifactDone transitions an artifact straight to a terminal status
// (READY/SKIPPED/CANCELLED) without touching attempts or error fields.
func (s *Store) MarkArtifactDone(ctx context.Context, pageID int64, kind ArtifactKind, status ArtifactStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE artifacts SET status=?, updated_at=? WHERE page_id=? AND kind=?",
		string(status), NowEpoch(), pageID, string(kind))
	return err
}

// MarkArtifactRetry increments attempts and sets status, used when a step
// succeeds but still wants to record the attempt count (e.g. READY after a
// retried call).
func (s *Store) MarkArtifactRetry(ctx context.Context, pageID int64, kind ArtifactKind, status ArtifactStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE artifacts SET status=?, updated_at=?, attempts=attempts+1 WHERE page_id=? AND kind=?",
		string(status), NowEpoch(), pageID, string(kind))
	return err
}

// MarkArtifactError records a terminal ERROR status with a taxonomy code and
// truncated message, incrementing attempts.
func (s *Store) MarkArtifactError(ctx context.Context, pageID int64, kind ArtifactKind, code, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE artifacts SET status=?, updated_at=?, error_code=?, error_message=?, attempts=attempts+1 WHERE page_id=? AND kind=?",
		string(StatusError), NowEpoch(), code, truncate(message, 500), pageID, string(kind))
	return err
}

// MarkArtifactErrorNoRetryCount records an ERROR status without bumping
// attempts, used for pre-flight failures (e.g. a missing dependency
// artifact) that never actually attempted the work.
func (s *Store) MarkArtifactErrorNoRetryCount(ctx context.Context, pageID int64, kind ArtifactKind, code, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE artifacts SET status=?, updated_at=?, error_code=?, error_message=? WHERE page_id=? AND kind=?",
		string(StatusError), NowEpoch(), code, truncate(message, 500), pageID, string(kind))
	return err
}

// ArtifactCountsByJob summarizes artifact (kind,status) counts scoped to the
// pages touched by a job's tasks, for the job-status endpoint. Only tasks
// that carry a page_id contribute pages.
func (s *Store) ArtifactCountsByJob(ctx context.Context, jobID string) (map[ArtifactKind]map[ArtifactStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT a.kind, a.status, COUNT(*) AS cnt FROM artifacts a "+
			"WHERE a.page_id IN (SELECT DISTINCT page_id FROM tasks WHERE job_id=? AND page_id IS NOT NULL) "+
			"GROUP BY a.kind, a.status", jobID)
	if err != nil {
		return nil, fmt.Errorf("summarizing artifacts for job %s: %w", jobID, err)
	}
	defer rows.Close()

	out := make(map[ArtifactKind]map[ArtifactStatus]int)
	for rows.Next() {
		var kind, status string
		var cnt int
		if err := rows.Scan(&kind, &status, &cnt); err != nil {
			return nil, err
		}
		k := ArtifactKind(kind)
		if out[k] == nil {
			out[k] = make(map[ArtifactStatus]int)
		}
		out[k][ArtifactStatus(status)] = cnt
	}
	return out, rows.Err()
}

// ArtifactCountsByPrefix summarizes artifact (kind,status) counts across an
// entire library subtree (path prefix filter), for the library/summary
// endpoint.
func (s *Store) ArtifactCountsByPrefix(ctx context.Context, prefix string) (map[ArtifactKind]map[ArtifactStatus]int, error) {
	query := "SELECT a.kind, a.status, COUNT(*) AS cnt FROM artifacts a " +
		"JOIN pages p ON p.page_id=a.page_id JOIN files f ON f.file_id=p.file_id "
	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.QueryContext(ctx, query+"GROUP BY a.kind, a.status")
	} else {
		rows, err = s.db.QueryContext(ctx, query+"WHERE f.path LIKE ? GROUP BY a.kind, a.status", prefix+"%")
	}
	if err != nil {
		return nil, fmt.Errorf("summarizing artifacts: %w", err)
	}
	defer rows.Close()

	out := make(map[ArtifactKind]map[ArtifactStatus]int)
	for rows.Next() {
		var kind, status string
		var cnt int
		if err := rows.Scan(&kind, &status, &cnt); err != nil {
			return nil, err
		}
		k := ArtifactKind(kind)
		if out[k] == nil {
			out[k] = make(map[ArtifactStatus]int)
		}
		out[k][ArtifactStatus(status)] = cnt
	}
	return out, rows.Err()
}

// ArtifactsByPages loads every artifact row for a batch of page ids, keyed
// by page then kind, for the library/pages listing endpoint.
func (s *Store) ArtifactsByPages(ctx context.Context, pageIDs []int64) (map[int64]map[ArtifactKind]ArtifactStatus, error) {
	if len(pageIDs) == 0 {
		return map[int64]map[ArtifactKind]ArtifactStatus{}, nil
	}
	placeholders, args := inClause(pageIDs)
	rows, err := s.db.QueryContext(ctx,
		"SELECT page_id, kind, status FROM artifacts WHERE page_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("loading artifacts for pages: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[ArtifactKind]ArtifactStatus)
	for rows.Next() {
		var pageID int64
		var kind, status string
		if err := rows.Scan(&pageID, &kind, &status); err != nil {
			return nil, err
		}
		if out[pageID] == nil {
			out[pageID] = make(map[ArtifactKind]ArtifactStatus)
		}
		out[pageID][ArtifactKind(kind)] = ArtifactStatus(status)
	}
	return out, rows.Err()
}

// PageArtifacts loads every (kind,status,error_code,error_message) row for a
// single page, for the page-detail endpoint.
func (s *Store) PageArtifacts(ctx context.Context, pageID int64) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, status, error_code, error_message FROM artifacts WHERE page_id=?", pageID)
	if err != nil {
		return nil, fmt.Errorf("loading artifacts for page %d: %w", pageID, err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var kind, status string
		var code, msg sql.NullString
		if err := rows.Scan(&kind, &status, &code, &msg); err != nil {
			return nil, err
		}
		a.PageID = pageID
		a.Kind = ArtifactKind(kind)
		a.Status = ArtifactStatus(status)
		a.ErrorCode = code.String
		a.ErrorMessage = msg.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	ph := make([]byte, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			ph = append(ph, ',')
		}
		ph = append(ph, '?')
		args[i] = id
	}
	return string(ph), args
}
