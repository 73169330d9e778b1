package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertFile records or refreshes a scanned file's size/mtime, clearing any
// previous scan error. If aspect is non-empty it overwrites the stored
// aspect; an empty aspect leaves the existing value untouched (COALESCE).
func (s *Store) UpsertFile(ctx context.Context, path string, sizeBytes, modEpoch int64, aspect Aspect) (int64, error) {
	var fileID int64
	err := s.db.QueryRowContext(ctx, "SELECT file_id FROM files WHERE path = ?", path).Scan(&fileID)
	switch {
	case err == sql.ErrNoRows:
		now := NowEpoch()
		var aspectArg any
		if aspect != "" {
			aspectArg = string(aspect)
		}
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO files(path,size_bytes,mtime_epoch,slide_aspect,last_scanned_at,scan_error) VALUES (?,?,?,?,?,NULL)",
			path, sizeBytes, modEpoch, aspectArg, now)
		if err != nil {
			return 0, fmt.Errorf("inserting file %s: %w", path, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("looking up file %s: %w", path, err)
	default:
		var aspectArg any
		if aspect != "" {
			aspectArg = string(aspect)
		}
		now := NowEpoch()
		if _, err := s.db.ExecContext(ctx,
			"UPDATE files SET size_bytes=?, mtime_epoch=?, slide_aspect=COALESCE(?,slide_aspect), last_scanned_at=?, scan_error=NULL WHERE file_id=?",
			sizeBytes, modEpoch, aspectArg, now, fileID); err != nil {
			return 0, fmt.Errorf("updating file %s: %w", path, err)
		}
		return fileID, nil
	}
}

// FileByPath looks up a file by its absolute path, returning sql.ErrNoRows
// (wrapped) if it has not been scanned yet.
func (s *Store) FileByPath(ctx context.Context, path string) (File, error) {
	var f File
	var aspect, scanErr sql.NullString
	var slideCount, lastScanned sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT file_id, path, size_bytes, mtime_epoch, slide_aspect, slide_count, last_scanned_at, scan_error FROM files WHERE path=?",
		path,
	).Scan(&f.ID, &f.Path, &f.SizeBytes, &f.ModEpoch, &aspect, &slideCount, &lastScanned, &scanErr)
	if err != nil {
		return File{}, err
	}
	f.Aspect = Aspect(aspect.String)
	f.SlideCount = int(slideCount.Int64)
	f.LastScanEpoch = lastScanned.Int64
	f.ScanError = scanErr.String
	return f, nil
}

// FileByID loads a file by its surrogate key.
func (s *Store) FileByID(ctx context.Context, fileID int64) (File, error) {
	var f File
	var aspect, scanErr sql.NullString
	var slideCount, lastScanned sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT file_id, path, size_bytes, mtime_epoch, slide_aspect, slide_count, last_scanned_at, scan_error FROM files WHERE file_id=?",
		fileID,
	).Scan(&f.ID, &f.Path, &f.SizeBytes, &f.ModEpoch, &aspect, &slideCount, &lastScanned, &scanErr)
	if err != nil {
		return File{}, err
	}
	f.Aspect = Aspect(aspect.String)
	f.SlideCount = int(slideCount.Int64)
	f.LastScanEpoch = lastScanned.Int64
	f.ScanError = scanErr.String
	return f, nil
}

// SetFileAspect overwrites the stored aspect for a file (used once the PPTX
// slide-size metadata has been parsed).
func (s *Store) SetFileAspect(ctx context.Context, fileID int64, aspect Aspect) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET slide_aspect=? WHERE file_id=?", string(aspect), fileID)
	return err
}

// SetFileSlideCount records the slide count discovered while parsing the
// package's slide list.
func (s *Store) SetFileSlideCount(ctx context.Context, fileID int64, count int) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET slide_count=? WHERE file_id=?", count, fileID)
	return err
}

// SetFileScanError records a parse/scan failure against the file row.
func (s *Store) SetFileScanError(ctx context.Context, fileID int64, message string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET scan_error=? WHERE file_id=?", truncate(message, 500), fileID)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
