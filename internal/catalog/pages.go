package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertPage records or refreshes the (file_id, page_no) row, returning its
// page_id. A fresh row is created with created_at set to now; an existing
// row has its aspect and source stat fields refreshed in place.
func (s *Store) UpsertPage(ctx context.Context, fileID int64, pageNo int, aspect Aspect, srcSize, srcMod int64) (int64, error) {
	var pageID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT page_id FROM pages WHERE file_id=? AND page_no=?", fileID, pageNo,
	).Scan(&pageID)
	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO pages(file_id,page_no,aspect,source_size_bytes,source_mtime_epoch,created_at) VALUES (?,?,?,?,?,?)",
			fileID, pageNo, string(aspect), srcSize, srcMod, NowEpoch())
		if err != nil {
			return 0, fmt.Errorf("inserting page %d of file %d: %w", pageNo, fileID, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("looking up page %d of file %d: %w", pageNo, fileID, err)
	default:
		if _, err := s.db.ExecContext(ctx,
			"UPDATE pages SET aspect=?, source_size_bytes=?, source_mtime_epoch=? WHERE page_id=?",
			string(aspect), srcSize, srcMod, pageID); err != nil {
			return 0, fmt.Errorf("updating page %d: %w", pageID, err)
		}
		return pageID, nil
	}
}

// PagesByFile lists every page row belonging to a file, ordered by page
// number.
func (s *Store) PagesByFile(ctx context.Context, fileID int64) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT page_id, file_id, page_no, aspect, source_size_bytes, source_mtime_epoch FROM pages WHERE file_id=? ORDER BY page_no",
		fileID)
	if err != nil {
		return nil, fmt.Errorf("listing pages for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []Page
	for rows.Next() {
		var p Page
		var aspect sql.NullString
		var srcSize, srcMod sql.NullInt64
		if err := rows.Scan(&p.ID, &p.FileID, &p.Ordinal, &aspect, &srcSize, &srcMod); err != nil {
			return nil, err
		}
		p.Aspect = Aspect(aspect.String)
		p.SrcSize = srcSize.Int64
		p.SrcModEpoch = srcMod.Int64
		out = append(out, p)
	}
	return out, rows.Err()
}

// PageByID loads a single page row, joined with its owning file's path.
func (s *Store) PageByID(ctx context.Context, pageID int64) (Page, string, error) {
	var p Page
	var path string
	var aspect sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT p.page_id, p.file_id, p.page_no, p.aspect, f.path FROM pages p JOIN files f ON f.file_id=p.file_id WHERE p.page_id=?",
		pageID,
	).Scan(&p.ID, &p.FileID, &p.Ordinal, &aspect, &path)
	p.Aspect = Aspect(aspect.String)
	return p, path, err
}

// DeletePagesBeyond removes page rows whose page_no exceeds keepUpTo, used
// when a re-scanned file now has fewer slides than a previous run recorded.
func (s *Store) DeletePagesBeyond(ctx context.Context, fileID int64, keepUpTo int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pages WHERE file_id=? AND page_no>?", fileID, keepUpTo)
	return err
}
