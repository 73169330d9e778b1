package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertThumbnail records the rendered raster location and dimensions for a
// page, replacing any previous row.
func (s *Store) UpsertThumbnail(ctx context.Context, pageID int64, aspect Aspect, width, height int, path string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO thumbnails(page_id,aspect,width,height,image_path,updated_at) VALUES (?,?,?,?,?,?)",
		pageID, string(aspect), width, height, path, NowEpoch())
	return err
}

// ThumbnailPath returns the most recently written thumbnail path for a page.
func (s *Store) ThumbnailPath(ctx context.Context, pageID int64) (string, bool, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		"SELECT image_path FROM thumbnails WHERE page_id=? ORDER BY updated_at DESC LIMIT 1", pageID,
	).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading thumbnail for page %d: %w", pageID, err)
	}
	return path, true, nil
}

// ThumbnailPaths loads the latest thumbnail path for each of a batch of
// pages, for the library/pages listing endpoint.
func (s *Store) ThumbnailPaths(ctx context.Context, pageIDs []int64) (map[int64]string, error) {
	if len(pageIDs) == 0 {
		return map[int64]string{}, nil
	}
	placeholders, args := inClause(pageIDs)
	rows, err := s.db.QueryContext(ctx,
		"SELECT page_id, image_path, updated_at FROM thumbnails WHERE page_id IN ("+placeholders+") "+
			"ORDER BY updated_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("loading thumbnail paths: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var pageID int64
		var path string
		var updatedAt int64
		if err := rows.Scan(&pageID, &path, &updatedAt); err != nil {
			return nil, err
		}
		if _, seen := out[pageID]; !seen {
			out[pageID] = path
		}
	}
	return out, rows.Err()
}
