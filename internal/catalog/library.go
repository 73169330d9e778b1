package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// CountFiles and CountPages scope to library_root via a path-prefix filter
// (LIKE root || '%'). An empty prefix counts every file/page in the
// catalog.
func (s *Store) CountFiles(ctx context.Context, prefix string) (int, error) {
	var n int
	var err error
	if prefix == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files f WHERE f.path LIKE ?", prefix+"%").Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return n, nil
}

func (s *Store) CountPages(ctx context.Context, prefix string) (int, error) {
	var n int
	var err error
	if prefix == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages p JOIN files f ON f.file_id=p.file_id").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pages p JOIN files f ON f.file_id=p.file_id WHERE f.path LIKE ?", prefix+"%").Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return n, nil
}

// FileRow is one row of the library/files listing, with per-kind artifact
// status counts aggregated across its pages.
type FileRow struct {
	File
	ArtifactCounts map[ArtifactKind]map[ArtifactStatus]int
}

// ListFiles returns every file under prefix (all files if prefix is empty),
// each annotated with its per-kind artifact status counts.
func (s *Store) ListFiles(ctx context.Context, prefix string) ([]FileRow, error) {
	query := "SELECT f.file_id, f.path, f.size_bytes, f.mtime_epoch, f.slide_count, f.slide_aspect, f.scan_error FROM files f"
	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.QueryContext(ctx, query+" ORDER BY f.path")
	} else {
		rows, err = s.db.QueryContext(ctx, query+" WHERE f.path LIKE ? ORDER BY f.path", prefix+"%")
	}
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*FileRow)
	var order []int64
	for rows.Next() {
		var fr FileRow
		var aspect, scanErr sql.NullString
		var slideCount sql.NullInt64
		if err := rows.Scan(&fr.ID, &fr.Path, &fr.SizeBytes, &fr.ModEpoch, &slideCount, &aspect, &scanErr); err != nil {
			return nil, err
		}
		fr.Aspect = Aspect(aspect.String)
		fr.SlideCount = int(slideCount.Int64)
		fr.ScanError = scanErr.String
		fr.ArtifactCounts = make(map[ArtifactKind]map[ArtifactStatus]int)
		byID[fr.ID] = &fr
		order = append(order, fr.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statQuery := "SELECT f.file_id, a.kind, a.status, COUNT(*) AS cnt " +
		"FROM files f JOIN pages p ON p.file_id=f.file_id JOIN artifacts a ON a.page_id=p.page_id"
	var statRows *sql.Rows
	if prefix == "" {
		statRows, err = s.db.QueryContext(ctx, statQuery+" GROUP BY f.file_id, a.kind, a.status")
	} else {
		statRows, err = s.db.QueryContext(ctx,
			statQuery+" WHERE f.path LIKE ? GROUP BY f.file_id, a.kind, a.status", prefix+"%")
	}
	if err != nil {
		return nil, fmt.Errorf("aggregating file artifact stats: %w", err)
	}
	defer statRows.Close()

	for statRows.Next() {
		var fileID int64
		var kind, status string
		var cnt int
		if err := statRows.Scan(&fileID, &kind, &status, &cnt); err != nil {
			return nil, err
		}
		fr, ok := byID[fileID]
		if !ok {
			continue
		}
		k := ArtifactKind(kind)
		if fr.ArtifactCounts[k] == nil {
			fr.ArtifactCounts[k] = make(map[ArtifactStatus]int)
		}
		fr.ArtifactCounts[k][ArtifactStatus(status)] = cnt
	}
	if err := statRows.Err(); err != nil {
		return nil, err
	}

	out := make([]FileRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}
