package catalog

import (
	"context"
	"database/sql"
)

// stringPathFilter builds the optional "AND f.path IN (...)" clause for a
// job scoped to specific files. An empty list means "every file", matching
// a job with no file_paths restriction.
func stringPathFilter(paths []string) (string, []any) {
	if len(paths) == 0 {
		return "", nil
	}
	args := make([]any, len(paths))
	ph := make([]byte, 0, len(paths)*2)
	for i, p := range paths {
		if i > 0 {
			ph = append(ph, ',')
		}
		ph = append(ph, '?')
		args[i] = p
	}
	return " AND f.path IN (" + string(ph) + ") ", args
}

// TextWorkItem is one QUEUED text/bm25 artifact joined with its owning page
// and file, everything the text pipeline needs to extract one page.
type TextWorkItem struct {
	PageID   int64
	PageNo   int
	FileID   int64
	PPTXPath string
}

// QueuedTextWork lists pages whose TEXT artifact is QUEUED, optionally
// restricted to a set of file paths, ordered by file then page number.
func (s *Store) QueuedTextWork(ctx context.Context, filePaths []string) ([]TextWorkItem, error) {
	filter, args := stringPathFilter(filePaths)
	rows, err := s.db.QueryContext(ctx,
		"SELECT p.page_id, p.page_no, p.file_id, f.path FROM artifacts a "+
			"JOIN pages p ON p.page_id=a.page_id JOIN files f ON f.file_id=p.file_id "+
			"WHERE a.kind=? AND a.status=? "+filter+" ORDER BY f.file_id, p.page_no",
		append([]any{string(KindText), string(StatusQueued)}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TextWorkItem
	for rows.Next() {
		var it TextWorkItem
		if err := rows.Scan(&it.PageID, &it.PageNo, &it.FileID, &it.PPTXPath); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ThumbFileWork is one file with at least one QUEUED thumbnail artifact.
type ThumbFileWork struct {
	FileID int64
	Path   string
	Aspect Aspect
}

// QueuedThumbFiles lists the distinct files that have at least one QUEUED
// THUMB artifact, for the PDF-conversion half of the thumbnail pipeline.
func (s *Store) QueuedThumbFiles(ctx context.Context, filePaths []string) ([]ThumbFileWork, error) {
	filter, args := stringPathFilter(filePaths)
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT f.file_id, f.path, f.slide_aspect FROM files f "+
			"JOIN pages p ON p.file_id=f.file_id JOIN artifacts a ON a.page_id=p.page_id "+
			"WHERE a.kind=? AND a.status=? "+filter+" ORDER BY f.file_id",
		append([]any{string(KindThumb), string(StatusQueued)}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThumbFileWork
	for rows.Next() {
		var fw ThumbFileWork
		var aspect sql.NullString
		if err := rows.Scan(&fw.FileID, &fw.Path, &aspect); err != nil {
			return nil, err
		}
		fw.Aspect = Aspect(aspect.String)
		out = append(out, fw)
	}
	return out, rows.Err()
}

// CountQueuedThumbPages totals QUEUED THUMB artifacts across the (optionally
// filtered) file set, for the pipeline's overall progress denominator.
func (s *Store) CountQueuedThumbPages(ctx context.Context, filePaths []string) (int, error) {
	filter, args := stringPathFilter(filePaths)
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artifacts a JOIN pages p ON p.page_id=a.page_id JOIN files f ON f.file_id=p.file_id "+
			"WHERE a.kind=? AND a.status=? "+filter,
		append([]any{string(KindThumb), string(StatusQueued)}, args...)...,
	).Scan(&n)
	return n, err
}

// ThumbPageWork is one page within a file whose THUMB artifact is QUEUED.
type ThumbPageWork struct {
	PageID int64
	PageNo int
	Aspect Aspect
}

// QueuedThumbPagesForFile lists a single file's QUEUED thumbnail pages in
// page order, once its PDF has been converted.
func (s *Store) QueuedThumbPagesForFile(ctx context.Context, fileID int64) ([]ThumbPageWork, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT p.page_id, p.page_no, p.aspect FROM pages p JOIN artifacts a ON a.page_id=p.page_id "+
			"WHERE a.kind=? AND a.status=? AND p.file_id=? ORDER BY p.page_no",
		string(KindThumb), string(StatusQueued), fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThumbPageWork
	for rows.Next() {
		var tw ThumbPageWork
		var aspect sql.NullString
		if err := rows.Scan(&tw.PageID, &tw.PageNo, &aspect); err != nil {
			return nil, err
		}
		tw.Aspect = Aspect(aspect.String)
		out = append(out, tw)
	}
	return out, rows.Err()
}

// PagesForFile lists every page_id belonging to a file, used to fan an
// error out across all of a file's pages when its PDF conversion fails.
func (s *Store) PagesForFile(ctx context.Context, fileID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT page_id FROM pages WHERE file_id=?", fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TextVecWorkItem is one QUEUED text-embedding artifact joined with its
// extracted text.
type TextVecWorkItem struct {
	PageID   int64
	PageNo   int
	FileID   int64
	PPTXPath string
	NormText string
	TextSig  string
}

// QueuedTextVecWork lists pages whose TEXT_VEC artifact is QUEUED, joined
// with their page_text row. A page with no extraction row yet still
// surfaces (LEFT JOIN) with empty text, which the pipeline resolves to a
// zero vector.
func (s *Store) QueuedTextVecWork(ctx context.Context, filePaths []string) ([]TextVecWorkItem, error) {
	filter, args := stringPathFilter(filePaths)
	rows, err := s.db.QueryContext(ctx,
		"SELECT p.page_id, p.page_no, p.file_id, f.path, COALESCE(pt.norm_text,''), COALESCE(pt.text_sig,'') "+
			"FROM artifacts a JOIN pages p ON p.page_id=a.page_id JOIN files f ON f.file_id=p.file_id "+
			"LEFT JOIN page_text pt ON pt.page_id=p.page_id "+
			"WHERE a.kind=? AND a.status=? "+filter+" ORDER BY p.page_id",
		append([]any{string(KindTextVec), string(StatusQueued)}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TextVecWorkItem
	for rows.Next() {
		var it TextVecWorkItem
		if err := rows.Scan(&it.PageID, &it.PageNo, &it.FileID, &it.PPTXPath, &it.NormText, &it.TextSig); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ImgVecWorkItem is one QUEUED image-embedding artifact joined with its
// owning page and file.
type ImgVecWorkItem struct {
	PageID   int64
	PageNo   int
	FileID   int64
	PPTXPath string
}

// QueuedImgVecWork lists pages whose IMG_VEC artifact is QUEUED, ordered by
// page_id ascending.
func (s *Store) QueuedImgVecWork(ctx context.Context, filePaths []string) ([]ImgVecWorkItem, error) {
	filter, args := stringPathFilter(filePaths)
	rows, err := s.db.QueryContext(ctx,
		"SELECT p.page_id, p.page_no, p.file_id, f.path FROM artifacts a "+
			"JOIN pages p ON p.page_id=a.page_id JOIN files f ON f.file_id=p.file_id "+
			"WHERE a.kind=? AND a.status=? "+filter+" ORDER BY p.page_id ASC",
		append([]any{string(KindImgVec), string(StatusQueued)}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImgVecWorkItem
	for rows.Next() {
		var it ImgVecWorkItem
		if err := rows.Scan(&it.PageID, &it.PageNo, &it.FileID, &it.PPTXPath); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
