package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertPageText records the raw and normalized extraction for a page and
// its fingerprint signature, overwriting any previous extraction.
func (s *Store) UpsertPageText(ctx context.Context, pageID int64, raw, norm, sig string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO page_text(page_id,raw_text,norm_text,text_sig,updated_at) VALUES (?,?,?,?,?) "+
			"ON CONFLICT(page_id) DO UPDATE SET raw_text=excluded.raw_text, norm_text=excluded.norm_text, text_sig=excluded.text_sig, updated_at=excluded.updated_at",
		pageID, raw, norm, sig, NowEpoch())
	return err
}

// PageText loads the stored extraction for a page, if any.
func (s *Store) PageText(ctx context.Context, pageID int64) (PageText, bool, error) {
	var pt PageText
	err := s.db.QueryRowContext(ctx,
		"SELECT raw_text, norm_text, text_sig FROM page_text WHERE page_id=?", pageID,
	).Scan(&pt.RawText, &pt.NormText, &pt.TextSig)
	if err == sql.ErrNoRows {
		return PageText{}, false, nil
	}
	if err != nil {
		return PageText{}, false, fmt.Errorf("loading page_text for page %d: %w", pageID, err)
	}
	pt.PageID = pageID
	return pt, true, nil
}

// TextExcerpts loads a 140-character excerpt of each page's normalized text,
// for the library/pages listing endpoint.
func (s *Store) TextExcerpts(ctx context.Context, pageIDs []int64) (map[int64]string, error) {
	if len(pageIDs) == 0 {
		return map[int64]string{}, nil
	}
	placeholders, args := inClause(pageIDs)
	rows, err := s.db.QueryContext(ctx,
		"SELECT page_id, substr(norm_text, 1, 140) AS text_excerpt FROM page_text WHERE page_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("loading text excerpts: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var pageID int64
		var excerpt string
		if err := rows.Scan(&pageID, &excerpt); err != nil {
			return nil, err
		}
		out[pageID] = excerpt
	}
	return out, rows.Err()
}

// UpsertFTSPage replaces a page's row in the BM25 full-text index,
// delete-then-insert since FTS5 virtual tables don't support ON CONFLICT
// upserts.
func (s *Store) UpsertFTSPage(ctx context.Context, pageID int64, normText string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fts_pages WHERE page_id = ?", pageID); err != nil {
			return fmt.Errorf("clearing fts row for page %d: %w", pageID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO fts_pages(page_id, norm_text) VALUES (?,?)", pageID, normText); err != nil {
			return fmt.Errorf("inserting fts row for page %d: %w", pageID, err)
		}
		return nil
	})
}

// The store intentionally has no query-side BM25 search method: the daemon
// indexes but never serves or ranks search results. fts_pages is written by
// the BM25 pipeline for a separate desktop client to query directly against
// the catalog database.
