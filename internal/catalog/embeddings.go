package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// TextEmbeddingCacheHit looks up a cached text vector by (model, text
// signature), shared across every page whose normalized text happens to
// match.
func (s *Store) TextEmbeddingCacheHit(ctx context.Context, model, textSig string) (int, []byte, bool, error) {
	var dim int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT dim, vector_blob FROM embedding_cache_text WHERE model=? AND text_sig=?", model, textSig,
	).Scan(&dim, &blob)
	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("looking up text embedding cache: %w", err)
	}
	return dim, blob, true, nil
}

// UpsertTextEmbeddingCache stores (or refreshes) the cached vector for a
// (model, text signature) pair.
func (s *Store) UpsertTextEmbeddingCache(ctx context.Context, model, textSig string, dim int, vector []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO embedding_cache_text(model,text_sig,dim,vector_blob,created_at) VALUES (?,?,?,?,?)",
		model, textSig, dim, vector, NowEpoch())
	return err
}

// UpsertPageTextEmbedding links a page to the cache row for (model,
// text_sig); the vector itself lives only in embedding_cache_text.
func (s *Store) UpsertPageTextEmbedding(ctx context.Context, pageID int64, model, textSig string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO page_text_embedding(page_id,model,text_sig,updated_at) VALUES (?,?,?,?)",
		pageID, model, textSig, NowEpoch())
	return err
}

// PageTextEmbeddingSig returns the cache signature a page's text embedding
// is linked to for a model, if any.
func (s *Store) PageTextEmbeddingSig(ctx context.Context, pageID int64, model string) (string, bool, error) {
	var sig string
	err := s.db.QueryRowContext(ctx,
		"SELECT text_sig FROM page_text_embedding WHERE page_id=? AND model=?", pageID, model,
	).Scan(&sig)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading text embedding link for page %d: %w", pageID, err)
	}
	return sig, true, nil
}

// UpsertPageImageEmbedding stores the per-page image vector directly (no
// cross-page cache, since image vectors are not shared by signature).
func (s *Store) UpsertPageImageEmbedding(ctx context.Context, pageID int64, model string, dim int, vector []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO page_image_embedding(page_id,model,dim,vector_blob,updated_at) VALUES (?,?,?,?,?)",
		pageID, model, dim, vector, NowEpoch())
	return err
}
