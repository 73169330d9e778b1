package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// pathFilterPrefix resolves the optional library_root query param into the
// path-prefix filter catalog's Count*/List*/ArtifactCounts* helpers expect:
// resolve to an absolute path, then ensure a trailing separator so a prefix
// match never matches a sibling directory with a shared prefix.
func pathFilterPrefix(r *http.Request) string {
	root := r.URL.Query().Get("library_root")
	if root == "" {
		return ""
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	if abs[len(abs)-1] != os.PathSeparator {
		abs += string(os.PathSeparator)
	}
	return abs
}

func (s *Server) handleLibrarySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefix := pathFilterPrefix(r)

	files, err := s.store.CountFiles(ctx, prefix)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	pages, err := s.store.CountPages(ctx, prefix)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	artifacts, err := s.store.ArtifactCountsByPrefix(ctx, prefix)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"files":     files,
		"pages":     pages,
		"artifacts": artifacts,
	})
}

func (s *Server) handleLibraryFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefix := pathFilterPrefix(r)

	rows, err := s.store.ListFiles(ctx, prefix)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, fr := range rows {
		out = append(out, map[string]any{
			"file_id":        fr.ID,
			"path":           fr.Path,
			"size_bytes":     fr.SizeBytes,
			"mtime_epoch":    fr.ModEpoch,
			"slide_count":    fr.SlideCount,
			"slide_aspect":   fr.Aspect,
			"scan_error":     fr.ScanError,
			"artifact_stats": fr.ArtifactCounts,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "files": out})
}

func (s *Server) handleLibraryFilePages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID, err := strconv.ParseInt(chi.URLParam(r, "fileId"), 10, 64)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid_file_id")
		return
	}

	pages, err := s.store.PagesByFile(ctx, fileID)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if len(pages) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "pages": []any{}})
		return
	}

	pageIDs := make([]int64, len(pages))
	for i, p := range pages {
		pageIDs[i] = p.ID
	}

	artifacts, err := s.store.ArtifactsByPages(ctx, pageIDs)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	excerpts, err := s.store.TextExcerpts(ctx, pageIDs)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	thumbs, err := s.store.ThumbnailPaths(ctx, pageIDs)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		var thumbPath any
		if path, ok := thumbs[p.ID]; ok {
			thumbPath = path
		}
		out = append(out, map[string]any{
			"page_id":         p.ID,
			"page_no":         p.Ordinal,
			"aspect":          p.Aspect,
			"artifact_status": artifacts[p.ID],
			"text_excerpt":    excerpts[p.ID],
			"thumb_path":      thumbPath,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "pages": out})
}

func (s *Server) handleLibraryPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageID, err := strconv.ParseInt(chi.URLParam(r, "pageId"), 10, 64)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid_page_id")
		return
	}

	page, filePath, err := s.store.PageByID(ctx, pageID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "message": "page_not_found"})
		return
	}

	text, _, err := s.store.PageText(ctx, pageID)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	artifacts, err := s.store.PageArtifacts(ctx, pageID)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}
	thumbPath, hasThumb, err := s.store.ThumbnailPath(ctx, pageID)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal_error")
		return
	}

	artifactOut := make([]map[string]any, 0, len(artifacts))
	for _, a := range artifacts {
		artifactOut = append(artifactOut, map[string]any{
			"kind":          a.Kind,
			"status":        a.Status,
			"error_code":    a.ErrorCode,
			"error_message": a.ErrorMessage,
		})
	}

	var thumbOut any
	if hasThumb {
		thumbOut = thumbPath
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"page": map[string]any{
			"page_id":    page.ID,
			"file_id":    page.FileID,
			"file_path":  filePath,
			"page_no":    page.Ordinal,
			"aspect":     page.Aspect,
			"raw_text":   text.RawText,
			"norm_text":  text.NormText,
			"artifacts":  artifactOut,
			"thumb_path": thumbOut,
		},
	})
}
