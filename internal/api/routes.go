package api

// routes registers the daemon's full endpoint table. No auth or versioning
// prefix: this surface is local-only, consumed by a desktop client on the
// same machine.
func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Post("/jobs/index", s.handleCreateJob)
	s.router.Get("/jobs/{jobId}", s.handleJobSnapshot)
	s.router.Post("/jobs/{jobId}/pause", s.handlePauseJob)
	s.router.Post("/jobs/{jobId}/resume", s.handleResumeJob)
	s.router.Post("/jobs/{jobId}/cancel", s.handleCancelJob)
	s.router.Get("/jobs/{jobId}/events", s.handleJobEvents)

	s.router.Get("/library/summary", s.handleLibrarySummary)
	s.router.Get("/library/files", s.handleLibraryFiles)
	s.router.Get("/library/files/{fileId}/pages", s.handleLibraryFilePages)
	s.router.Get("/library/pages/{pageId}", s.handleLibraryPage)
}
