// Package catalog owns the durable per-file and per-page state for one
// library: a single SQLite database opened with WAL journaling that the
// planner, pipelines, and HTTP API all read and write through.
package catalog

// ArtifactKind is the closed set of per-page derivative kinds.
type ArtifactKind string

const (
	KindText    ArtifactKind = "text"
	KindThumb   ArtifactKind = "thumb"
	KindTextVec ArtifactKind = "text_vec"
	KindImgVec  ArtifactKind = "img_vec"
	KindBM25    ArtifactKind = "bm25"
)

// ArtifactStatus is the per-(page,kind) state machine:
// missing → queued → running → {ready | error | skipped | cancelled}.
type ArtifactStatus string

const (
	StatusMissing   ArtifactStatus = "missing"
	StatusQueued    ArtifactStatus = "queued"
	StatusRunning   ArtifactStatus = "running"
	StatusReady     ArtifactStatus = "ready"
	StatusError     ArtifactStatus = "error"
	StatusSkipped   ArtifactStatus = "skipped"
	StatusCancelled ArtifactStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal-success or
// terminal-failure state for a given job run.
func (s ArtifactStatus) IsTerminal() bool {
	switch s {
	case StatusReady, StatusSkipped, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminalSuccess reports whether the planner should leave this artifact
// alone rather than re-queueing it.
func (s ArtifactStatus) IsTerminalSuccess() bool {
	return s == StatusReady || s == StatusSkipped
}

// TaskKind mirrors the pipeline that produced the task.
type TaskKind string

const (
	TaskText    TaskKind = "text"
	TaskPDF     TaskKind = "pdf"
	TaskThumb   TaskKind = "thumb"
	TaskBM25    TaskKind = "bm25"
	TaskTextVec TaskKind = "text_vec"
	TaskImgVec  TaskKind = "img_vec"
)

// TaskStatus is the lifecycle of a single scheduling/progress unit.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskDone      TaskStatus = "done"
	TaskSkipped   TaskStatus = "skipped"
	TaskError     TaskStatus = "error"
	TaskCancelled TaskStatus = "cancelled"
)

// JobStatus is the job lifecycle state machine: created → planning →
// running ↔ paused → {completed | cancelled | failed}, with
// cancel_requested as the transient state a cancel puts the job in until
// the finalizer resolves it.
type JobStatus string

const (
	JobCreated         JobStatus = "created"
	JobPlanning        JobStatus = "planning"
	JobRunning         JobStatus = "running"
	JobPaused          JobStatus = "paused"
	JobCancelRequested JobStatus = "cancel_requested"
	JobCompleted       JobStatus = "completed"
	JobCancelled       JobStatus = "cancelled"
	JobFailed          JobStatus = "failed"
)

// IsTerminal reports whether the job status is one of the three terminal
// outcomes of a run.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobCancelled, JobFailed:
		return true
	default:
		return false
	}
}

// Error codes persisted on artifact and task rows and surfaced over the API.
const (
	ErrTextExtractFail     = "TEXT_EXTRACT_FAIL"
	ErrPDFConvertFail      = "PDF_CONVERT_FAIL"
	ErrThumbFail           = "THUMB_FAIL"
	ErrEmbedFail           = "EMBED_FAIL"
	ErrImgVecFail          = "IMG_VEC_FAIL"
	ErrThumbMissing        = "THUMB_MISSING"
	ErrImgVecSkipped       = "IMG_VEC_SKIPPED"
	ErrWatchdogTimeout     = "WATCHDOG_TIMEOUT"
	ErrLibraryRootNotFound = "library_root_not_found"
	ErrJobNotFound         = "job_not_found"
)

// Skip reason buckets the planner reports in job_planning_finished.
const (
	SkipNonPPTX        = "non_pptx"
	SkipOutsideRoot    = "outside_root"
	SkipUnselectedPath = "unselected_path"
	SkipMissingPath    = "missing_path"
	SkipParseFailed    = "parse_failed"
)

// Aspect is the closed set of page-geometry classifications.
type Aspect string

const (
	Aspect43      Aspect = "4:3"
	Aspect169     Aspect = "16:9"
	AspectUnknown Aspect = "unknown"
)

// File is a presentation package discovered under the library root.
type File struct {
	ID            int64
	Path          string
	SizeBytes     int64
	ModEpoch      int64
	Aspect        Aspect
	SlideCount    int
	LastScanEpoch int64
	ScanError     string
}

// Page is one slide within a File, identified by (FileID, Ordinal).
type Page struct {
	ID          int64
	FileID      int64
	Ordinal     int // 1-based
	Aspect      Aspect
	SrcSize     int64
	SrcModEpoch int64
}

// Artifact is the per-(page,kind) state row.
type Artifact struct {
	PageID       int64
	Kind         ArtifactKind
	Status       ArtifactStatus
	UpdatedEpoch int64
	Attempts     int
	ErrorCode    string
	ErrorMessage string
	ParamsJSON   string
}

// PageText holds the raw and normalized text extracted for a page.
type PageText struct {
	PageID       int64
	RawText      string
	NormText     string
	TextSig      string
	UpdatedEpoch int64
}

// Thumbnail is the rendered raster for a page.
type Thumbnail struct {
	PageID       int64
	Aspect       Aspect
	Width        int
	Height       int
	Path         string
	UpdatedEpoch int64
}

// TextEmbeddingCache is keyed by (model, text signature) and shared across
// pages and jobs.
type TextEmbeddingCache struct {
	ID           int64
	Model        string
	TextSig      string
	Dim          int
	Vector       []byte // little-endian 32-bit floats, exactly dim*4 bytes
	CreatedEpoch int64
}

// PageTextEmbedding links a page to a TextEmbeddingCache row.
type PageTextEmbedding struct {
	PageID       int64
	Model        string
	TextSig      string
	UpdatedEpoch int64
}

// PageImageEmbedding is the per-page image vector.
type PageImageEmbedding struct {
	PageID       int64
	Model        string
	Dim          int
	Vector       []byte
	UpdatedEpoch int64
}

// Job is one indexing run.
type Job struct {
	ID            string
	LibraryRoot   string
	CreatedEpoch  int64
	StartedEpoch  int64
	FinishedEpoch int64
	Status        JobStatus
	OptionsJSON   string
}

// Task is a unit of scheduling and progress reporting within a job.
type Task struct {
	ID             int64
	JobID          string
	Kind           TaskKind
	Status         TaskStatus
	PageID         *int64
	FileID         *int64
	Priority       int
	StartedEpoch   int64
	FinishedEpoch  int64
	HeartbeatEpoch int64
	Progress       float64
	Message        string
	ErrorCode      string
	ErrorMessage   string
}
