// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Watchdog tuning.
const (
	// WatchdogIntervalSec is how often the watchdog scans for stale running tasks.
	WatchdogIntervalSec = 2

	// WatchdogStaleAfterSec is how old a RUNNING task's heartbeat must be before
	// the watchdog kills it into ERROR.
	WatchdogStaleAfterSec = 30
)

// Checkpoint cadence defaults.
const (
	// DefaultCommitEveryPages commits the database after this many processed pages.
	DefaultCommitEveryPages = 50

	// DefaultCommitEverySec commits the database after this many seconds,
	// whichever of page count or elapsed time comes first.
	DefaultCommitEverySec = 1.0
)

// Event bus.
const (
	// EventQueueCapacity is the bounded per-job, per-subscriber event queue size.
	// Publishing beyond this drops the oldest unread event.
	EventQueueCapacity = 5000
)

// Rate limiter / retry.
const (
	// BackoffBase is the base delay (seconds) for exponential retry backoff.
	BackoffBase = 0.5
	// BackoffCap is the maximum delay (seconds) for exponential retry backoff.
	BackoffCap = 20.0
	// RateLimiterMinWait is the floor on the computed wait between acquire retries.
	RateLimiterMinWait = 0.05
	// RateLimiterMaxSleep bounds a single sleep iteration inside acquire.
	RateLimiterMaxSleep = 2.0
)

// PDF conversion.
const (
	// DefaultPDFTimeoutSec is the default timeout for the headless office conversion.
	DefaultPDFTimeoutSec = 180
	// DefaultPDFMaxConcurrency is the default pdf.max_concurrency option value.
	// No pipeline reads that option; conversions run one at a time.
	DefaultPDFMaxConcurrency = 1
	// StderrCaptureBytes is how much trailing stderr is kept on conversion failure.
	StderrCaptureBytes = 500
)

// Thumbnail sizing.
const (
	DefaultThumbWidth     = 320
	DefaultThumbHeight43  = 240
	DefaultThumbHeight169 = 180
	DefaultRenderDPI      = 144
)

// Aspect classification tolerances (applied to the cx/cy ratio).
const (
	Aspect43Ratio      = 4.0 / 3.0
	Aspect43Tolerance  = 0.08
	Aspect169Ratio     = 16.0 / 9.0
	Aspect169Tolerance = 0.12
)

// Embedding defaults.
const (
	DefaultTextModel        = "text-embedding-3-large"
	DefaultImageModel       = "image-embedding-1"
	DefaultEmbedBatchSize   = 64
	DefaultReqPerMin        = 120
	DefaultTokPerMin        = 200000
	DefaultMaxRetries       = 8
	DefaultEmbedConcurrency = 2
)

// MaxErrorMessageLen caps persisted artifact/task error messages.
const MaxErrorMessageLen = 500

// MaxSkipExamplesPerBucket bounds how many example paths the planner reports
// per skip-reason bucket in job_planning_finished.
const MaxSkipExamplesPerBucket = 20

// On-disk cache layout under <library_root>/.slidemanager/.
const (
	SlidemanagerDirName = ".slidemanager"
	PDFCacheDirName     = "pdf"
	ThumbCacheDirName   = "thumbs"
)
