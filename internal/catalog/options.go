package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/allanyiin/slidemanager/internal/constants"
)

// ThumbOptions configures the Thumbnail Renderer pipeline.
type ThumbOptions struct {
	Enabled   bool `json:"enabled"`
	Width     int  `json:"width"`
	Height43  int  `json:"height_4_3"`
	Height169 int  `json:"height_16_9"`
	RenderDPI int  `json:"render_dpi"`
}

// PDFOptions configures the headless-office conversion step.
type PDFOptions struct {
	Enabled        bool   `json:"enabled"`
	TimeoutSec     int    `json:"timeout_sec"`
	MaxConcurrency int    `json:"max_concurrency"`
	Prefer         string `json:"prefer"` // libreoffice | powerpoint | auto
}

// EmbedOptions configures both the text and image embedder pipelines.
type EmbedOptions struct {
	EnabledText    bool   `json:"enabled_text"`
	EnabledImage   bool   `json:"enabled_image"`
	ModelText      string `json:"model_text"`
	ModelImage     string `json:"model_image"`
	MaxConcurrency int    `json:"max_concurrency"`
	BatchSize      int    `json:"batch_size"`
	ReqPerMin      int    `json:"req_per_min"`
	TokPerMin      int    `json:"tok_per_min"`
	MaxRetries     int    `json:"max_retries"`

	// EnableSentenceDF, SentenceDFThreshold and SentenceMinLen are carried
	// for wire compatibility with older clients. No pipeline reads them;
	// they are accepted and persisted but otherwise inert.
	EnableSentenceDF    bool    `json:"enable_sentence_df,omitempty"`
	SentenceDFThreshold float64 `json:"sentence_df_threshold,omitempty"`
	SentenceMinLen      int     `json:"sentence_min_len,omitempty"`
}

// JobOptions is the full option set a client may pass to POST /jobs/index.
// FilePaths is the only required field; everything else defaults per
// DefaultJobOptions.
type JobOptions struct {
	EnableText    bool `json:"enable_text"`
	EnableThumb   bool `json:"enable_thumb"`
	EnableTextVec bool `json:"enable_text_vec"`
	EnableImgVec  bool `json:"enable_img_vec"`
	EnableBM25    bool `json:"enable_bm25"`

	FilePaths []string `json:"file_paths"`

	// FileScans is accepted as a deprecated alias for FilePaths, read only
	// so old clients that still send it don't get a hard rejection. It is
	// never itself consulted by the planner once FilePaths is non-empty.
	FileScans []string `json:"file_scans,omitempty"`

	Thumb ThumbOptions `json:"thumb"`
	PDF   PDFOptions   `json:"pdf"`
	Embed EmbedOptions `json:"embed"`

	CommitEveryPages int     `json:"commit_every_pages"`
	CommitEverySec   float64 `json:"commit_every_sec"`
}

// DefaultJobOptions returns the options schema's documented defaults.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		EnableText:    true,
		EnableThumb:   true,
		EnableTextVec: true,
		EnableImgVec:  true,
		EnableBM25:    true,
		Thumb: ThumbOptions{
			Enabled:   true,
			Width:     constants.DefaultThumbWidth,
			Height43:  constants.DefaultThumbHeight43,
			Height169: constants.DefaultThumbHeight169,
			RenderDPI: constants.DefaultRenderDPI,
		},
		PDF: PDFOptions{
			Enabled:        true,
			TimeoutSec:     constants.DefaultPDFTimeoutSec,
			MaxConcurrency: constants.DefaultPDFMaxConcurrency,
			Prefer:         "auto",
		},
		Embed: EmbedOptions{
			EnabledText:    true,
			EnabledImage:   true,
			ModelText:      constants.DefaultTextModel,
			ModelImage:     constants.DefaultImageModel,
			MaxConcurrency: constants.DefaultEmbedConcurrency,
			BatchSize:      constants.DefaultEmbedBatchSize,
			ReqPerMin:      constants.DefaultReqPerMin,
			TokPerMin:      constants.DefaultTokPerMin,
			MaxRetries:     constants.DefaultMaxRetries,
		},
		CommitEveryPages: constants.DefaultCommitEveryPages,
		CommitEverySec:   constants.DefaultCommitEverySec,
	}
}

// DecodeJobOptions decodes a client request body onto a copy of
// DefaultJobOptions, so unset JSON fields keep their documented defaults
// instead of zero-valuing to false/0.
func DecodeJobOptions(data []byte) (JobOptions, error) {
	opts := DefaultJobOptions()
	if len(data) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return JobOptions{}, fmt.Errorf("decoding job options: %w", err)
	}
	if len(opts.FilePaths) == 0 && len(opts.FileScans) > 0 {
		opts.FilePaths = opts.FileScans
	}
	return opts, nil
}
